package retrieval

import "fmt"

const defaultTemplate = `
You are a helpful AI assistant. Answer the user's question to the best of your knowledge.

Question: %s

Answer:
`

const ragTemplate = `
You are a helpful AI assistant. Answer the user's question based ONLY on the following context:

Context:
%s

Question: %s

Instructions:
1. Use ONLY information from the provided context
2. If the context doesn't contain relevant information, say "I don't have information about that in my knowledge base"
3. Do not use any prior knowledge or make up information
4. Include the source file name at the end of your response in the format: [Source: filename.txt]

Answer:
`

const webTemplate = `
You are a helpful AI assistant with access to real-time web search.
I've searched the web for: "%s"
Here are the search results:

%s

Based on these search results, please answer the original question: %s

Instructions:
1. Use information from the search results to provide a comprehensive answer
2. DO NOT cite sources within your answer text - they will be added automatically at the end
3. DO NOT mention URLs, source names, or phrases like "according to..." in your response
4. If the search results don't contain relevant information, say so and provide your best answer
5. Focus on providing factual information only

Answer:
`

// DefaultPrompt asks the model to answer from its own knowledge.
func DefaultPrompt(question string) string {
	return fmt.Sprintf(defaultTemplate, question)
}

// RAGPrompt grounds the answer in retrieved context.
func RAGPrompt(context, question string) string {
	return fmt.Sprintf(ragTemplate, context, question)
}

// WebSearchPrompt grounds the answer in formatted search results and forbids
// in-line citations.
func WebSearchPrompt(question, results string) string {
	return fmt.Sprintf(webTemplate, question, results, question)
}
