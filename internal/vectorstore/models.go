package vectorstore

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text that is embedded and returned by Search.
	Content string

	// Metadata holds filterable key/value pairs such as source or session_id.
	Metadata map[string]string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	ID      string
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	Metadata map[string]string
}
