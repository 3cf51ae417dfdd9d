// Package embeddings turns text into vectors for the document and chat
// history indexes.
//
// Four providers are available: a local ONNX model through fastembed
// ("huggingface"), Ollama and OpenAI through langchaingo, and a deterministic
// feature-hashing provider used as the last fallback tier when no model can
// be reached.
package embeddings
