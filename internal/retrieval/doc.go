// Package retrieval grounds answers in the document corpus or in web search
// results and assembles their source citations.
//
// The language model is never trusted to cite: any trailing citation it
// produces is stripped and replaced with a block built from the identifiers
// that were actually retrieved, deduplicated in first-seen order.
package retrieval
