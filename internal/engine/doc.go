// Package engine is the askd orchestration engine.
//
// An Engine owns one conversation: the privacy filter, the memory manager,
// and an immutable snapshot of the active backends (language model,
// embedding stack and vector index, optional web-search client). Mode
// changes build a complete replacement snapshot before swapping it in, so a
// failed change leaves the previous configuration active.
//
// ProcessQuery never returns an error. Failures inside the pipeline are
// logged, recorded in memory as an assistant message and turned into an
// apology reply.
package engine
