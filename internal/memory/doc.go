// Package memory keeps conversation history for the engine.
//
// Every message lands in a bounded transient buffer, which is always the
// working context handed to the model. In persistent mode, messages that
// carry a session id are also appended to a durable per-session record and
// duplicated into a semantic index so past conversations can be searched.
// Only the durable record is used to restore a session.
package memory
