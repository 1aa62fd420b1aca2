// Package sandbox runs a single plugin tool invocation behind a boundary
// that never lets a failure escape to the caller.
//
// Every invocation produces a Result. Failures are classified into a
// closed taxonomy (ImportError, ValueError, RuntimeError, MemoryError,
// TimeoutError, Exception) by a pure mapping in Classify. Panics are
// recovered, wall-clock overruns abandon the worker goroutine, and an
// advisory memory guard compares the call's peak resident memory against a
// configured ceiling.
//
// The timeout guard cannot stop the tool. An abandoned call keeps running
// in the background and its result is discarded. It keeps its worker slot
// until it returns, so at most MaxConcurrent workers are ever alive.
package sandbox
