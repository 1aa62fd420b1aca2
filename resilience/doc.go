// Package resilience provides retry with backoff, a circuit breaker and a
// bulkhead for calls into plugin code.
//
// The HTTP plugin adapter retries connection failures and trips a
// per-plugin breaker after repeated failures, so a dead plugin endpoint
// fails fast instead of holding every node invocation until its timeout.
// The sandbox holds a bulkhead slot for the life of each worker goroutine,
// which caps the goroutines left behind by tools that never return.
package resilience
