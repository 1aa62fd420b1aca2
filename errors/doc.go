// Package errors provides the structured error type shared by the pipeline
// engine, its HTTP surface, and the streaming controller.
//
// Every error carries a machine-readable code, an HTTP status hint, and a
// retryable flag so transport layers can translate failures without
// inspecting messages.
package errors
