// Package stream runs a pipeline per inbound frame on a long-lived
// connection.
//
// Each connection owns one Session. Frames are validated, executed
// strictly in arrival order, and answered with exactly one message: a
// result, a dropped marker, or an error after which the connection is
// closed. Backpressure withholds results when per-frame latency is above
// budget, and a slow_down warning is sent at most once per session.
package stream
