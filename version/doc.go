// Package version reports the build identity of the pipekit binary.
//
// Release builds set the version and commit with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/pipekit/version.Version=1.2.0" ./cmd/pipekit
//
// Unset values fall back to the VCS stamps the Go toolchain embeds.
package version
