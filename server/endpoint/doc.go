// Package endpoint holds the HTTP handlers of the pipekit API.
package endpoint
