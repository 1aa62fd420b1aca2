// Package plugin holds the plugin contract, the concurrency-safe plugin
// registry with its tool metadata catalog, and the execution status
// tracker fed by sandbox outcomes.
//
// Plugins are registered once at startup, either in process or from YAML
// manifests. A manifest with an endpoint registers an HTTPPlugin that
// calls the tool over HTTP.
package plugin
