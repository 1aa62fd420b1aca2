package endpoint

import (
	"context"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/server"
)

// Plugins serves the plugin execution status.
type Plugins struct {
	tracker *plugin.StatusTracker
}

// NewPlugins creates the handler.
func NewPlugins(tracker *plugin.StatusTracker) *Plugins {
	return &Plugins{tracker: tracker}
}

// Register adds the plugin routes to r.
func (h *Plugins) Register(r gin.IRouter) {
	r.GET("/plugins/status", h.status)
	r.GET("/plugins/:id/status", h.pluginStatus)
}

func (h *Plugins) status(c *gin.Context) {
	server.RespondOK(c, h.tracker.Snapshot())
}

func (h *Plugins) pluginStatus(c *gin.Context) {
	st, ok := h.tracker.Get(c.Param("id"))
	if !ok {
		server.RespondWithError(c, apperrors.PluginNotFound(c.Param("id")))
		return
	}
	server.RespondOK(c, st)
}

// HealthCheck reports the plugin layer as degraded while any plugin's
// last invocation failed.
func (h *Plugins) HealthCheck(_ context.Context) []observability.Health {
	failed := h.tracker.Failed()
	if len(failed) == 0 {
		return []observability.Health{{Name: "plugins", Status: observability.HealthStatusUp}}
	}
	details := make(map[string]string, len(failed))
	for _, id := range failed {
		details[id] = "FAILED"
	}
	return []observability.Health{{
		Name:    "plugins",
		Status:  observability.HealthStatusDegraded,
		Message: "plugins failed their last invocation",
		Details: details,
	}}
}
