package dag

import (
	"context"
	"sync"
	"testing"

	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/sandbox"
)

// callLog records tool invocations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(id string) {
	l.mu.Lock()
	l.calls = append(l.calls, id)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingTool logs its name and returns out.
func recordingTool(log *callLog, name string, out map[string]any) plugin.ToolHandler {
	return func(_ context.Context, _ map[string]any) (map[string]any, error) {
		log.add(name)
		return out, nil
	}
}

func detectReadPlugins(t *testing.T, log *callLog) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	must(t, reg.Register(
		plugin.NewStatic("yolo", map[string]plugin.ToolHandler{
			"player_detection": recordingTool(log, "detect", map[string]any{"detections": []any{"p1"}}),
		}),
		plugin.ToolMetadata{ToolID: "player_detection", InputTypes: []string{"image"}, OutputTypes: []string{"detections"}},
	))
	must(t, reg.Register(
		plugin.NewStatic("ocr", map[string]plugin.ToolHandler{
			"analyze": recordingTool(log, "read", map[string]any{"text": "23"}),
		}),
		plugin.ToolMetadata{ToolID: "analyze", InputTypes: []string{"detections", "image"}, OutputTypes: []string{"text"}},
	))
	return reg
}

func detectReadDefinition() Definition {
	return Definition{
		ID:   "player_recognition",
		Name: "Player recognition",
		Nodes: []Node{
			{ID: "detect", PluginID: "yolo", ToolID: "player_detection"},
			{ID: "read", PluginID: "ocr", ToolID: "analyze"},
		},
		Edges:       []Edge{{From: "detect", To: "read"}},
		EntryNodes:  []string{"detect"},
		OutputNodes: []string{"read"},
	}
}

func newTestExecutor(t *testing.T, plugins *plugin.Registry, rec *observability.Recorder, defs ...Definition) *Executor {
	t.Helper()
	reg := NewRegistry(t.TempDir(), plugins)
	for _, def := range defs {
		if res := reg.Add(Compile(def)); !res.Valid {
			t.Fatalf("pipeline %s invalid: %v", def.ID, res.Errors)
		}
	}
	sb := sandbox.New(sandbox.Config{TimeoutSeconds: 5},
		sandbox.WithReporter(plugins.Status()),
		sandbox.WithMemorySampler(func() (sandbox.MemoryUsage, error) { return sandbox.MemoryUsage{}, nil }),
	)
	return NewExecutor(reg, plugins, sb, WithEvents(rec))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
