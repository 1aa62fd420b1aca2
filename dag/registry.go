package dag

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/plugin"
)

// Registry indexes validated pipelines by id. Lookups may run concurrently
// with a reload; a reload swaps the whole index at once.
type Registry struct {
	dir     string
	catalog plugin.Catalog
	log     *logger.Logger

	// loadMu serializes reloads so an older scan never replaces a newer index.
	loadMu sync.Mutex

	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates an empty registry for dir. catalog may be nil, in
// which case type compatibility is not checked on load.
func NewRegistry(dir string, catalog plugin.Catalog) *Registry {
	return &Registry{
		dir:       dir,
		catalog:   catalog,
		log:       logger.WithComponent("dag.registry"),
		pipelines: make(map[string]*Pipeline),
	}
}

// Dir returns the document directory.
func (r *Registry) Dir() string { return r.dir }

// Load reads every document in the directory and replaces the index.
// Documents that fail to parse or validate, and duplicate ids, are logged
// and skipped. Only an unreadable directory is an error.
func (r *Registry) Load() (int, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	paths, err := documentPaths(r.dir)
	if err != nil {
		return 0, fmt.Errorf("dag: reading pipeline dir %s: %w", r.dir, err)
	}

	next := make(map[string]*Pipeline, len(paths))
	for _, path := range paths {
		def, err := LoadDefinition(path)
		if err != nil {
			r.log.Warn("skipping malformed pipeline document", logger.Fields(
				logger.FieldPath, path, logger.FieldError, err.Error()))
			continue
		}
		if _, dup := next[def.ID]; dup {
			r.log.Warn("skipping duplicate pipeline id", logger.Fields(
				logger.FieldPath, path, logger.FieldPipelineID, def.ID))
			continue
		}
		p := Compile(def)
		if res := Validate(p, r.catalog); !res.Valid {
			r.log.Warn("skipping invalid pipeline", logger.Fields(
				logger.FieldPath, path,
				logger.FieldPipelineID, def.ID,
				"errors", res.Errors,
			))
			continue
		}
		next[def.ID] = p
	}

	r.mu.Lock()
	r.pipelines = next
	r.mu.Unlock()

	r.log.Info("pipelines loaded", logger.Fields("count", len(next), logger.FieldPath, r.dir))
	return len(next), nil
}

// Add validates and registers a single pipeline, replacing any pipeline
// with the same id.
func (r *Registry) Add(p *Pipeline) ValidationResult {
	res := Validate(p, r.catalog)
	if !res.Valid {
		return res
	}
	r.mu.Lock()
	r.pipelines[p.ID()] = p
	r.mu.Unlock()
	return res
}

// Get returns the pipeline registered under id.
func (r *Registry) Get(id string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[id]
	return p, ok
}

// Info returns metadata for the pipeline registered under id.
func (r *Registry) Info(id string) (Info, bool) {
	p, ok := r.Get(id)
	if !ok {
		return Info{}, false
	}
	return p.Info(), true
}

// List returns summaries of all pipelines ordered by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p.Summary())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Watch reloads the registry whenever a document in the directory changes,
// debounced by delay (100ms when zero). Reloads run on the calling
// goroutine, one at a time. It blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dag: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("dag: watching %s: %w", r.dir, err)
	}

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := r.Load(); err != nil {
				r.log.Error("pipeline reload failed", logger.ErrorFields("reload", err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDocument(filepath.Clean(event.Name)) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			timer.Reset(delay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("pipeline watcher error", logger.Fields(logger.FieldError, err.Error()))
		}
	}
}
