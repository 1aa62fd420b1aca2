package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/pipekit/plugin"
)

// ValidationResult lists every problem found in a pipeline.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type problems []string

func (ps *problems) addf(format string, args ...any) {
	*ps = append(*ps, fmt.Sprintf(format, args...))
}

// Validate checks a pipeline's structure and, when catalog is non-nil, the
// type compatibility of every edge. It never fails fast: all problems are
// accumulated. Tools without catalog metadata, or that declare no types on
// the relevant side, are not type-checked.
func Validate(p *Pipeline, catalog plugin.Catalog) ValidationResult {
	var errs problems
	def := p.def

	if def.ID == "" {
		errs.addf("pipeline id is required")
	}
	if len(def.Nodes) == 0 {
		errs.addf("pipeline has no nodes")
	}

	declared := make(map[string]bool, len(def.Nodes))
	for i, n := range def.Nodes {
		switch {
		case n.ID == "":
			errs.addf("node %d has no id", i)
			continue
		case declared[n.ID]:
			errs.addf("duplicate node id %q", n.ID)
		}
		declared[n.ID] = true
		if n.PluginID == "" || n.ToolID == "" {
			errs.addf("node %q must name a plugin_id and tool_id", n.ID)
		}
	}

	adj := make(map[string][]string, len(declared))
	outDegree := make(map[string]int, len(declared))
	for _, e := range def.Edges {
		ok := true
		if !declared[e.From] {
			errs.addf("edge %s -> %s references unknown node %q", e.From, e.To, e.From)
			ok = false
		}
		if !declared[e.To] {
			errs.addf("edge %s -> %s references unknown node %q", e.From, e.To, e.To)
			ok = false
		}
		if ok {
			adj[e.From] = append(adj[e.From], e.To)
			outDegree[e.From]++
		}
	}

	if len(def.Nodes) > 0 && len(def.EntryNodes) == 0 {
		errs.addf("pipeline has no entry nodes")
	}
	for _, id := range def.EntryNodes {
		if !declared[id] {
			errs.addf("entry node %q is not declared", id)
		}
	}
	for _, id := range def.OutputNodes {
		if !declared[id] {
			errs.addf("output node %q is not declared", id)
		}
	}

	if cycle := findCycle(def.Nodes, adj); cycle != nil {
		errs.addf("cycle detected: %s", strings.Join(cycle, " -> "))
	}

	reached := reachable(def.EntryNodes, declared, adj)
	for _, id := range declaredOrder(def.Nodes) {
		if !reached[id] {
			errs.addf("node %q is not reachable from any entry node", id)
		}
		if outDegree[id] == 0 && !slices.Contains(def.OutputNodes, id) {
			errs.addf("sink node %q must be declared as an output node", id)
		}
	}

	if catalog != nil {
		checkTypes(p, catalog, &errs)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: []string(errs)}
}

// findCycle runs a DFS that keeps visited nodes apart from nodes on the
// current path. A successor already on the path closes a cycle, which is
// returned as a closed walk (first id repeated at the end).
func findCycle(nodes []Node, adj map[string][]string) []string {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onPath[id] = true
		path = append(path, id)
		for _, next := range adj[id] {
			if onPath[next] {
				start := slices.Index(path, next)
				cycle = append(slices.Clone(path[start:]), next)
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}
		onPath[id] = false
		path = path[:len(path)-1]
		return false
	}

	for _, id := range declaredOrder(nodes) {
		if !visited[id] && visit(id) {
			return cycle
		}
	}
	return nil
}

func reachable(entries []string, declared map[string]bool, adj map[string][]string) map[string]bool {
	seen := make(map[string]bool, len(declared))
	var queue []string
	for _, id := range entries {
		if declared[id] && !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// declaredOrder returns unique non-empty node ids in declaration order.
func declaredOrder(nodes []Node) []string {
	ids := make([]string, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID != "" && !seen[n.ID] {
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func checkTypes(p *Pipeline, catalog plugin.Catalog, errs *problems) {
	for _, e := range p.def.Edges {
		from, okFrom := p.Node(e.From)
		to, okTo := p.Node(e.To)
		if !okFrom || !okTo {
			continue
		}
		src, okSrc := catalog.Tool(from.PluginID, from.ToolID)
		dst, okDst := catalog.Tool(to.PluginID, to.ToolID)
		if !okSrc || !okDst {
			continue
		}
		if len(src.OutputTypes) == 0 || len(dst.InputTypes) == 0 {
			continue
		}
		if !intersects(src.OutputTypes, dst.InputTypes) {
			errs.addf("type mismatch on edge %s -> %s: %s.%s outputs %v, %s.%s accepts %v",
				e.From, e.To, from.PluginID, from.ToolID, src.OutputTypes, to.PluginID, to.ToolID, dst.InputTypes)
		}
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
