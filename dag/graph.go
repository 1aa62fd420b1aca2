package dag

import (
	"fmt"
	"maps"
	"slices"
)

// Node is one tool invocation point.
type Node struct {
	ID          string         `yaml:"id" json:"id" validate:"required"`
	PluginID    string         `yaml:"plugin_id" json:"plugin_id" validate:"required"`
	ToolID      string         `yaml:"tool_id" json:"tool_id" validate:"required"`
	InputSchema map[string]any `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
}

// Edge is a dependency: To runs after From.
type Edge struct {
	From string `yaml:"from_node" json:"from_node" validate:"required"`
	To   string `yaml:"to_node" json:"to_node" validate:"required"`
}

// Definition is the document form of a pipeline.
type Definition struct {
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Nodes       []Node   `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
	Edges       []Edge   `yaml:"edges" json:"edges" validate:"dive"`
	EntryNodes  []string `yaml:"entry_nodes" json:"entry_nodes"`
	OutputNodes []string `yaml:"output_nodes" json:"output_nodes"`
}

// Pipeline is an immutable compiled graph. Accessors return copies.
type Pipeline struct {
	def   Definition
	index map[string]int
	succ  map[string][]string
	pred  map[string][]string
}

// Compile builds a Pipeline from a definition. It does not validate;
// use Validate before executing. Slices are copied so later changes to
// def do not affect the pipeline.
func Compile(def Definition) *Pipeline {
	def = cloneDefinition(def)
	p := &Pipeline{
		def:   def,
		index: make(map[string]int, len(def.Nodes)),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
	for i, n := range def.Nodes {
		if _, dup := p.index[n.ID]; !dup {
			p.index[n.ID] = i
		}
	}
	for _, e := range def.Edges {
		p.succ[e.From] = append(p.succ[e.From], e.To)
		p.pred[e.To] = append(p.pred[e.To], e.From)
	}
	return p
}

func cloneDefinition(def Definition) Definition {
	def.Nodes = slices.Clone(def.Nodes)
	for i := range def.Nodes {
		def.Nodes[i].InputSchema = maps.Clone(def.Nodes[i].InputSchema)
	}
	def.Edges = slices.Clone(def.Edges)
	def.EntryNodes = slices.Clone(def.EntryNodes)
	def.OutputNodes = slices.Clone(def.OutputNodes)
	return def
}

func (p *Pipeline) ID() string          { return p.def.ID }
func (p *Pipeline) Name() string        { return p.def.Name }
func (p *Pipeline) Description() string { return p.def.Description }

// Definition returns a copy of the source definition.
func (p *Pipeline) Definition() Definition { return cloneDefinition(p.def) }

// Nodes returns the nodes in declaration order.
func (p *Pipeline) Nodes() []Node { return cloneDefinition(p.def).Nodes }

// Edges returns the edges in declaration order.
func (p *Pipeline) Edges() []Edge { return slices.Clone(p.def.Edges) }

// EntryNodes returns the declared entry node ids.
func (p *Pipeline) EntryNodes() []string { return slices.Clone(p.def.EntryNodes) }

// OutputNodes returns the declared output node ids.
func (p *Pipeline) OutputNodes() []string { return slices.Clone(p.def.OutputNodes) }

// Node returns the first node declared with id.
func (p *Pipeline) Node(id string) (Node, bool) {
	i, ok := p.index[id]
	if !ok {
		return Node{}, false
	}
	return p.def.Nodes[i], true
}

// Successors returns the targets of id's outgoing edges.
func (p *Pipeline) Successors(id string) []string { return slices.Clone(p.succ[id]) }

// Predecessors returns the sources of id's incoming edges.
func (p *Pipeline) Predecessors(id string) []string { return slices.Clone(p.pred[id]) }

// TopologicalOrder returns node ids so that every edge points forward,
// using Kahn's algorithm. Ties are broken by declaration order, so the
// result is deterministic. Unknown edge endpoints and cycles are errors.
func (p *Pipeline) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(p.index))
	for id := range p.index {
		inDegree[id] = 0
	}
	for _, e := range p.def.Edges {
		if _, ok := p.index[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if _, ok := p.index[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
	}

	var queue []string
	seeded := make(map[string]bool, len(p.index))
	for _, n := range p.def.Nodes {
		if seeded[n.ID] {
			continue
		}
		seeded[n.ID] = true
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(p.index))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range p.succ[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(p.index) {
		return nil, fmt.Errorf("dag: cycle detected, ordered %d of %d nodes", len(order), len(p.index))
	}
	return order, nil
}

// Summary is the list view of a pipeline.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	NodeCount   int    `json:"node_count"`
}

// Info is the metadata view of a pipeline.
type Info struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	NodeCount   int      `json:"node_count"`
	EdgeCount   int      `json:"edge_count"`
	EntryNodes  []string `json:"entry_nodes"`
	OutputNodes []string `json:"output_nodes"`
}

// Summary returns the list view.
func (p *Pipeline) Summary() Summary {
	return Summary{ID: p.def.ID, Name: p.def.Name, Description: p.def.Description, NodeCount: len(p.def.Nodes)}
}

// Info returns the metadata view.
func (p *Pipeline) Info() Info {
	return Info{
		ID:          p.def.ID,
		Name:        p.def.Name,
		Description: p.def.Description,
		NodeCount:   len(p.def.Nodes),
		EdgeCount:   len(p.def.Edges),
		EntryNodes:  p.EntryNodes(),
		OutputNodes: p.OutputNodes(),
	}
}
