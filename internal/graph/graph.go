package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	ErrSelfEdge      = errors.New("self edge")
	ErrInvalidWeight = errors.New("rate exp(-weight) must be finite and positive")
	ErrInvalidDepth  = errors.New("max volume exp(-depth) must be finite and positive")
)

// Edge is a directed conversion from one asset to another.
// Weight is -ln(rate); Depth, when set, is -ln(max volume of From tradable at that rate).
type Edge struct {
	From     string
	To       string
	Weight   float64
	Depth    *float64
	Exchange string
	Market   string
}

// Rate returns exp(-Weight).
func (e Edge) Rate() float64 { return math.Exp(-e.Weight) }

// MaxVolume returns exp(-Depth) and false when the edge carries no depth.
func (e Edge) MaxVolume() (float64, bool) {
	if e.Depth == nil {
		return 0, false
	}
	return math.Exp(-*e.Depth), true
}

// rateEdge adapts Edge to gonum's WeightedEdge so the attributes travel with the stored edge.
type rateEdge struct {
	from, to gonum.Node
	edge     Edge
}

func (r rateEdge) From() gonum.Node         { return r.from }
func (r rateEdge) To() gonum.Node           { return r.to }
func (r rateEdge) Weight() float64          { return r.edge.Weight }
func (r rateEdge) ReversedEdge() gonum.Edge { return rateEdge{from: r.to, to: r.from, edge: r.edge} }

// Graph is a directed rate graph keyed by asset name. At most one edge exists per ordered pair;
// adding a second one replaces the first. Safe for concurrent reads once built.
type Graph struct {
	g     *simple.WeightedDirectedGraph
	ids   map[string]int64
	names map[int64]string
}

func New() *Graph {
	return &Graph{
		g:     simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

func (g *Graph) node(name string) gonum.Node {
	if id, ok := g.ids[name]; ok {
		return simple.Node(id)
	}
	n := g.g.NewNode()
	g.g.AddNode(n)
	g.ids[name] = n.ID()
	g.names[n.ID()] = name
	return n
}

// AddEdge inserts or replaces the edge e.From -> e.To.
func (g *Graph) AddEdge(e Edge) error {
	if e.From == e.To {
		return fmt.Errorf("%s -> %s: %w", e.From, e.To, ErrSelfEdge)
	}
	if !finiteExp(e.Weight) {
		return fmt.Errorf("%s -> %s: %w", e.From, e.To, ErrInvalidWeight)
	}
	if e.Depth != nil && !finiteExp(*e.Depth) {
		return fmt.Errorf("%s -> %s: %w", e.From, e.To, ErrInvalidDepth)
	}
	if e.Depth != nil {
		d := *e.Depth
		e.Depth = &d
	}
	g.g.SetWeightedEdge(rateEdge{from: g.node(e.From), to: g.node(e.To), edge: e})
	return nil
}

// finiteExp reports whether exp(-v) is finite and positive.
func finiteExp(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	r := math.Exp(-v)
	return r > 0 && !math.IsInf(r, 1)
}

// Edge returns the edge from -> to if present.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	fid, ok := g.ids[from]
	if !ok {
		return Edge{}, false
	}
	tid, ok := g.ids[to]
	if !ok {
		return Edge{}, false
	}
	we := g.g.WeightedEdge(fid, tid)
	if we == nil {
		return Edge{}, false
	}
	re, ok := we.(rateEdge)
	if !ok {
		return Edge{}, false
	}
	out := re.edge
	if out.Depth != nil {
		d := *out.Depth
		out.Depth = &d
	}
	return out, true
}

// Nodes returns asset names in lexical order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.ids))
	for name := range g.ids {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the assets reachable from name in one hop, in lexical order.
func (g *Graph) Neighbors(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	var out []string
	for _, n := range gonum.NodesOf(g.g.From(id)) {
		out = append(out, g.names[n.ID()])
	}
	sort.Strings(out)
	return out
}

func (g *Graph) NodeCount() int { return g.g.Nodes().Len() }

func (g *Graph) EdgeCount() int { return g.g.Edges().Len() }
