package graph

import (
	"context"
	"sync"

	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// Direction selects which side of an edge a Collector walks.
type Direction int

const (
	// Outgoing walks edges away from the start node, collecting
	// descendants.
	Outgoing Direction = iota
	// Incoming walks edges into the start node, collecting ancestors.
	Incoming
)

// visitKey identifies one (graph, node) pair across however many graphs a
// traversal crosses via External references.
type visitKey struct {
	graph *Graph
	node  int
}

// visitedSet is shared across every Collector spawned from the same
// top-level call, so a cycle (including one that loops back through an
// External reference into a different graph and back) is expanded at
// most once per node.
type visitedSet struct {
	mu   sync.Mutex
	seen map[visitKey]bool
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[visitKey]bool)}
}

// visit reports whether (g, n) had not yet been seen, marking it seen as a
// side effect.
func (v *visitedSet) visit(g *Graph, n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	k := visitKey{g, n}
	if v.seen[k] {
		return false
	}
	v.seen[k] = true
	return true
}

// CollectedNode is one result record of a traversal: the node itself, the
// relationship that connected it to its caller (nil for the start node),
// and nested ancestor/descendant subtrees.
type CollectedNode struct {
	Base         Node
	Relationship *vexgraph.Relationship
	Ancestors    []CollectedNode
	Descendants  []CollectedNode
}

// Collector performs one bounded-depth, cycle-safe traversal of an SBOM
// graph, transparently following External node references into other
// SBOMs' graphs via graphMap.
type Collector struct {
	graphMap      *GraphMap
	db            *postgres.Store
	graph         *Graph
	node          int
	direction     Direction
	depth         int
	relationships map[vexgraph.Relationship]bool
	visited       *visitedSet
}

// NewCollector starts a traversal from node in graph. An empty
// relationships set means unfiltered: every edge is followed.
func NewCollector(graphMap *GraphMap, db *postgres.Store, g *Graph, node int, direction Direction, depth int, relationships []vexgraph.Relationship) *Collector {
	whitelist := make(map[vexgraph.Relationship]bool, len(relationships))
	for _, r := range relationships {
		whitelist[r] = true
	}
	return &Collector{
		graphMap: graphMap, db: db, graph: g, node: node,
		direction: direction, depth: depth, relationships: whitelist,
		visited: newVisitedSet(),
	}
}

// with continues the same traversal (same visited set, depth, direction,
// filter) rooted at a different graph and node, for following an
// External reference.
func (c *Collector) with(g *Graph, node int) *Collector {
	cp := *c
	cp.graph = g
	cp.node = node
	return &cp
}

// continueNode descends one level within the same graph.
func (c *Collector) continueNode(node int) *Collector {
	cp := *c
	cp.node = node
	cp.depth = c.depth - 1
	return &cp
}

// Collect runs the traversal from c's start node, returning nil if depth
// is exhausted or the node was already visited (both are "not processed",
// not errors).
func (c *Collector) Collect(ctx context.Context) ([]CollectedNode, error) {
	if c.depth <= 0 {
		return nil, nil
	}
	if !c.visited.visit(c.graph, c.node) {
		return nil, nil
	}

	n := c.graph.Node(c.node)
	if n.External {
		externalSbomID, err := c.db.FindSbomIDByDocumentID(ctx, n.ExternalDocumentID)
		if err != nil {
			zlog.Info(ctx).Str("external_document_id", n.ExternalDocumentID).Msg("unresolved external sbom reference, treated as leaf")
			return nil, nil
		}
		externalGraph, err := c.graphMap.LoadOrCreate(ctx, c.db, externalSbomID)
		if err != nil {
			zlog.Info(ctx).Str("external_sbom_id", externalSbomID.String()).Err(err).Msg("unable to load external graph, treated as leaf")
			return nil, nil
		}
		externalIdx, ok := externalGraph.NodeByID(n.ExternalNodeID)
		if !ok {
			zlog.Info(ctx).Str("external_node_id", n.ExternalNodeID).Msg("external node not found, treated as leaf")
			return nil, nil
		}
		return c.with(externalGraph, externalIdx).collectEdges(ctx)
	}
	return c.collectEdges(ctx)
}

func (c *Collector) collectEdges(ctx context.Context) ([]CollectedNode, error) {
	var edges []graphEdge
	if c.direction == Incoming {
		edges = c.graph.in[c.node]
	} else {
		edges = c.graph.out[c.node]
	}

	var result []CollectedNode
	for _, e := range edges {
		sub, err := c.continueNode(e.to).Collect(ctx)
		if err != nil {
			return nil, err
		}

		if len(c.relationships) > 0 && !c.relationships[e.rel] {
			continue
		}

		neighbor := c.graph.Node(e.to)
		rel := e.rel
		cn := CollectedNode{Base: neighbor, Relationship: &rel}
		if c.direction == Incoming {
			cn.Ancestors = sub
		} else {
			cn.Descendants = sub
		}
		result = append(result, cn)
	}
	return result, nil
}

// Roots returns every node of g with no incoming edges, deduplicated by
// node id (a single graph never has two nodes sharing one node id, so
// this is a plain filter rather than a set).
func Roots(g *Graph) []Node {
	var roots []Node
	for i, n := range g.nodes {
		if len(g.in[i]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// TraceStep is one hop of a root trace: the node reached, and the
// relationship that connected it to the previous hop.
type TraceStep struct {
	Base         Node
	Relationship vexgraph.Relationship
}

// RootTraces returns every path from node up through ancestors to a root,
// each expressed as the ordered list of hops taken to get there.
func RootTraces(g *Graph, node int) [][]TraceStep {
	incoming := g.in[node]
	if len(incoming) == 0 {
		return [][]TraceStep{nil}
	}
	var traces [][]TraceStep
	for _, e := range incoming {
		step := TraceStep{Base: g.Node(e.to), Relationship: e.rel}
		for _, sub := range RootTraces(g, e.to) {
			traces = append(traces, append([]TraceStep{step}, sub...))
		}
	}
	return traces
}
