package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/quay/vexgraph"
)

// newTestGraph builds a small graph directly against the unexported
// fields, the same way LoadGraph would after reading rows back from
// postgres, without needing a database connection.
func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := &Graph{
		sbomID: vexgraph.NewUUIDId(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
		index:  make(map[string]int),
		out:    make(map[int][]graphEdge),
		in:     make(map[int][]graphEdge),
	}
	root := g.addNode(Node{NodeID: "root", Name: "root-app", Version: "1.0.0"})
	dep := g.addNode(Node{NodeID: "dep-a", Name: "libfoo", Version: "2.3.4"})
	transitive := g.addNode(Node{NodeID: "dep-b", Name: "libbar", Version: "0.9.0"})
	ext := g.addNode(Node{NodeID: "ext-1", External: true, ExternalDocumentID: "doc-ext", ExternalNodeID: "remote-node"})

	g.out[root] = append(g.out[root], graphEdge{to: dep, rel: vexgraph.DependencyOf})
	g.in[dep] = append(g.in[dep], graphEdge{to: root, rel: vexgraph.DependencyOf})

	g.out[dep] = append(g.out[dep], graphEdge{to: transitive, rel: vexgraph.DependencyOf})
	g.in[transitive] = append(g.in[transitive], graphEdge{to: dep, rel: vexgraph.DependencyOf})

	g.out[dep] = append(g.out[dep], graphEdge{to: ext, rel: vexgraph.DependencyOf})
	g.in[ext] = append(g.in[ext], graphEdge{to: dep, rel: vexgraph.DependencyOf})

	return g
}

func TestGraphLookup(t *testing.T) {
	g := newTestGraph(t)

	if got, want := g.Len(), 4; got != want {
		t.Errorf("got: %d nodes, want: %d", got, want)
	}
	idx, ok := g.NodeByID("dep-a")
	if !ok {
		t.Fatal("expected dep-a to resolve")
	}
	if got, want := g.Node(idx).Name, "libfoo"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if _, ok := g.NodeByID("missing"); ok {
		t.Error("expected missing node id to not resolve")
	}
}

func TestRoots(t *testing.T) {
	g := newTestGraph(t)
	roots := Roots(g)
	if got, want := len(roots), 1; got != want {
		t.Fatalf("got: %d roots, want: %d", got, want)
	}
	if got, want := roots[0].NodeID, "root"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestRootTraces(t *testing.T) {
	g := newTestGraph(t)
	rootIdx, _ := g.NodeByID("root")
	transitiveIdx, _ := g.NodeByID("dep-b")

	if traces := RootTraces(g, rootIdx); len(traces) != 1 || traces[0] != nil {
		t.Errorf("root should trace to itself with no hops, got: %+v", traces)
	}

	traces := RootTraces(g, transitiveIdx)
	if got, want := len(traces), 1; got != want {
		t.Fatalf("got: %d traces, want: %d", got, want)
	}
	if got, want := len(traces[0]), 2; got != want {
		t.Fatalf("got: %d hops, want: %d", got, want)
	}
	if diff := cmp.Diff("dep-a", traces[0][0].Base.NodeID); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff("root", traces[0][1].Base.NodeID); diff != "" {
		t.Error(diff)
	}
}
