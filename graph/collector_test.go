package graph

import (
	"context"
	"testing"

	"github.com/quay/vexgraph"
)

// collectorGraph builds root -> a -> b -> a (a cycle back through a) plus
// an unrelated root -> c edge, to exercise both cycle-safety and the
// relationship whitelist without needing a database.
func collectorGraph() *Graph {
	g := &Graph{index: make(map[string]int), out: make(map[int][]graphEdge), in: make(map[int][]graphEdge)}
	root := g.addNode(Node{NodeID: "root", Name: "root"})
	a := g.addNode(Node{NodeID: "a", Name: "a"})
	b := g.addNode(Node{NodeID: "b", Name: "b"})
	c := g.addNode(Node{NodeID: "c", Name: "c"})

	edge := func(from, to int, rel vexgraph.Relationship) {
		g.out[from] = append(g.out[from], graphEdge{to: to, rel: rel})
		g.in[to] = append(g.in[to], graphEdge{to: from, rel: rel})
	}
	edge(root, a, vexgraph.DependencyOf)
	edge(a, b, vexgraph.DependencyOf)
	edge(b, a, vexgraph.DependencyOf) // cycle
	edge(root, c, vexgraph.TestDependencyOf)
	return g
}

func TestCollectorDescendants(t *testing.T) {
	ctx := context.Background()
	g := collectorGraph()
	root, _ := g.NodeByID("root")

	c := NewCollector(NewGraphMap(), nil, g, root, Outgoing, 10, nil)
	got, err := c.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(got), 2; got != want {
		t.Fatalf("got: %d top-level descendants, want: %d", got, want)
	}

	var aResult *CollectedNode
	for i := range got {
		if got[i].Base.NodeID == "a" {
			aResult = &got[i]
		}
	}
	if aResult == nil {
		t.Fatal("expected a descendant node for \"a\"")
	}
	// a -> b should appear once; b -> a must not re-expand since a is
	// already visited.
	if got, want := len(aResult.Descendants), 1; got != want {
		t.Fatalf("got: %d children of a, want: %d", got, want)
	}
	bResult := aResult.Descendants[0]
	if got, want := bResult.Base.NodeID, "b"; got != want {
		t.Fatalf("got: %q, want: %q", got, want)
	}
	if len(bResult.Descendants) != 1 || bResult.Descendants[0].Base.NodeID != "a" || len(bResult.Descendants[0].Descendants) != 0 {
		t.Errorf("expected b's back-edge to a as a single unexpanded leaf, got: %+v", bResult.Descendants)
	}
}

func TestCollectorRelationshipWhitelist(t *testing.T) {
	ctx := context.Background()
	g := collectorGraph()
	root, _ := g.NodeByID("root")

	c := NewCollector(NewGraphMap(), nil, g, root, Outgoing, 10, []vexgraph.Relationship{vexgraph.DependencyOf})
	got, err := c.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// root->c is TestDependencyOf, filtered out of the result even though
	// recursion still happened.
	if got, want := len(got), 1; got != want {
		t.Fatalf("got: %d filtered descendants, want: %d", got, want)
	}
	if got, want := got[0].Base.NodeID, "a"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestCollectorDepthZero(t *testing.T) {
	ctx := context.Background()
	g := collectorGraph()
	root, _ := g.NodeByID("root")

	c := NewCollector(NewGraphMap(), nil, g, root, Outgoing, 0, nil)
	got, err := c.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got: %+v, want: nil", got)
	}
}

func TestCollectorAncestors(t *testing.T) {
	ctx := context.Background()
	g := collectorGraph()
	b, _ := g.NodeByID("b")

	c := NewCollector(NewGraphMap(), nil, g, b, Incoming, 10, nil)
	got, err := c.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(got), 1; got != want {
		t.Fatalf("got: %d ancestors of b, want: %d", got, want)
	}
	if got, want := got[0].Base.NodeID, "a"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	// a's ancestors are root and, via the b -> a back-edge, b itself; b is
	// already visited, so it is listed but not expanded again.
	if got, want := len(got[0].Ancestors), 2; got != want {
		t.Fatalf("got: %d ancestors of a, want: %d", got, want)
	}
	if got, want := got[0].Ancestors[0].Base.NodeID, "root"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if b := got[0].Ancestors[1]; b.Base.NodeID != "b" || len(b.Ancestors) != 0 {
		t.Errorf("expected b as an unexpanded leaf, got: %+v", b)
	}
}
