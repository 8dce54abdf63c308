package graph

import (
	"context"
	"sort"

	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/cpe"
	"github.com/quay/vexgraph/internal/purl"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// RefKind selects how Retrieve resolves its starting node.
type RefKind int

// Defined ref kinds, per spec §4.8's three retrieve variants.
const (
	// RefName matches nodes by exact name.
	RefName RefKind = iota
	// RefPurl matches nodes carrying the given PURL, compared in
	// canonical form so equivalent-but-differently-ordered qualifier
	// strings still match.
	RefPurl
	// RefCpe matches nodes whose CPE is a subset of (i.e. is matched by)
	// the given CPE under cpe.Superset, so a query CPE with wildcarded
	// attributes matches every concrete node CPE it covers.
	RefCpe
	// RefFilter matches nodes by a conjunction of attribute filters, per
	// spec §4.8's "by complex query (filter expression over node
	// attributes)" variant.
	RefFilter
)

// NodeFilter is one attribute=value condition in a RefFilter query. Attr
// names one of the node attributes in spec §4.7's load_graph node shape:
// "name", "version", "product_name", "product_version", "document_id".
type NodeFilter struct {
	Attr  string
	Value string
}

// Ref identifies the node(s) a Retrieve call starts from. Value is used by
// RefName/RefPurl/RefCpe; Filters is used by RefFilter.
type Ref struct {
	Kind    RefKind
	Value   string
	Filters []NodeFilter
}

func nodeAttr(n Node, attr string) (string, bool) {
	switch attr {
	case "name":
		return n.Name, true
	case "version":
		return n.Version, true
	case "product_name":
		return n.ProductName, true
	case "product_version":
		return n.ProductVersion, true
	case "document_id":
		return n.DocumentID, true
	default:
		return "", false
	}
}

// Options bounds one Retrieve call.
type Options struct {
	Direction     Direction
	Depth         int
	Relationships []vexgraph.Relationship
	// LatestVersion restricts matches to the single highest-versioned
	// node among those otherwise matched by Ref, per spec §4.8's
	// "latest-version variant" of each query kind. Version ordering
	// here is a plain string comparison: the analysis graph has no
	// per-node version scheme to dispatch a real comparator against.
	LatestVersion bool
}

// Page bounds how many matched start nodes Retrieve expands, independent
// of Options.Depth which bounds how far each expansion walks.
type Page struct {
	Limit  int
	Offset int
}

// Result is one matched start node together with its collected traversal.
type Result struct {
	Base   Node
	Traces []CollectedNode
}

func matchNodes(g *Graph, ref Ref) []int {
	var out []int
	switch ref.Kind {
	case RefName:
		for i, n := range g.nodes {
			if n.Name == ref.Value {
				out = append(out, i)
			}
		}
	case RefPurl:
		want, err := purl.Parse(ref.Value)
		if err != nil {
			return nil
		}
		wantCanon := want.Canonical()
		for i, n := range g.nodes {
			for _, p := range n.Purls {
				if got, err := purl.Parse(p); err == nil && got.Canonical() == wantCanon {
					out = append(out, i)
					break
				}
			}
		}
	case RefCpe:
		want, err := cpe.Unbind(ref.Value)
		if err != nil {
			return nil
		}
		for i, n := range g.nodes {
			for _, c := range n.Cpes {
				got, err := cpe.Unbind(c)
				if err != nil {
					continue
				}
				if cpe.Superset(want, got) {
					out = append(out, i)
					break
				}
			}
		}
	case RefFilter:
		for i, n := range g.nodes {
			matched := true
			for _, f := range ref.Filters {
				got, ok := nodeAttr(n, f.Attr)
				if !ok || got != f.Value {
					matched = false
					break
				}
			}
			if matched && len(ref.Filters) > 0 {
				out = append(out, i)
			}
		}
	}
	return out
}

func latestVersionOnly(g *Graph, idx []int) []int {
	if len(idx) <= 1 {
		return idx
	}
	sort.Slice(idx, func(i, j int) bool {
		return g.nodes[idx[i]].Version < g.nodes[idx[j]].Version
	})
	return idx[len(idx)-1:]
}

// Retrieve implements spec §4.8's retrieve(ref, options, paginated): it
// resolves ref to one or more start nodes in g, then runs a Collector from
// each, per options. Matched start nodes are ordered by node id for
// deterministic pagination, then paged per p.
func Retrieve(ctx context.Context, gm *GraphMap, db *postgres.Store, g *Graph, ref Ref, opts Options, p Page) ([]Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "graph.Retrieve")
	idx := matchNodes(g, ref)
	if len(idx) == 0 {
		return nil, nil
	}
	sort.Slice(idx, func(i, j int) bool { return g.nodes[idx[i]].NodeID < g.nodes[idx[j]].NodeID })
	if opts.LatestVersion {
		idx = latestVersionOnly(g, idx)
	}

	start, end := pageBounds(len(idx), p)
	idx = idx[start:end]

	results := make([]Result, 0, len(idx))
	for _, i := range idx {
		depth := opts.Depth
		if depth <= 0 {
			depth = 1
		}
		c := NewCollector(gm, db, g, i, opts.Direction, depth, opts.Relationships)
		collected, err := c.Collect(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Base: g.Node(i), Traces: collected})
	}
	return results, nil
}

func pageBounds(n int, p Page) (int, int) {
	offset := p.Offset
	if offset < 0 || offset > n {
		offset = n
	}
	limit := p.Limit
	if limit <= 0 {
		limit = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
