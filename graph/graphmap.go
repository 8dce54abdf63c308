package graph

import (
	"context"
	"sync"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// GraphMap is the process-wide sbom_id→Graph cache spec §5 names: a
// fine-grained lock guards only the map lookup/insert, never a suspension
// point, matching the single documented exception to "no lock across an
// I/O boundary". A graph is either Unloaded or Loaded; LoadOrCreate is
// idempotent per SBOM id — concurrent callers loading the same id both
// get a correct graph, the second one just pays for a redundant load
// instead of blocking on the first (loading is read-only and cheap enough
// that a load-then-discard race is preferable to holding the lock across
// a database round trip).
type GraphMap struct {
	mu sync.RWMutex
	m  map[string]*Graph
}

// NewGraphMap returns an empty cache.
func NewGraphMap() *GraphMap {
	return &GraphMap{m: make(map[string]*Graph)}
}

// Get returns the cached graph for sbomID, if loaded.
func (gm *GraphMap) Get(sbomID string) (*Graph, bool) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	g, ok := gm.m[sbomID]
	return g, ok
}

// Put replaces the cached graph for sbomID.
func (gm *GraphMap) Put(sbomID string, g *Graph) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.m[sbomID] = g
}

// LoadOrCreate returns the cached graph for sbomID, loading and caching it
// from db first if it is Unloaded.
func (gm *GraphMap) LoadOrCreate(ctx context.Context, db *postgres.Store, sbomID vexgraph.Id) (*Graph, error) {
	key := sbomID.String()
	if g, ok := gm.Get(key); ok {
		return g, nil
	}
	g, err := LoadGraph(ctx, db, sbomID)
	if err != nil {
		return nil, err
	}
	gm.Put(key, g)
	return g, nil
}

// DefaultGraphMap is the shared cache analysis callers use unless they
// need an isolated one (tests, multi-tenant process separation).
var DefaultGraphMap = NewGraphMap()
