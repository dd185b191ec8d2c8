package biometric

import "sync"

// MemoryGateway keeps records in process memory. It exists for tests and for
// platforms without a usable credential store; it provides no hardware
// protection and should never back a production vault.
type MemoryGateway struct {
	mu        sync.Mutex
	records   map[string]Record
	available bool
}

// NewMemoryGateway returns an empty in-memory gateway reporting the given
// availability.
func NewMemoryGateway(available bool) *MemoryGateway {
	return &MemoryGateway{
		records:   make(map[string]Record),
		available: available,
	}
}

func (g *MemoryGateway) Available() bool {
	return g.available
}

func (g *MemoryGateway) Enabled(spaceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[spaceID]
	return ok
}

func (g *MemoryGateway) Store(rec Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[rec.SpaceID] = rec
	return nil
}

func (g *MemoryGateway) Retrieve(spaceID string) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[spaceID]
	if !ok {
		return nil, ErrNotEnabled
	}
	return &rec, nil
}

func (g *MemoryGateway) Delete(spaceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, spaceID)
	return nil
}
