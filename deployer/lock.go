package deployer

import (
	"sync"

	"github.com/google/uuid"
)

// deployGuard serializes deploy pipelines per deployment ID. A second Deploy
// for an ID already in flight is rejected instead of queued; pipelines for
// different IDs run fully in parallel.
type deployGuard struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

func newDeployGuard() *deployGuard {
	return &deployGuard{inFlight: make(map[uuid.UUID]bool)}
}

// acquire reserves the ID, reporting false if a pipeline already holds it.
func (g *deployGuard) acquire(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[id] {
		return false
	}
	g.inFlight[id] = true
	return true
}

func (g *deployGuard) release(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}
