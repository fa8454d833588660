// Package grant models execution extension grants: permission to keep
// running briefly while background work settles.
package grant

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ID identifies an acquired grant
type ID uint64

// Invalid is the "no grant" sentinel
const Invalid ID = 0

// Grantor issues and revokes grants
type Grantor interface {
	Begin(name string, expiration func()) ID
	End(id ID)
}

// ProcessGrantor hands out grants bounded by a fixed budget. When the budget
// elapses before End is called, the expiration handler runs and the grant ends.
type ProcessGrantor struct {
	budget time.Duration
	logger *logrus.Logger

	mu     sync.Mutex
	nextID ID
	active map[ID]*time.Timer
}

// NewProcessGrantor creates a grantor with the given budget per grant
func NewProcessGrantor(budget time.Duration, logger *logrus.Logger) *ProcessGrantor {
	return &ProcessGrantor{
		budget: budget,
		logger: logger,
		active: make(map[ID]*time.Timer),
	}
}

// Begin acquires a grant tagged with name
func (g *ProcessGrantor) Begin(name string, expiration func()) ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := g.nextID
	g.active[id] = time.AfterFunc(g.budget, func() {
		g.logger.WithFields(logrus.Fields{
			"grant": name,
			"id":    id,
		}).Warn("Execution grant expired")
		if expiration != nil {
			expiration()
		}
		g.End(id)
	})

	g.logger.WithFields(logrus.Fields{
		"grant":  name,
		"id":     id,
		"budget": g.budget,
	}).Debug("Execution grant acquired")
	return id
}

// End releases a grant. Unknown or already ended ids are ignored.
func (g *ProcessGrantor) End(id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timer, ok := g.active[id]
	if !ok {
		return
	}
	timer.Stop()
	delete(g.active, id)
	g.logger.WithField("id", id).Debug("Execution grant ended")
}

// Active returns the number of outstanding grants
func (g *ProcessGrantor) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// Cell holds at most one grant. It moves none -> active on Acquire and
// active -> none on Release.
type Cell struct {
	mu      sync.Mutex
	grantor Grantor
	id      ID
}

// NewCell creates an empty cell backed by grantor
func NewCell(grantor Grantor) *Cell {
	return &Cell{grantor: grantor}
}

// Acquire begins a grant unless one is already held. It reports whether a
// new grant was acquired.
func (c *Cell) Acquire(name string, expiration func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id != Invalid {
		return false
	}
	c.id = c.grantor.Begin(name, expiration)
	return c.id != Invalid
}

// Release ends the held grant and reports whether one was held
func (c *Cell) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id == Invalid {
		return false
	}
	c.grantor.End(c.id)
	c.id = Invalid
	return true
}

// Held reports whether the cell currently holds a grant
func (c *Cell) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id != Invalid
}
