package intake

import (
	"context"
	"time"

	"tobbedansen/models"
)

// Gate decides whether an event currently accepts registrations.
type Gate struct {
	events models.EventRepository
	unset  models.UnsetStart
	now    func() time.Time
}

// NewGate builds a Gate. unset decides events without a start date; now
// defaults to time.Now.
func NewGate(events models.EventRepository, unset models.UnsetStart, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{events: events, unset: unset, now: now}
}

// IsOpen reports whether eventID exists and its registration start date has
// passed. Unknown ids are closed, not an error.
func (g *Gate) IsOpen(ctx context.Context, eventID string) (bool, error) {
	return g.events.FindOpen(ctx, eventID, g.now(), g.unset)
}

// Admission re-applies the same rule inside the composite write.
func (g *Gate) Admission() models.Admission {
	return func(start *time.Time) bool {
		return g.unset.Accepts(start, g.now())
	}
}
