// Package events describes what happened to a match after a mutation
// committed, and the sinks those facts are published to.
package events

import (
	"context"
	"errors"
	"time"

	"fitmatch/backend/internal/models"

	"github.com/google/uuid"
)

type Type string

const (
	MatchCreated   Type = "match.created"
	MatchUpdated   Type = "match.updated"
	MatchCancelled Type = "match.cancelled"
	MatchDeleted   Type = "match.deleted"
	MatchJoined    Type = "match.joined"
	MatchLeft      Type = "match.left"
)

// Event is a committed change to a match. Match is the state right after
// the change; for MatchDeleted it is the last state before removal.
type Event struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	MatchID    uint          `json:"match_id"`
	ActorID    uint          `json:"actor_id"`
	Match      *models.Match `json:"match"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func New(t Type, actorID uint, m *models.Match) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		MatchID:    m.ID,
		ActorID:    actorID,
		Match:      m,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several sinks and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
