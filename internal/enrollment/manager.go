// Package enrollment owns match state transitions and the participant
// roster. Every operation that touches a match runs as one transaction over
// a locked, version-checked match row, so the advertised occupancy always
// equals the number of ACTIVE enrollments, even under concurrent requests
// from several processes.
package enrollment

import (
	"context"
	"errors"
	"fmt"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/cache"
	"fitmatch/backend/internal/events"
	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/models"
	"fitmatch/backend/internal/store"
)

type Manager struct {
	store     *store.Store
	cache     cache.MatchCache
	publisher events.Publisher
	log       *logger.Logger
}

type Option func(*Manager)

func WithCache(c cache.MatchCache) Option {
	return func(m *Manager) { m.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func NewManager(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		cache:     cache.Nop{},
		publisher: events.Nop{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var errNoCaller = apperrors.Validation("caller identity is required")

// Create publishes a new OPEN match owned by ownerID.
func (mgr *Manager) Create(ctx context.Context, ownerID uint, in CreateInput) (*models.Match, error) {
	if ownerID == 0 {
		return nil, errNoCaller
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	owner := ownerID
	m := &models.Match{
		Title:         in.Title,
		Description:   in.Description,
		Sport:         in.Sport,
		Location:      in.Location,
		Date:          *in.Date,
		StartTime:     *in.StartTime,
		EndTime:       in.EndTime,
		MaxPeople:     in.MaxPeople,
		OwnerID:       &owner,
		Status:        models.MatchOpen,
		CurrentPeople: 0,
	}
	if err := mgr.store.Matches().Create(ctx, m); err != nil {
		return nil, mgr.translate("create", 0, err)
	}

	mgr.log.Info("match created", "match_id", m.ID, "owner_id", ownerID)
	mgr.committed(ctx, events.MatchCreated, ownerID, m)
	return m, nil
}

// Update applies the fields present in patch. Only the owner may update an
// owned match. Overwriting status here leaves the roster and the counter
// alone; use Cancel for a proper cancellation.
func (mgr *Manager) Update(ctx context.Context, matchID, callerID uint, patch Patch) (*models.Match, error) {
	var updated *models.Match
	changed := false

	err := mgr.store.InMatchTx(ctx, matchID, func(tx *store.Tx, m *models.Match) error {
		if !m.OwnedBy(callerID) {
			return apperrors.Forbidden("not authorized to update this match")
		}
		if err := patch.Validate(m); err != nil {
			return err
		}
		updated, changed = m, false
		if patch.IsEmpty() {
			return nil
		}
		patch.Apply(m)
		changed = true
		return tx.Matches.Save(ctx, m)
	})
	if err != nil {
		return nil, mgr.translate("update", matchID, err)
	}

	if changed {
		mgr.log.Info("match updated", "match_id", matchID, "user_id", callerID, "status", updated.Status)
		mgr.committed(ctx, events.MatchUpdated, callerID, updated)
	}
	return updated, nil
}

// Cancel marks the match CANCELLED. Cancelling twice is a no-op.
// Enrollments and the counter are left untouched.
func (mgr *Manager) Cancel(ctx context.Context, matchID, callerID uint) (*models.Match, error) {
	var cancelled *models.Match
	changed := false

	err := mgr.store.InMatchTx(ctx, matchID, func(tx *store.Tx, m *models.Match) error {
		if !m.OwnedBy(callerID) {
			return apperrors.Forbidden("not authorized to cancel this match")
		}
		cancelled, changed = m, false
		if m.Status == models.MatchCancelled {
			return nil
		}
		m.Status = models.MatchCancelled
		changed = true
		return tx.Matches.Save(ctx, m)
	})
	if err != nil {
		return nil, mgr.translate("cancel", matchID, err)
	}

	if changed {
		mgr.log.Info("match cancelled", "match_id", matchID, "user_id", callerID)
		mgr.committed(ctx, events.MatchCancelled, callerID, cancelled)
	}
	return cancelled, nil
}

// Join enrolls userID. Checks run in order: open, capacity, duplicate.
func (mgr *Manager) Join(ctx context.Context, matchID, userID uint) (*models.Match, error) {
	if userID == 0 {
		return nil, errNoCaller
	}

	var joined *models.Match
	err := mgr.store.InMatchTx(ctx, matchID, func(tx *store.Tx, m *models.Match) error {
		if m.Status != models.MatchOpen {
			return apperrors.InvalidState("match is not open for joining")
		}
		if m.IsFull() {
			return apperrors.CapacityExceeded("match is full")
		}

		_, err := tx.Roster.FindActive(ctx, m.ID, userID)
		switch {
		case err == nil:
			return apperrors.AlreadyJoined("already joined this match")
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if err := tx.Roster.Create(ctx, models.NewActiveEnrollment(m.ID, userID)); err != nil {
			return err
		}
		m.CurrentPeople++
		if err := tx.Matches.Save(ctx, m); err != nil {
			return err
		}
		joined = m
		return nil
	})
	if err != nil {
		return nil, mgr.translate("join", matchID, err)
	}

	mgr.log.Info("match joined", "match_id", matchID, "user_id", userID, "current_people", joined.CurrentPeople)
	mgr.committed(ctx, events.MatchJoined, userID, joined)
	return joined, nil
}

// Leave cancels userID's active enrollment. The counter never drops below
// zero; the match status is not changed.
func (mgr *Manager) Leave(ctx context.Context, matchID, userID uint) (*models.Match, error) {
	if userID == 0 {
		return nil, errNoCaller
	}

	var left *models.Match
	err := mgr.store.InMatchTx(ctx, matchID, func(tx *store.Tx, m *models.Match) error {
		e, err := tx.Roster.FindActive(ctx, m.ID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotEnrolled("you are not joined in this match")
		}
		if err != nil {
			return err
		}

		if err := tx.Roster.Cancel(ctx, e); err != nil {
			return err
		}
		if m.CurrentPeople > 0 {
			m.CurrentPeople--
		} else {
			mgr.log.Warn("active enrollment on a match with zero occupancy", "match_id", m.ID, "user_id", userID)
		}
		if err := tx.Matches.Save(ctx, m); err != nil {
			return err
		}
		left = m
		return nil
	})
	if err != nil {
		return nil, mgr.translate("leave", matchID, err)
	}

	mgr.log.Info("match left", "match_id", matchID, "user_id", userID, "current_people", left.CurrentPeople)
	mgr.committed(ctx, events.MatchLeft, userID, left)
	return left, nil
}

// Delete removes the match together with its whole enrollment history.
func (mgr *Manager) Delete(ctx context.Context, matchID, callerID uint) error {
	var deleted *models.Match
	err := mgr.store.InMatchTx(ctx, matchID, func(tx *store.Tx, m *models.Match) error {
		if !m.OwnedBy(callerID) {
			return apperrors.Forbidden("not authorized to delete this match")
		}
		if err := tx.Roster.DeleteByMatch(ctx, m.ID); err != nil {
			return err
		}
		if err := tx.Matches.Delete(ctx, m); err != nil {
			return err
		}
		deleted = m
		return nil
	})
	if err != nil {
		return mgr.translate("delete", matchID, err)
	}

	mgr.log.Info("match deleted", "match_id", matchID, "user_id", callerID)
	mgr.committed(ctx, events.MatchDeleted, callerID, deleted)
	return nil
}

// committed runs the side effects that follow a successful commit. They
// are best effort and never undo the mutation.
func (mgr *Manager) committed(ctx context.Context, t events.Type, actorID uint, m *models.Match) {
	// a deleted row keeps its last version, so readers that loaded it
	// before the delete must be rejected too
	floor := m.Version
	if t == events.MatchDeleted {
		floor++
	}
	mgr.cache.Invalidate(ctx, m.ID, floor)
	if err := mgr.publisher.Publish(ctx, events.New(t, actorID, m)); err != nil {
		mgr.log.With("match_id", m.ID, "type", t).Warn("failed to publish match event", "error", err)
	}
}

// translate turns store failures into caller-facing error kinds.
func (mgr *Manager) translate(op string, matchID uint, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("match not found")
	case errors.Is(err, store.ErrDuplicate):
		return apperrors.AlreadyJoined("already joined this match")
	default:
		mgr.log.Error("match operation failed", "op", op, "match_id", matchID, "error", err)
		return apperrors.Internal(err, fmt.Sprintf("failed to %s match", op))
	}
}
