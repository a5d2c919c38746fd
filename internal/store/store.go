package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("concurrent modification")
	ErrDuplicate = errors.New("duplicate active enrollment")
)

// Tx exposes the stores bound to one database transaction.
type Tx struct {
	Matches *MatchStore
	Roster  *RosterStore
}

func newTx(db *gorm.DB) *Tx {
	return &Tx{Matches: NewMatchStore(db), Roster: NewRosterStore(db)}
}

// Store owns the database handle and runs transactional units of work.
type Store struct {
	db          *gorm.DB
	log         *logger.Logger
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Store)

// WithMaxAttempts bounds how often a conflicting transaction is re-run.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between conflicting attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *Store) { s.backoff = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		log:         logger.Nop(),
		maxAttempts: 5,
		backoff:     10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle for read-only query builders.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Matches() *MatchStore { return NewMatchStore(s.db) }

func (s *Store) Roster() *RosterStore { return NewRosterStore(s.db) }

// InTx runs fn in a single transaction without retrying.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(newTx(gtx))
	})
}

// InMatchTx runs fn against a locked, freshly read copy of match matchID.
// Everything fn writes commits together or not at all. When the
// transaction loses a race (stale version, serialization failure, deadlock,
// busy database) it is rolled back and fn runs again from a new read, so fn
// must derive all its decisions from the match it is handed.
func (s *Store) InMatchTx(ctx context.Context, matchID uint, fn func(tx *Tx, m *models.Match) error) error {
	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			tx := newTx(gtx)
			m, err := tx.Matches.GetForUpdate(ctx, matchID)
			if err != nil {
				return err
			}
			return fn(tx, m)
		})
		if err == nil || !IsConflict(err) || attempt >= s.maxAttempts {
			return err
		}

		s.log.Debug("retrying match transaction", "match_id", matchID, "attempt", attempt, "error", err)
		if err := s.sleep(ctx, attempt); err != nil {
			return err
		}
	}
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return ctx.Err()
	}
	d := s.backoff*time.Duration(attempt) + rand.N(s.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsConflict reports whether err is a transient concurrency failure that
// is resolved by re-running the transaction.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
