// Package query serves read-only views of matches. Every list is ordered
// by (date, start_time, id) so that clients can page through it stably.
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/cache"
	"fitmatch/backend/internal/models"
	"fitmatch/backend/internal/store"

	"gorm.io/gorm"
)

const scheduleOrder = "matches.date, matches.start_time, matches.id"

// Filters narrows List. Zero values mean "no restriction", except OnlyOpen
// which callers normally default to true.
type Filters struct {
	OnlyOpen bool
	Sport    string
	Date     *models.Date
	FromDate *models.Date
	ToDate   *models.Date
	// Regions are administrative areas from broadest to narrowest
	// (e.g. 시/도, 구/군, 동); blank entries are skipped.
	Regions []string
}

// LocationPrefix joins the non-blank regions with single spaces.
func (f Filters) LocationPrefix() string {
	parts := make([]string, 0, len(f.Regions))
	for _, r := range f.Regions {
		if r = strings.TrimSpace(r); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, " ")
}

type Service struct {
	db    *gorm.DB
	cache cache.MatchCache
}

type Option func(*Service)

func WithCache(c cache.MatchCache) Option {
	return func(s *Service) { s.cache = c }
}

func NewService(s *store.Store, opts ...Option) *Service {
	svc := &Service{db: s.DB(), cache: cache.Nop{}}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) filtered(ctx context.Context, f Filters) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Match{})

	if f.OnlyOpen {
		q = q.Where("matches.status = ?", models.MatchOpen)
	}
	if f.Sport != "" {
		q = q.Where("matches.sport = ?", f.Sport)
	}
	if f.Date != nil {
		q = q.Where("matches.date = ?", *f.Date)
	} else {
		if f.FromDate != nil {
			q = q.Where("matches.date >= ?", *f.FromDate)
		}
		if f.ToDate != nil {
			q = q.Where("matches.date <= ?", *f.ToDate)
		}
	}
	if prefix := f.LocationPrefix(); prefix != "" {
		q = q.Where("LOWER(matches.location) LIKE ? ESCAPE '!'", likePrefix(prefix))
	}
	return q
}

// likePrefix lower-cases s and escapes LIKE wildcards so the user's text
// is matched literally.
func likePrefix(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(strings.ToLower(s)) + "%"
}

// List returns matches matching f.
func (s *Service) List(ctx context.Context, f Filters) ([]models.Match, error) {
	var out []models.Match
	if err := s.filtered(ctx, f).Order(scheduleOrder).Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to list matches")
	}
	return out, nil
}

// ListPage returns one page of List together with pagination metadata.
func (s *Service) ListPage(ctx context.Context, f Filters, page, limit int) (*Page[models.Match], error) {
	p, err := Paginate[models.Match](s.filtered(ctx, f).Order(scheduleOrder), page, limit)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list matches")
	}
	return p, nil
}

// GetByID returns a single match, consulting the cache first.
func (s *Service) GetByID(ctx context.Context, id uint) (*models.Match, error) {
	if m, ok := s.cache.Get(ctx, id); ok {
		return m, nil
	}
	m, err := store.NewMatchStore(s.db).Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	s.cache.Set(ctx, m)
	return m, nil
}

// ListByMonth returns matches dated within the given calendar month.
func (s *Service) ListByMonth(ctx context.Context, year int, month time.Month, onlyOpen bool) ([]models.Match, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.Validation("month must be between 1 and 12")
	}
	start := models.NewDate(year, month, 1)
	end := start.AddMonths(1)

	q := s.db.WithContext(ctx).
		Where("matches.date >= ? AND matches.date < ?", start, end)
	if onlyOpen {
		q = q.Where("matches.status = ?", models.MatchOpen)
	}

	var out []models.Match
	if err := q.Order(scheduleOrder).Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to list matches by month")
	}
	return out, nil
}

// ListCreatedBy returns matches owned by userID.
func (s *Service) ListCreatedBy(ctx context.Context, userID uint, onlyOpen bool) ([]models.Match, error) {
	q := s.db.WithContext(ctx).Where("matches.owner_id = ?", userID)
	if onlyOpen {
		q = q.Where("matches.status = ?", models.MatchOpen)
	}

	var out []models.Match
	if err := q.Order(scheduleOrder).Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to list created matches")
	}
	return out, nil
}

// ListJoinedBy returns matches in which userID holds an ACTIVE enrollment.
func (s *Service) ListJoinedBy(ctx context.Context, userID uint, onlyOpen bool) ([]models.Match, error) {
	q := s.db.WithContext(ctx).
		Select("matches.*").
		Joins("JOIN enrollments ON enrollments.match_id = matches.id").
		Where("enrollments.user_id = ? AND enrollments.status = ?", userID, models.EnrollmentActive)
	if onlyOpen {
		q = q.Where("matches.status = ?", models.MatchOpen)
	}

	var out []models.Match
	if err := q.Order(scheduleOrder).Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to list joined matches")
	}
	return out, nil
}

// Enrollments returns the full roster history of a match in id order.
func (s *Service) Enrollments(ctx context.Context, matchID uint) ([]models.Enrollment, error) {
	if _, err := store.NewMatchStore(s.db).Get(ctx, matchID); err != nil {
		return nil, translate(err)
	}
	rows, err := store.NewRosterStore(s.db).ListByMatch(ctx, matchID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list enrollments")
	}
	return rows, nil
}

func translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("match not found")
	}
	return apperrors.Internal(err, "failed to load match")
}
