package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/events"
	"fitmatch/backend/internal/models"
	"fitmatch/backend/internal/store"
	"fitmatch/backend/internal/testkit"

	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []uint
	versions    []uint
}

func (c *recordingCache) Get(context.Context, uint) (*models.Match, bool) { return nil, false }
func (c *recordingCache) Set(context.Context, *models.Match)              {}
func (c *recordingCache) Invalidate(_ context.Context, id, version uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	c.versions = append(c.versions, version)
}

type fixture struct {
	db    *gorm.DB
	mgr   *Manager
	pub   *recordingPublisher
	cache *recordingCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.OpenDB(t)
	pub := &recordingPublisher{}
	c := &recordingCache{}
	mgr := NewManager(
		store.New(db, store.WithMaxAttempts(20)),
		WithPublisher(pub),
		WithCache(c),
	)
	return &fixture{db: db, mgr: mgr, pub: pub, cache: c}
}

func validInput(maxPeople int) CreateInput {
	return CreateInput{
		Title:     "농구 매칭",
		Location:  "서울 강남구 역삼동 강남구민체육센터",
		Date:      testkit.Ptr(models.NewDate(2025, time.December, 6)),
		StartTime: testkit.Ptr(models.NewClock(18, 0, 0)),
		EndTime:   testkit.Ptr(models.NewClock(20, 0, 0)),
		MaxPeople: maxPeople,
	}
}

func (f *fixture) create(t *testing.T, owner uint, maxPeople int) *models.Match {
	t.Helper()
	m, err := f.mgr.Create(context.Background(), owner, validInput(maxPeople))
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	return m
}

func (f *fixture) activeCount(t *testing.T, matchID uint) int64 {
	t.Helper()
	var n int64
	err := f.db.Model(&models.Enrollment{}).
		Where("match_id = ? AND status = ?", matchID, models.EnrollmentActive).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count enrollments: %v", err)
	}
	return n
}

func assertCode(t *testing.T, err error, want apperrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 7, 4)

	if m.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if m.Status != models.MatchOpen {
		t.Fatalf("expected OPEN, got %s", m.Status)
	}
	if m.CurrentPeople != 0 {
		t.Fatalf("expected 0 people, got %d", m.CurrentPeople)
	}
	if m.OwnerID == nil || *m.OwnerID != 7 {
		t.Fatalf("expected owner 7, got %v", m.OwnerID)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != events.MatchCreated {
		t.Fatalf("expected created event, got %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]func(in *CreateInput){
		"zero capacity":     func(in *CreateInput) { in.MaxPeople = 0 },
		"negative capacity": func(in *CreateInput) { in.MaxPeople = -2 },
		"missing title":     func(in *CreateInput) { in.Title = "  " },
		"missing location":  func(in *CreateInput) { in.Location = "" },
		"missing date":      func(in *CreateInput) { in.Date = nil },
		"missing start":     func(in *CreateInput) { in.StartTime = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			in := validInput(5)
			mutate(&in)
			_, err := f.mgr.Create(ctx, 1, in)
			assertCode(t, err, apperrors.CodeValidation)
		})
	}

	_, err := f.mgr.Create(ctx, 0, validInput(5))
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 2)

	got, err := f.mgr.Join(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if got.CurrentPeople != 1 {
		t.Fatalf("expected 1 person, got %d", got.CurrentPeople)
	}

	got, err = f.mgr.Join(ctx, m.ID, 11)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if got.CurrentPeople != 2 {
		t.Fatalf("expected 2 people, got %d", got.CurrentPeople)
	}
	if got.Status != models.MatchOpen {
		t.Fatalf("expected full match to stay OPEN, got %s", got.Status)
	}

	_, err = f.mgr.Join(ctx, m.ID, 12)
	assertCode(t, err, apperrors.CodeCapacityExceeded)

	got, err = f.mgr.Leave(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got.CurrentPeople != 1 {
		t.Fatalf("expected 1 person after leave, got %d", got.CurrentPeople)
	}

	got, err = f.mgr.Join(ctx, m.ID, 12)
	if err != nil {
		t.Fatalf("third user join after leave: %v", err)
	}
	if got.CurrentPeople != 2 {
		t.Fatalf("expected 2 people, got %d", got.CurrentPeople)
	}
	if n := f.activeCount(t, m.ID); n != 2 {
		t.Fatalf("expected 2 active enrollments, got %d", n)
	}
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Join(ctx, 999, 1)
	assertCode(t, err, apperrors.CodeNotFound)

	m := f.create(t, 1, 3)
	if _, err := f.mgr.Join(ctx, m.ID, 5); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = f.mgr.Join(ctx, m.ID, 5)
	assertCode(t, err, apperrors.CodeAlreadyJoined)
	if n := f.activeCount(t, m.ID); n != 1 {
		t.Fatalf("expected 1 active enrollment, got %d", n)
	}

	if _, err := f.mgr.Cancel(ctx, m.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.mgr.Join(ctx, m.ID, 6)
	assertCode(t, err, apperrors.CodeInvalidState)
}

func TestJoinChecksStatusBeforeCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 1)
	if _, err := f.mgr.Join(ctx, m.ID, 2); err != nil {
		t.Fatalf("join: %v", err)
	}
	closed := models.MatchClosed
	if _, err := f.mgr.Update(ctx, m.ID, 1, Patch{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := f.mgr.Join(ctx, m.ID, 2)
	assertCode(t, err, apperrors.CodeInvalidState)
}

func TestLeaveErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Leave(ctx, 999, 1)
	assertCode(t, err, apperrors.CodeNotFound)

	m := f.create(t, 1, 3)
	_, err = f.mgr.Leave(ctx, m.ID, 5)
	assertCode(t, err, apperrors.CodeNotEnrolled)

	if _, err := f.mgr.Join(ctx, m.ID, 5); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.mgr.Leave(ctx, m.ID, 5); err != nil {
		t.Fatalf("leave: %v", err)
	}
	_, err = f.mgr.Leave(ctx, m.ID, 5)
	assertCode(t, err, apperrors.CodeNotEnrolled)
}

func TestLeaveKeepsStatusAndFloorsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	if _, err := f.mgr.Join(ctx, m.ID, 5); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.mgr.Cancel(ctx, m.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// force an inconsistent counter to exercise the floor
	if err := f.db.Model(&models.Match{}).Where("id = ?", m.ID).Update("current_people", 0).Error; err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}

	got, err := f.mgr.Leave(ctx, m.ID, 5)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got.CurrentPeople != 0 {
		t.Fatalf("expected counter floored at 0, got %d", got.CurrentPeople)
	}
	if got.Status != models.MatchCancelled {
		t.Fatalf("expected status untouched, got %s", got.Status)
	}
}

func TestRejoinCreatesFreshEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)

	for i := 0; i < 2; i++ {
		if _, err := f.mgr.Join(ctx, m.ID, 9); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if _, err := f.mgr.Leave(ctx, m.ID, 9); err != nil {
			t.Fatalf("leave %d: %v", i, err)
		}
	}
	got, err := f.mgr.Join(ctx, m.ID, 9)
	if err != nil {
		t.Fatalf("final join: %v", err)
	}
	if got.CurrentPeople != 1 {
		t.Fatalf("expected 1 person, got %d", got.CurrentPeople)
	}

	var rows []models.Enrollment
	if err := f.db.Where("match_id = ? AND user_id = ?", m.ID, 9).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("load enrollments: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 enrollment rows, got %d", len(rows))
	}
	for i, want := range []models.EnrollmentStatus{models.EnrollmentCancelled, models.EnrollmentCancelled, models.EnrollmentActive} {
		if rows[i].Status != want {
			t.Fatalf("row %d: expected %s, got %s", i, want, rows[i].Status)
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	if _, err := f.mgr.Join(ctx, m.ID, 4); err != nil {
		t.Fatalf("join: %v", err)
	}

	first, err := f.mgr.Cancel(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	second, err := f.mgr.Cancel(ctx, m.ID, 1)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if first.Status != models.MatchCancelled || second.Status != models.MatchCancelled {
		t.Fatalf("expected CANCELLED twice, got %s and %s", first.Status, second.Status)
	}
	if second.Version != first.Version {
		t.Fatalf("expected second cancel not to write, versions %d and %d", first.Version, second.Version)
	}
	if second.CurrentPeople != 1 {
		t.Fatalf("expected roster untouched, got %d people", second.CurrentPeople)
	}

	cancels := 0
	for _, typ := range f.pub.types() {
		if typ == events.MatchCancelled {
			cancels++
		}
	}
	if cancels != 1 {
		t.Fatalf("expected a single cancelled event, got %d", cancels)
	}
}

func TestOwnerAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	title := "hijacked"

	_, err := f.mgr.Update(ctx, m.ID, 2, Patch{Title: &title})
	assertCode(t, err, apperrors.CodeForbidden)
	_, err = f.mgr.Cancel(ctx, m.ID, 2)
	assertCode(t, err, apperrors.CodeForbidden)
	err = f.mgr.Delete(ctx, m.ID, 2)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.mgr.Update(ctx, 999, 1, Patch{Title: &title})
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.mgr.Cancel(ctx, 999, 1)
	assertCode(t, err, apperrors.CodeNotFound)
	err = f.mgr.Delete(ctx, 999, 1)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestOwnerlessMatchAcceptsAnyCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := testkit.SeedMatch(t, f.db, models.Match{})
	title := "renamed"

	got, err := f.mgr.Update(ctx, legacy.ID, 42, Patch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title {
		t.Fatalf("expected title %q, got %q", title, got.Title)
	}
	if _, err := f.mgr.Cancel(ctx, legacy.ID, 43); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.mgr.Delete(ctx, legacy.ID, 44); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	sport := "농구"
	maxPeople := 8

	got, err := f.mgr.Update(ctx, m.ID, 1, Patch{Sport: &sport, MaxPeople: &maxPeople})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Sport == nil || *got.Sport != sport {
		t.Fatalf("expected sport %q, got %v", sport, got.Sport)
	}
	if got.MaxPeople != 8 {
		t.Fatalf("expected max 8, got %d", got.MaxPeople)
	}
	if got.Title != m.Title || got.Location != m.Location || got.Date != m.Date {
		t.Fatalf("expected untouched fields to survive, got %+v", got)
	}

	unchanged, err := f.mgr.Update(ctx, m.ID, 1, Patch{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if unchanged.Version != got.Version {
		t.Fatalf("expected empty patch not to write, versions %d and %d", got.Version, unchanged.Version)
	}
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	for _, u := range []uint{10, 11} {
		if _, err := f.mgr.Join(ctx, m.ID, u); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	zero, one := 0, 1
	empty := ""
	bogus := models.MatchStatus("PAUSED")
	tests := map[string]Patch{
		"zero capacity":        {MaxPeople: &zero},
		"capacity below count": {MaxPeople: &one},
		"empty title":          {Title: &empty},
		"unknown status":       {Status: &bogus},
	}
	for name, patch := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.mgr.Update(ctx, m.ID, 1, patch)
			assertCode(t, err, apperrors.CodeValidation)
		})
	}
}

func TestRawStatusPatchLeavesRosterAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	if _, err := f.mgr.Join(ctx, m.ID, 10); err != nil {
		t.Fatalf("join: %v", err)
	}

	cancelled := models.MatchCancelled
	got, err := f.mgr.Update(ctx, m.ID, 1, Patch{Status: &cancelled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != models.MatchCancelled || got.CurrentPeople != 1 {
		t.Fatalf("expected CANCELLED with 1 person, got %s with %d", got.Status, got.CurrentPeople)
	}
	if n := f.activeCount(t, m.ID); n != 1 {
		t.Fatalf("expected enrollment to stay active, got %d", n)
	}

	// reopening through a patch makes the match joinable again
	open := models.MatchOpen
	if _, err := f.mgr.Update(ctx, m.ID, 1, Patch{Status: &open}); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.mgr.Join(ctx, m.ID, 11); err != nil {
		t.Fatalf("join after reopen: %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	other := f.create(t, 1, 3)
	for _, u := range []uint{10, 11} {
		if _, err := f.mgr.Join(ctx, m.ID, u); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	if _, err := f.mgr.Leave(ctx, m.ID, 11); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := f.mgr.Join(ctx, other.ID, 10); err != nil {
		t.Fatalf("join other: %v", err)
	}

	if err := f.mgr.Delete(ctx, m.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var matches, rows int64
	f.db.Model(&models.Match{}).Where("id = ?", m.ID).Count(&matches)
	f.db.Model(&models.Enrollment{}).Where("match_id = ?", m.ID).Count(&rows)
	if matches != 0 || rows != 0 {
		t.Fatalf("expected match and enrollments gone, got %d matches and %d enrollments", matches, rows)
	}
	if n := f.activeCount(t, other.ID); n != 1 {
		t.Fatalf("expected other match roster untouched, got %d", n)
	}

	_, err := f.mgr.Join(ctx, m.ID, 12)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCommittedMutationsInvalidateCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 3)
	if _, err := f.mgr.Join(ctx, m.ID, 5); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, _ = f.mgr.Join(ctx, m.ID, 5) // rejected, no invalidation
	if err := f.mgr.Delete(ctx, m.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	f.cache.mu.Lock()
	defer f.cache.mu.Unlock()
	if len(f.cache.invalidated) != 3 {
		t.Fatalf("expected 3 invalidations, got %v", f.cache.invalidated)
	}
	// create leaves version 1, join bumps it to 2, delete fences one past it
	want := []uint{1, 2, 3}
	for i, v := range want {
		if f.cache.versions[i] != v {
			t.Fatalf("expected versions %v, got %v", want, f.cache.versions)
		}
	}
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity = 5
	const users = 30
	m := f.create(t, 1, capacity)

	var wg sync.WaitGroup
	results := make(chan error, users)
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.mgr.Join(ctx, m.ID, userID)
			results <- err
		}(uint(100 + u))
	}
	wg.Wait()
	close(results)

	joined, full := 0, 0
	for err := range results {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, apperrors.CapacityExceeded("")):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if joined != capacity || full != users-capacity {
		t.Fatalf("expected %d joins and %d rejections, got %d and %d", capacity, users-capacity, joined, full)
	}

	var loaded models.Match
	if err := f.db.First(&loaded, m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.CurrentPeople != capacity {
		t.Fatalf("expected counter %d, got %d", capacity, loaded.CurrentPeople)
	}
	if n := f.activeCount(t, m.ID); n != capacity {
		t.Fatalf("expected %d active enrollments, got %d", capacity, n)
	}
}

func TestConcurrentDuplicateJoinsCreateOneEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 10)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.Join(ctx, m.ID, 77)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assertCode(t, err, apperrors.CodeAlreadyJoined)
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful join, got %d", ok)
	}
	if n := f.activeCount(t, m.ID); n != 1 {
		t.Fatalf("expected 1 active enrollment, got %d", n)
	}
}

func TestConcurrentJoinLeaveKeepsCounterConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.create(t, 1, 4)

	var wg sync.WaitGroup
	for u := uint(1); u <= 12; u++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if _, err := f.mgr.Join(ctx, m.ID, userID); err == nil {
					_, _ = f.mgr.Leave(ctx, m.ID, userID)
				}
			}
			_, _ = f.mgr.Join(ctx, m.ID, userID)
		}(200 + u)
	}
	wg.Wait()

	var loaded models.Match
	if err := f.db.First(&loaded, m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	n := f.activeCount(t, m.ID)
	if int64(loaded.CurrentPeople) != n {
		t.Fatalf("expected counter %d to equal active enrollments %d", loaded.CurrentPeople, n)
	}
	if loaded.CurrentPeople > loaded.MaxPeople {
		t.Fatalf("counter %d exceeds capacity %d", loaded.CurrentPeople, loaded.MaxPeople)
	}
}
