package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/internal/sessions/validator"
	"confdesk/pkg/config"
	mongotx "confdesk/pkg/db/mongo"
	apperrors "confdesk/pkg/errors"
	"confdesk/pkg/logger"
	"confdesk/pkg/model"
)

// --- Mocks ---

type mockSessionRepo struct {
	createFunc     func(ctx context.Context, s *model.Session) error
	findByIDFunc   func(ctx context.Context, id string) (*model.Session, error)
	findByHallFunc func(ctx context.Context, hallID string) ([]*model.Session, error)
	findAllFunc    func(ctx context.Context, limit int, offset int64) ([]*model.Session, error)
	updateFunc     func(ctx context.Context, id string, s *model.Session) error
	deleteFunc     func(ctx context.Context, id string) error
	countFunc      func(ctx context.Context) (int64, error)

	createCalls int
	updateCalls int
	deleteCalls int
}

func (m *mockSessionRepo) Create(ctx context.Context, s *model.Session) error {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, s)
	}
	s.ID = "new-session-id"
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
}

func (m *mockSessionRepo) FindByHall(ctx context.Context, hallID string) ([]*model.Session, error) {
	if m.findByHallFunc != nil {
		return m.findByHallFunc(ctx, hallID)
	}
	return nil, nil
}

func (m *mockSessionRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Session, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, id string, s *model.Session) error {
	m.updateCalls++
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, s)
	}
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.deleteCalls++
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockSessionRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func (m *mockSessionRepo) EnsureIndexes(ctx context.Context) error { return nil }

type mockHallRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Hall, error)
}

func (m *mockHallRepo) FindByID(ctx context.Context, id string) (*model.Hall, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Hall{ID: id, Name: "Main Hall", Capacity: 100}, nil
}

type mockLockRepo struct {
	createFunc func(ctx context.Context, lock *model.HallLock) (*model.HallLock, error)

	acquired []string
	released []string
}

func (m *mockLockRepo) Create(ctx context.Context, lock *model.HallLock) (*model.HallLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	m.acquired = append(m.acquired, lock.ID)
	return lock, nil
}

func (m *mockLockRepo) Delete(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

func (m *mockLockRepo) EnsureIndexes(ctx context.Context) error { return nil }

type mockAttendanceCounter struct {
	countFunc func(ctx context.Context, sessionID string) (int64, error)
}

func (m *mockAttendanceCounter) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, sessionID)
	}
	return 0, nil
}

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Log:          logger.New(logger.Config{Level: "error", Service: "test"}),
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

type fixtures struct {
	repo       *mockSessionRepo
	halls      *mockHallRepo
	locks      *mockLockRepo
	attendance *mockAttendanceCounter
}

func newService(f *fixtures) SessionService {
	cfg := testConfig()
	return NewSessionService(
		f.repo,
		f.halls,
		f.locks,
		validator.NewSessionValidator(cfg.Log),
		f.attendance,
		cfg,
	)
}

func defaultFixtures() *fixtures {
	return &fixtures{
		repo:       &mockSessionRepo{},
		halls:      &mockHallRepo{},
		locks:      &mockLockRepo{},
		attendance: &mockAttendanceCounter{},
	}
}

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 10, hour, min, 0, 0, time.UTC)
}

func newSession(hallID string, start, end time.Time) *model.Session {
	return &model.Session{
		EventID:   "event-1",
		HallID:    hallID,
		Title:     "Concurrency Patterns in Practice",
		StartTime: start,
		EndTime:   end,
		Type:      model.SessionTypeWorkshop,
	}
}

func assertAppCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	sess := newSession("hall-1", at(10, 0), at(11, 0))
	if err := svc.Create(context.Background(), sess); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}
	if f.repo.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", f.repo.createCalls)
	}
	if len(f.locks.acquired) != 1 || f.locks.acquired[0] != "hall_lock_hall-1" {
		t.Errorf("expected hall lock to be acquired, got %v", f.locks.acquired)
	}
	if len(f.locks.released) != 1 {
		t.Errorf("expected hall lock to be released, got %v", f.locks.released)
	}
}

func TestCreate_OverlapRejected(t *testing.T) {
	f := defaultFixtures()
	existing := newSession("hall-1", at(10, 0), at(11, 0))
	existing.ID = "existing-1"
	existing.Title = "Opening Keynote"
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return []*model.Session{existing}, nil
	}
	svc := newService(f)

	err := svc.Create(context.Background(), newSession("hall-1", at(10, 30), at(11, 30)))
	appErr := assertAppCode(t, err, apperrors.CodeConflict)

	conflicts, ok := appErr.Details["conflicts"].([]map[string]any)
	if !ok {
		t.Fatalf("expected conflict details, got %v", appErr.Details)
	}
	if len(conflicts) != 1 || conflicts[0]["id"] != "existing-1" {
		t.Errorf("expected existing-1 in conflicts, got %v", conflicts)
	}
	if f.repo.createCalls != 0 {
		t.Errorf("expected no create on conflict, got %d calls", f.repo.createCalls)
	}
	if len(f.locks.released) != 1 {
		t.Errorf("expected lock released even on conflict, got %v", f.locks.released)
	}
}

func TestCreate_BackToBackAllowed(t *testing.T) {
	f := defaultFixtures()
	existing := newSession("hall-1", at(10, 0), at(11, 0))
	existing.ID = "existing-1"
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return []*model.Session{existing}, nil
	}
	svc := newService(f)

	if err := svc.Create(context.Background(), newSession("hall-1", at(11, 0), at(12, 0))); err != nil {
		t.Fatalf("expected back-to-back session to be accepted, got %v", err)
	}
}

func TestCreate_InvalidInterval(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	err := svc.Create(context.Background(), newSession("hall-1", at(11, 0), at(10, 0)))
	assertAppCode(t, err, apperrors.CodeInvalidInput)

	err = svc.Create(context.Background(), newSession("hall-1", at(11, 0), at(11, 0)))
	assertAppCode(t, err, apperrors.CodeInvalidInput)

	if f.repo.createCalls != 0 {
		t.Errorf("expected no create calls, got %d", f.repo.createCalls)
	}
}

func TestCreate_HallNotFound(t *testing.T) {
	f := defaultFixtures()
	f.halls.findByIDFunc = func(ctx context.Context, id string) (*model.Hall, error) {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrHallNotFound, id)
	}
	svc := newService(f)

	err := svc.Create(context.Background(), newSession("missing-hall", at(10, 0), at(11, 0)))
	assertAppCode(t, err, apperrors.CodeNotFound)
}

func TestCreate_HallLockContention(t *testing.T) {
	f := defaultFixtures()
	f.locks.createFunc = func(ctx context.Context, lock *model.HallLock) (*model.HallLock, error) {
		return nil, duplicateKeyErr()
	}
	svc := newService(f)

	err := svc.Create(context.Background(), newSession("hall-1", at(10, 0), at(11, 0)))
	assertAppCode(t, err, apperrors.CodeConflict)
	if f.repo.createCalls != 0 {
		t.Errorf("expected no create while hall is locked, got %d calls", f.repo.createCalls)
	}
}

func TestCreate_NoHallSkipsConflictCheck(t *testing.T) {
	f := defaultFixtures()
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		t.Error("conflict check should not run for sessions without a hall")
		return nil, nil
	}
	svc := newService(f)

	if err := svc.Create(context.Background(), newSession("", at(10, 0), at(11, 0))); err != nil {
		t.Fatalf("expected hall-less session to be accepted, got %v", err)
	}
	if len(f.locks.acquired) != 0 {
		t.Errorf("expected no lock for hall-less session, got %v", f.locks.acquired)
	}
}

func TestCreate_StoreTimeout(t *testing.T) {
	f := defaultFixtures()
	f.repo.createFunc = func(ctx context.Context, s *model.Session) error {
		return fmt.Errorf("insert: %w", context.DeadlineExceeded)
	}
	svc := newService(f)

	err := svc.Create(context.Background(), newSession("hall-1", at(10, 0), at(11, 0)))
	assertAppCode(t, err, apperrors.CodeUnavailable)
}

// --- Update ---

func TestUpdate_ExcludesSelfFromConflictCheck(t *testing.T) {
	f := defaultFixtures()
	existing := newSession("hall-1", at(10, 0), at(11, 0))
	existing.ID = "sess-1"
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		return existing, nil
	}
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return []*model.Session{existing}, nil
	}
	svc := newService(f)

	newStart := at(10, 15)
	newEnd := at(11, 15)
	updated, err := svc.Update(context.Background(), "sess-1", &model.SessionUpdate{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	if err != nil {
		t.Fatalf("expected shifting a session within its own slot to succeed, got %v", err)
	}
	if !updated.StartTime.Equal(newStart) || !updated.EndTime.Equal(newEnd) {
		t.Errorf("expected updated interval [%v, %v), got [%v, %v)",
			newStart, newEnd, updated.StartTime, updated.EndTime)
	}
	if f.repo.updateCalls != 1 {
		t.Errorf("expected 1 update call, got %d", f.repo.updateCalls)
	}
}

func TestUpdate_MoveIntoOccupiedSlotRejected(t *testing.T) {
	f := defaultFixtures()
	target := newSession("hall-1", at(10, 0), at(11, 0))
	target.ID = "sess-1"
	other := newSession("hall-1", at(14, 0), at(15, 0))
	other.ID = "sess-2"
	other.Title = "Closing Panel"
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		return target, nil
	}
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return []*model.Session{target, other}, nil
	}
	svc := newService(f)

	newStart := at(14, 30)
	newEnd := at(15, 30)
	_, err := svc.Update(context.Background(), "sess-1", &model.SessionUpdate{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})
	appErr := assertAppCode(t, err, apperrors.CodeConflict)

	conflicts := appErr.Details["conflicts"].([]map[string]any)
	if len(conflicts) != 1 || conflicts[0]["id"] != "sess-2" {
		t.Errorf("expected sess-2 as the only conflict, got %v", conflicts)
	}
	if f.repo.updateCalls != 0 {
		t.Errorf("expected no write on conflict, got %d update calls", f.repo.updateCalls)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	_, err := svc.Update(context.Background(), "missing", &model.SessionUpdate{Title: "New Title"})
	assertAppCode(t, err, apperrors.CodeNotFound)
}

func TestUpdate_InvalidMergedInterval(t *testing.T) {
	f := defaultFixtures()
	existing := newSession("hall-1", at(10, 0), at(11, 0))
	existing.ID = "sess-1"
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		return existing, nil
	}
	svc := newService(f)

	// Moving only the end time before the stored start must be rejected.
	newEnd := at(9, 0)
	_, err := svc.Update(context.Background(), "sess-1", &model.SessionUpdate{EndTime: &newEnd})
	assertAppCode(t, err, apperrors.CodeInvalidInput)
}

// --- BulkUpdate ---

func TestBulkUpdate_ItemsAreIndependent(t *testing.T) {
	f := defaultFixtures()
	first := newSession("hall-1", at(10, 0), at(11, 0))
	first.ID = "sess-1"
	second := newSession("hall-1", at(13, 0), at(14, 0))
	second.ID = "sess-2"
	blocker := newSession("hall-1", at(15, 0), at(16, 0))
	blocker.ID = "sess-3"

	byID := map[string]*model.Session{"sess-1": first, "sess-2": second}
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		if s, ok := byID[id]; ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return []*model.Session{first, second, blocker}, nil
	}
	svc := newService(f)

	conflictStart, conflictEnd := at(15, 30), at(16, 30)
	freeStart, freeEnd := at(12, 0), at(12, 45)
	results := svc.BulkUpdate(context.Background(), []model.SessionBulkUpdate{
		{SessionID: "sess-1", Updates: model.SessionUpdate{StartTime: &conflictStart, EndTime: &conflictEnd}},
		{SessionID: "sess-2", Updates: model.SessionUpdate{StartTime: &freeStart, EndTime: &freeEnd}},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	assertAppCode(t, results[0].Err, apperrors.CodeConflict)
	if results[1].Err != nil {
		t.Errorf("expected second item to succeed, got %v", results[1].Err)
	}
	if results[1].Session == nil || !results[1].Session.StartTime.Equal(freeStart) {
		t.Errorf("expected second item's updated session in result, got %+v", results[1].Session)
	}
}

// --- Delete ---

func TestDelete_Success(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	if err := svc.Delete(context.Background(), "sess-1"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if f.repo.deleteCalls != 1 {
		t.Errorf("expected 1 delete call, got %d", f.repo.deleteCalls)
	}
}

func TestDelete_RefusedWithAttendance(t *testing.T) {
	f := defaultFixtures()
	f.attendance.countFunc = func(ctx context.Context, sessionID string) (int64, error) {
		return 42, nil
	}
	svc := newService(f)

	err := svc.Delete(context.Background(), "sess-1")
	appErr := assertAppCode(t, err, apperrors.CodeConflict)
	if appErr.Details["attendance_count"] != int64(42) {
		t.Errorf("expected attendance_count detail, got %v", appErr.Details)
	}
	if f.repo.deleteCalls != 0 {
		t.Errorf("expected no delete call, got %d", f.repo.deleteCalls)
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := defaultFixtures()
	f.repo.deleteFunc = func(ctx context.Context, id string) error {
		return fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	svc := newService(f)

	err := svc.Delete(context.Background(), "missing")
	assertAppCode(t, err, apperrors.CodeNotFound)
}

func TestBulkDelete_ItemsAreIndependent(t *testing.T) {
	f := defaultFixtures()
	f.attendance.countFunc = func(ctx context.Context, sessionID string) (int64, error) {
		if sessionID == "sess-attended" {
			return 3, nil
		}
		return 0, nil
	}
	svc := newService(f)

	results := svc.BulkDelete(context.Background(), []string{"sess-attended", "sess-empty"})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	assertAppCode(t, results[0].Err, apperrors.CodeConflict)
	if results[1].Err != nil {
		t.Errorf("expected second delete to succeed, got %v", results[1].Err)
	}
	if f.repo.deleteCalls != 1 {
		t.Errorf("expected exactly 1 repo delete, got %d", f.repo.deleteCalls)
	}
}

// --- Reads ---

func TestGetByID_NotFound(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	_, err := svc.GetByID(context.Background(), "missing")
	assertAppCode(t, err, apperrors.CodeNotFound)
}

func TestGetByID_EmptyID(t *testing.T) {
	f := defaultFixtures()
	svc := newService(f)

	_, err := svc.GetByID(context.Background(), "")
	assertAppCode(t, err, apperrors.CodeInvalidInput)
}

func TestGetAll_ReturnsCountAndPage(t *testing.T) {
	f := defaultFixtures()
	f.repo.countFunc = func(ctx context.Context) (int64, error) { return 7, nil }
	f.repo.findAllFunc = func(ctx context.Context, limit int, offset int64) ([]*model.Session, error) {
		return []*model.Session{newSession("hall-1", at(10, 0), at(11, 0))}, nil
	}
	svc := newService(f)

	sessions, total, err := svc.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if total != 7 || len(sessions) != 1 {
		t.Errorf("expected total=7 and 1 session, got total=%d len=%d", total, len(sessions))
	}
}

func TestGetByHall_StoreTimeout(t *testing.T) {
	f := defaultFixtures()
	f.repo.findByHallFunc = func(ctx context.Context, hallID string) ([]*model.Session, error) {
		return nil, fmt.Errorf("query: %w", context.DeadlineExceeded)
	}
	svc := newService(f)

	_, err := svc.GetByHall(context.Background(), "hall-1")
	assertAppCode(t, err, apperrors.CodeUnavailable)
}
