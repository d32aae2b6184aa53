package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"confdesk/internal/sessions/conflict"
	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/internal/sessions/repository"
	"confdesk/internal/sessions/validator"
	"confdesk/pkg/config"
	apperrors "confdesk/pkg/errors"
	"confdesk/pkg/model"
	"confdesk/pkg/sanitizer"
)

type SessionService interface {
	Create(ctx context.Context, sess *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error)
	GetByHall(ctx context.Context, hallID string) ([]*model.Session, error)
	Update(ctx context.Context, id string, updates *model.SessionUpdate) (*model.Session, error)
	BulkUpdate(ctx context.Context, items []model.SessionBulkUpdate) []model.SessionBulkResult
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) []model.SessionBulkDeleteResult
}

// AttendanceCounter guards deletion: a session with ledger entries must not
// disappear from under them.
type AttendanceCounter interface {
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

type sessionService struct {
	repo       repository.SessionRepository
	halls      repository.HallRepository
	locks      repository.HallLockRepository
	detector   *conflict.Detector
	validator  *validator.SessionValidator
	attendance AttendanceCounter
	cfg        *config.Config
}

func NewSessionService(
	repo repository.SessionRepository,
	halls repository.HallRepository,
	locks repository.HallLockRepository,
	validator *validator.SessionValidator,
	attendance AttendanceCounter,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		repo:       repo,
		halls:      halls,
		locks:      locks,
		detector:   conflict.NewDetector(repo),
		validator:  validator,
		attendance: attendance,
		cfg:        cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, sess *model.Session) error {
	s.sanitize(sess)

	if err := s.checkInterval(sess.StartTime, sess.EndTime); err != nil {
		return err
	}
	if err := s.validate(sess); err != nil {
		return err
	}

	// Sessions without a hall never conflict; they skip the lock and the
	// overlap check entirely.
	if sess.HallID == "" {
		if err := s.repo.Create(ctx, sess); err != nil {
			s.cfg.Log.Error("Failed to create session", "title", sess.Title, "error", err)
			return s.storeError("Failed to create session", err)
		}
		s.logCreated(sess)
		return nil
	}

	if err := s.checkHallExists(ctx, sess.HallID); err != nil {
		return err
	}

	lockID, err := s.acquireHallLock(ctx, sess.HallID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseHallLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release hall lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.checkConflicts(sessCtx, sess.HallID, sess.StartTime, sess.EndTime, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, sess); err != nil {
			return s.storeError("Failed to create session", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create session",
			"title", sess.Title,
			"hall_id", sess.HallID,
			"error", err,
		)
		return err
	}

	s.logCreated(sess)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(id, err)
	}
	return sess, nil
}

func (s *sessionService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error) {
	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var sessions []*model.Session
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count sessions", "error", err)
			errCount = s.storeError("Failed to count sessions", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		sessions, err = s.repo.FindAll(sharedCtx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list sessions", "limit", limit, "offset", offset, "error", err)
			errFind = s.storeError("Failed to retrieve sessions", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return sessions, count, nil
}

func (s *sessionService) GetByHall(ctx context.Context, hallID string) ([]*model.Session, error) {
	if hallID == "" {
		return nil, apperrors.InvalidInput("Hall ID cannot be empty")
	}

	sessions, err := s.repo.FindByHall(ctx, hallID)
	if err != nil {
		s.cfg.Log.Error("Failed to list sessions by hall", "hall_id", hallID, "error", err)
		return nil, s.storeError("Failed to retrieve sessions", err)
	}
	return sessions, nil
}

func (s *sessionService) Update(ctx context.Context, id string, updates *model.SessionUpdate) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(id, err)
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Session update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeSessionUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.checkInterval(merged.StartTime, merged.EndTime); err != nil {
		return nil, err
	}
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if merged.HallID == "" {
		if err := s.repo.Update(ctx, id, merged); err != nil {
			s.cfg.Log.Error("Failed to update session", "id", id, "error", err)
			return nil, s.storeError("Failed to update session", err)
		}
		s.cfg.Log.Info("Session updated successfully", "id", id, "title", merged.Title)
		return merged, nil
	}

	if err := s.checkHallExists(ctx, merged.HallID); err != nil {
		return nil, err
	}

	lockID, err := s.acquireHallLock(ctx, merged.HallID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseHallLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release hall lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.checkConflicts(sessCtx, merged.HallID, merged.StartTime, merged.EndTime, merged.ID); err != nil {
			return err
		}
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return s.storeError("Failed to update session", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update session", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Session updated successfully", "id", id, "title", merged.Title)
	return merged, nil
}

// BulkUpdate applies each item independently; one session's conflict never
// blocks the others. The result list preserves input order.
func (s *sessionService) BulkUpdate(ctx context.Context, items []model.SessionBulkUpdate) []model.SessionBulkResult {
	results := make([]model.SessionBulkResult, 0, len(items))
	for i := range items {
		item := items[i]
		updated, err := s.Update(ctx, item.SessionID, &item.Updates)
		results = append(results, model.SessionBulkResult{
			SessionID: item.SessionID,
			Session:   updated,
			Err:       err,
		})
	}
	return results
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Session ID cannot be empty")
	}

	count, err := s.attendance.CountBySession(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count attendance for session", "id", id, "error", err)
		return s.storeError("Failed to check session attendance", err)
	}
	if count > 0 {
		return apperrors.Conflict("Session has attendance records and cannot be deleted").
			WithDetails(map[string]any{"attendance_count": count})
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, sessionserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Session", id)
			}
			if errors.Is(err, sessionserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid session ID format")
			}
			return s.storeError("Failed to delete session", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Session deleted successfully", "id", id)
	return nil
}

// BulkDelete removes each session independently; a session that cannot be
// deleted (attendance on record, already gone) does not block the others.
func (s *sessionService) BulkDelete(ctx context.Context, ids []string) []model.SessionBulkDeleteResult {
	results := make([]model.SessionBulkDeleteResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, model.SessionBulkDeleteResult{
			SessionID: id,
			Err:       s.Delete(ctx, id),
		})
	}
	return results
}

// --- Helpers ---

func (s *sessionService) sanitize(sess *model.Session) {
	sess.EventID = strings.TrimSpace(sess.EventID)
	sess.HallID = strings.TrimSpace(sess.HallID)
	sess.Title = sanitizer.NormalizeTitle(sess.Title)
	sess.Type = strings.ToLower(strings.TrimSpace(sess.Type))
}

// mergeSessionUpdates overlays the provided fields on a copy of the stored
// session. Unset pointer fields keep the existing values; an explicit empty
// hall ID detaches the session from its hall.
func (s *sessionService) mergeSessionUpdates(existing *model.Session, u *model.SessionUpdate) *model.Session {
	merged := *existing
	if u.HallID != nil {
		merged.HallID = *u.HallID
	}
	if u.Title != "" {
		merged.Title = u.Title
	}
	if u.StartTime != nil {
		merged.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		merged.EndTime = *u.EndTime
	}
	if u.Type != "" {
		merged.Type = u.Type
	}
	if u.SpeakerIDs != nil {
		merged.SpeakerIDs = *u.SpeakerIDs
	}
	return &merged
}

func (s *sessionService) checkInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.InvalidInput("Session start and end times are required")
	}
	if !start.Before(end) {
		return apperrors.InvalidInput("Session end time must be after its start time")
	}
	return nil
}

func (s *sessionService) validate(sess *model.Session) error {
	if err := s.validator.Validate(sess); err != nil {
		s.cfg.Log.Warn("Session validation failed", "title", sess.Title, "error", err)
		return apperrors.Validation("Session validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *sessionService) checkHallExists(ctx context.Context, hallID string) error {
	if _, err := s.halls.FindByID(ctx, hallID); err != nil {
		if errors.Is(err, sessionserrors.ErrHallNotFound) {
			return apperrors.NotFoundWithID("Hall", hallID)
		}
		if errors.Is(err, sessionserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid hall ID format")
		}
		return s.storeError("Failed to check hall existence", err)
	}
	return nil
}

func (s *sessionService) checkConflicts(ctx context.Context, hallID string, start, end time.Time, excludeID string) error {
	conflicts, err := s.detector.FindConflicts(ctx, hallID, start, end, excludeID)
	if err != nil {
		if errors.Is(err, sessionserrors.ErrInvalidInterval) {
			return apperrors.InvalidInput("Session end time must be after its start time")
		}
		return s.storeError("Failed to check for conflicting sessions", err)
	}
	if len(conflicts) > 0 {
		return scheduleConflict(conflicts)
	}
	return nil
}

// scheduleConflict surfaces the concrete overlapping sessions so the operator
// can resolve the clash in one step. There is no force-book override.
func scheduleConflict(conflicts []*model.Session) *apperrors.AppError {
	summaries := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		summaries = append(summaries, map[string]any{
			"id":         c.ID,
			"title":      c.Title,
			"start_time": c.StartTime.Format(time.RFC3339),
			"end_time":   c.EndTime.Format(time.RFC3339),
		})
	}
	return apperrors.Conflict("Session time overlaps existing sessions in this hall").
		WithDetails(map[string]any{"conflicts": summaries})
}

func (s *sessionService) mapLookupError(id string, err error) error {
	if errors.Is(err, sessionserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Session", id)
	}
	if errors.Is(err, sessionserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid session ID format")
	}
	return s.storeError("Failed to retrieve session", err)
}

// storeError maps collaborator timeouts to the retryable unavailable kind;
// everything else stays internal.
func (s *sessionService) storeError(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Unavailable("Session store")
	}
	return apperrors.Internal(message, err)
}

func (s *sessionService) logCreated(sess *model.Session) {
	s.cfg.Log.Info("Session created successfully",
		"id", sess.ID,
		"title", sess.Title,
		"hall_id", sess.HallID,
		"start_time", sess.StartTime,
		"end_time", sess.EndTime,
	)
}

// acquireHallLock serializes the conflict-check-then-write sequence per hall.
// The lock auto-expires via the collection's TTL index if a crashed request
// never releases it.
func (s *sessionService) acquireHallLock(ctx context.Context, hallID string) (string, error) {
	lockID := fmt.Sprintf("hall_lock_%s", hallID)

	lock := &model.HallLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(config.HallLockTTL),
	}

	if _, err := s.locks.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This hall is currently being scheduled by another request. Please try again.")
		}
		return "", s.storeError("Failed to acquire hall lock", err)
	}

	return lockID, nil
}

func (s *sessionService) releaseHallLock(ctx context.Context, lockID string) error {
	return s.locks.Delete(ctx, lockID)
}
