package service

import (
	"context"
	"errors"

	attendanceerrors "confdesk/internal/attendance/errors"
	"confdesk/internal/attendance/repository"
	"confdesk/internal/attendance/token"
	"confdesk/pkg/audit"
	"confdesk/pkg/clock"
	"confdesk/pkg/config"
	apperrors "confdesk/pkg/errors"
	"confdesk/pkg/model"
	"confdesk/pkg/sealer"
)

// CheckInRequest carries the scanned credential and whoever presented it.
// Either UserID or Email identifies the attendee; Email provisions a user
// record on first sight.
type CheckInRequest struct {
	Token       string            `json:"token"`
	UserID      string            `json:"user_id,omitempty"`
	Email       string            `json:"email,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ManualCheckInRequest records attendance without a credential, for front
// desk overrides (dead phone, unreadable badge).
type ManualCheckInRequest struct {
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id,omitempty"`
	Email       string            `json:"email,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type CredentialVerifier interface {
	// VerifyAndCheckIn validates a scanned token end to end and records the
	// attendance. No failure path leaves any trace in the ledger.
	VerifyAndCheckIn(ctx context.Context, req *CheckInRequest) (*model.CheckInResult, error)
	ManualCheckIn(ctx context.Context, req *ManualCheckInRequest) (*model.CheckInResult, error)
}

type credentialVerifier struct {
	sessions SessionReader
	records  repository.AttendanceRepository
	users    repository.UserRepository
	signer   sealer.Signer
	clock    clock.Clock
	auditor  audit.Publisher
	cfg      *config.Config
}

func NewCredentialVerifier(
	sessions SessionReader,
	records repository.AttendanceRepository,
	users repository.UserRepository,
	signer sealer.Signer,
	clk clock.Clock,
	auditor audit.Publisher,
	cfg *config.Config,
) CredentialVerifier {
	return &credentialVerifier{
		sessions: sessions,
		records:  records,
		users:    users,
		signer:   signer,
		clock:    clk,
		auditor:  auditor,
		cfg:      cfg,
	}
}

func (v *credentialVerifier) VerifyAndCheckIn(ctx context.Context, req *CheckInRequest) (*model.CheckInResult, error) {
	claims, sess, err := v.validateToken(ctx, req.Token)
	if err != nil {
		return nil, v.mapVerifyError(err)
	}

	userID, err := v.resolveIdentity(ctx, req.UserID, req.Email, req.DisplayName)
	if err != nil {
		return nil, v.mapVerifyError(err)
	}

	return v.record(ctx, sess, userID, model.CheckInMethodQR, req.Metadata, claims.HallID)
}

func (v *credentialVerifier) ManualCheckIn(ctx context.Context, req *ManualCheckInRequest) (*model.CheckInResult, error) {
	if req.SessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	sess, err := v.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, mapSessionLookupError(req.SessionID, err)
	}
	if !sess.IsLiveAt(v.clock.Now()) {
		return nil, v.mapVerifyError(attendanceerrors.ErrSessionNotActive)
	}

	userID, err := v.resolveIdentity(ctx, req.UserID, req.Email, req.DisplayName)
	if err != nil {
		return nil, v.mapVerifyError(err)
	}

	return v.record(ctx, sess, userID, model.CheckInMethodManual, req.Metadata, sess.HallID)
}

// validateToken runs the full gauntlet in order: integrity, expiry, then
// session liveness against live data. A token that is cryptographically sound
// but points at a finished session fails on the last check.
func (v *credentialVerifier) validateToken(ctx context.Context, wire string) (*model.AttendanceToken, *model.Session, error) {
	if wire == "" {
		return nil, nil, attendanceerrors.ErrTokenInvalid
	}

	claims, err := token.Decode(wire, v.signer)
	if err != nil {
		return nil, nil, err
	}

	now := v.clock.Now()
	if !now.Before(claims.ExpiresAt) {
		return nil, nil, attendanceerrors.ErrTokenExpired
	}

	sess, err := v.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, mapSessionLookupError(claims.SessionID, err)
	}
	if !sess.IsLiveAt(now) {
		return nil, nil, attendanceerrors.ErrSessionNotActive
	}

	return claims, sess, nil
}

func (v *credentialVerifier) resolveIdentity(ctx context.Context, userID, email, displayName string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if email == "" {
		return "", attendanceerrors.ErrIdentityRequired
	}

	user, err := v.users.ResolveOrCreate(ctx, email, displayName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.Unavailable("User store")
		}
		return "", apperrors.Internal("Failed to resolve user identity", err)
	}
	return user.ID, nil
}

func (v *credentialVerifier) record(ctx context.Context, sess *model.Session, userID, method string, metadata map[string]string, hallID string) (*model.CheckInResult, error) {
	now := v.clock.Now()

	rec, wasInsert, err := v.records.Upsert(ctx, sess.ID, userID, sess.EventID, method, metadata, now)
	if err != nil {
		v.cfg.Log.Error("Failed to record attendance", "session_id", sess.ID, "user_id", userID, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Unavailable("Attendance ledger")
		}
		return nil, apperrors.Internal("Failed to record attendance", err)
	}

	count, err := v.records.CountBySession(ctx, sess.ID)
	if err != nil {
		// The check-in itself succeeded; report it with an unknown count
		// rather than failing the scan.
		v.cfg.Log.Warn("Failed to count attendance after check-in", "session_id", sess.ID, "error", err)
		count = -1
	}

	if auditErr := v.auditor.Publish(ctx, audit.Entry{
		Type:      audit.EntryCheckIn,
		SessionID: sess.ID,
		EventID:   sess.EventID,
		UserID:    userID,
		At:        now,
		Details:   map[string]string{"method": method, "hall_id": hallID},
	}); auditErr != nil {
		v.cfg.Log.Warn("Failed to publish audit entry", "type", audit.EntryCheckIn, "session_id", sess.ID, "error", auditErr)
	}

	v.cfg.Log.Info("Attendance recorded",
		"session_id", sess.ID,
		"user_id", userID,
		"method", method,
		"is_update", !wasInsert,
	)

	return &model.CheckInResult{
		AttendanceID:    rec.ID,
		SessionID:       sess.ID,
		UserID:          userID,
		IsUpdate:        !wasInsert,
		AttendanceCount: count,
	}, nil
}

// mapVerifyError translates the verifier's sentinels into the transport
// taxonomy. Invalid and expired are deliberately distinct: an expired token
// was once genuine, so the scanner can prompt for a fresh code.
func (v *credentialVerifier) mapVerifyError(err error) error {
	switch {
	case errors.Is(err, attendanceerrors.ErrTokenInvalid):
		return apperrors.InvalidInput("Attendance token is invalid")
	case errors.Is(err, attendanceerrors.ErrTokenExpired):
		return apperrors.Expired("Attendance token has expired")
	case errors.Is(err, attendanceerrors.ErrSessionNotActive):
		return apperrors.Conflict("Session is not active")
	case errors.Is(err, attendanceerrors.ErrIdentityRequired):
		return apperrors.InvalidInput("A user ID or email is required to check in")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to verify attendance credential", err)
}
