package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"confdesk/internal/attendance/token"
	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/pkg/audit"
	"confdesk/pkg/clock"
	"confdesk/pkg/config"
	apperrors "confdesk/pkg/errors"
	"confdesk/pkg/model"
	"confdesk/pkg/sealer"
)

// SessionReader is the slice of the session store the attendance side needs:
// it only ever reads single sessions to check liveness.
type SessionReader interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

type CredentialIssuer interface {
	// Issue seals a QR credential for a live session. ttlMinutes of zero
	// selects the configured default; the credential never outlives the
	// session itself.
	Issue(ctx context.Context, sessionID string, ttlMinutes int) (*model.IssuedCredential, error)
	IssueBulk(ctx context.Context, sessionIDs []string, ttlMinutes int) []model.CredentialBulkResult
}

type credentialIssuer struct {
	sessions SessionReader
	signer   sealer.Signer
	clock    clock.Clock
	auditor  audit.Publisher
	cfg      *config.Config
}

func NewCredentialIssuer(
	sessions SessionReader,
	signer sealer.Signer,
	clk clock.Clock,
	auditor audit.Publisher,
	cfg *config.Config,
) CredentialIssuer {
	return &credentialIssuer{
		sessions: sessions,
		signer:   signer,
		clock:    clk,
		auditor:  auditor,
		cfg:      cfg,
	}
}

func (i *credentialIssuer) Issue(ctx context.Context, sessionID string, ttlMinutes int) (*model.IssuedCredential, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	if ttlMinutes == 0 {
		ttlMinutes = i.cfg.DefaultTokenTTLMin
	}
	if ttlMinutes < config.MinTokenTTLMinutes || ttlMinutes > config.MaxTokenTTLMinutes {
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"Token TTL must be between %d and %d minutes", config.MinTokenTTLMinutes, config.MaxTokenTTLMinutes))
	}

	sess, err := i.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, mapSessionLookupError(sessionID, err)
	}

	now := i.clock.Now()
	if !sess.IsLiveAt(now) {
		return nil, apperrors.Conflict("Session is not active").WithDetails(map[string]any{
			"session_id": sessionID,
			"start_time": sess.StartTime,
			"end_time":   sess.EndTime,
		})
	}

	expiresAt := now.Add(time.Duration(ttlMinutes) * time.Minute)
	if expiresAt.After(sess.EndTime) {
		expiresAt = sess.EndTime
	}

	wire, err := token.Encode(&model.AttendanceToken{
		SessionID: sess.ID,
		EventID:   sess.EventID,
		HallID:    sess.HallID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, i.signer)
	if err != nil {
		i.cfg.Log.Error("Failed to seal attendance credential", "session_id", sessionID, "error", err)
		return nil, apperrors.Internal("Failed to generate attendance credential", err)
	}

	if auditErr := i.auditor.Publish(ctx, audit.Entry{
		Type:      audit.EntryQRGenerated,
		SessionID: sess.ID,
		EventID:   sess.EventID,
		At:        now,
		Details:   map[string]string{"expires_at": expiresAt.Format(time.RFC3339)},
	}); auditErr != nil {
		i.cfg.Log.Warn("Failed to publish audit entry", "type", audit.EntryQRGenerated, "session_id", sess.ID, "error", auditErr)
	}

	i.cfg.Log.Info("Attendance credential issued",
		"session_id", sess.ID,
		"ttl_minutes", ttlMinutes,
		"expires_at", expiresAt,
	)

	return &model.IssuedCredential{
		SessionID: sess.ID,
		Token:     wire,
		ExpiresAt: expiresAt,
	}, nil
}

// IssueBulk issues one credential per session, independently; a session that
// is over or missing does not block the rest.
func (i *credentialIssuer) IssueBulk(ctx context.Context, sessionIDs []string, ttlMinutes int) []model.CredentialBulkResult {
	results := make([]model.CredentialBulkResult, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		cred, err := i.Issue(ctx, id, ttlMinutes)
		results = append(results, model.CredentialBulkResult{
			SessionID:  id,
			Credential: cred,
			Err:        err,
		})
	}
	return results
}

func mapSessionLookupError(id string, err error) error {
	switch {
	case errors.Is(err, sessionserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Session", id)
	case errors.Is(err, sessionserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid session ID format")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Unavailable("Session store")
	}
	return apperrors.Internal("Failed to retrieve session", err)
}
