package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"confdesk/internal/attendance/token"
	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/pkg/audit"
	"confdesk/pkg/clock"
	"confdesk/pkg/config"
	apperrors "confdesk/pkg/errors"
	"confdesk/pkg/logger"
	"confdesk/pkg/model"
	"confdesk/pkg/sealer"
)

// --- Mocks ---

type mockSessionReader struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
}

type mockAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (m *mockAuditor) Publish(ctx context.Context, entry audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditor) Close() error { return nil }

func (m *mockAuditor) byType(entryType string) []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if e.Type == entryType {
			out = append(out, e)
		}
	}
	return out
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)

func issuerConfig() *config.Config {
	return &config.Config{
		Log:                logger.New(logger.Config{Level: "error", Service: "test"}),
		DefaultTokenTTLMin: 30,
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
	}
}

func newTestSigner(t *testing.T) sealer.Signer {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	s, err := sealer.NewHMAC(secret)
	if err != nil {
		t.Fatalf("failed to build signer: %v", err)
	}
	return s
}

// liveSession runs 10:00-12:00; testNow (10:30) is inside it.
func liveSession() *model.Session {
	return &model.Session{
		ID:        "sess-1",
		EventID:   "event-1",
		HallID:    "hall-1",
		Title:     "Opening Keynote",
		StartTime: time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
		Type:      model.SessionTypeKeynote,
	}
}

func readerFor(sessions ...*model.Session) *mockSessionReader {
	byID := make(map[string]*model.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	return &mockSessionReader{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			if s, ok := byID[id]; ok {
				return s, nil
			}
			return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
		},
	}
}

func expectAppCode(t *testing.T, err error, code string) *apperrors.AppError {
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

// --- Issue ---

func TestIssue_Success(t *testing.T) {
	signer := newTestSigner(t)
	auditor := &mockAuditor{}
	issuer := NewCredentialIssuer(readerFor(liveSession()), signer, clock.NewFixed(testNow), auditor, issuerConfig())

	cred, err := issuer.Issue(context.Background(), "sess-1", 30)
	if err != nil {
		t.Fatalf("expected issue to succeed, got %v", err)
	}
	if cred.SessionID != "sess-1" {
		t.Errorf("expected session id sess-1, got %s", cred.SessionID)
	}
	wantExpiry := testNow.Add(30 * time.Minute)
	if !cred.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, cred.ExpiresAt)
	}

	claims, err := token.Decode(cred.Token, signer)
	if err != nil {
		t.Fatalf("issued token failed to decode: %v", err)
	}
	if claims.SessionID != "sess-1" || claims.EventID != "event-1" || claims.HallID != "hall-1" {
		t.Errorf("claims mismatch: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected token expiry %v, got %v", wantExpiry, claims.ExpiresAt)
	}

	if entries := auditor.byType(audit.EntryQRGenerated); len(entries) != 1 {
		t.Errorf("expected one QR_GENERATED audit entry, got %d", len(entries))
	}
}

func TestIssue_ExpiryCappedAtSessionEnd(t *testing.T) {
	issuer := NewCredentialIssuer(readerFor(liveSession()), newTestSigner(t), clock.NewFixed(testNow), &mockAuditor{}, issuerConfig())

	// 120 minutes would outlive the session, which ends 90 minutes from now.
	cred, err := issuer.Issue(context.Background(), "sess-1", 120)
	if err != nil {
		t.Fatalf("expected issue to succeed, got %v", err)
	}
	if !cred.ExpiresAt.Equal(liveSession().EndTime) {
		t.Errorf("expected expiry capped at session end %v, got %v", liveSession().EndTime, cred.ExpiresAt)
	}
}

func TestIssue_DefaultTTL(t *testing.T) {
	issuer := NewCredentialIssuer(readerFor(liveSession()), newTestSigner(t), clock.NewFixed(testNow), &mockAuditor{}, issuerConfig())

	cred, err := issuer.Issue(context.Background(), "sess-1", 0)
	if err != nil {
		t.Fatalf("expected issue to succeed, got %v", err)
	}
	if want := testNow.Add(30 * time.Minute); !cred.ExpiresAt.Equal(want) {
		t.Errorf("expected default TTL expiry %v, got %v", want, cred.ExpiresAt)
	}
}

func TestIssue_TTLOutOfRange(t *testing.T) {
	issuer := NewCredentialIssuer(readerFor(liveSession()), newTestSigner(t), clock.NewFixed(testNow), &mockAuditor{}, issuerConfig())

	// Zero is not in this list: it selects the configured default.
	for _, ttl := range []int{-5, config.MaxTokenTTLMinutes + 1} {
		_, err := issuer.Issue(context.Background(), "sess-1", ttl)
		expectAppCode(t, err, apperrors.CodeInvalidInput)
	}
}

func TestIssue_SessionNotActive(t *testing.T) {
	sess := liveSession()
	issuer := NewCredentialIssuer(readerFor(sess), newTestSigner(t), clock.NewFixed(sess.StartTime.Add(-time.Hour)), &mockAuditor{}, issuerConfig())

	_, err := issuer.Issue(context.Background(), "sess-1", 30)
	expectAppCode(t, err, apperrors.CodeConflict)

	// Same answer once the session is over.
	issuer = NewCredentialIssuer(readerFor(sess), newTestSigner(t), clock.NewFixed(sess.EndTime), &mockAuditor{}, issuerConfig())
	_, err = issuer.Issue(context.Background(), "sess-1", 30)
	expectAppCode(t, err, apperrors.CodeConflict)
}

func TestIssue_SessionNotFound(t *testing.T) {
	issuer := NewCredentialIssuer(readerFor(), newTestSigner(t), clock.NewFixed(testNow), &mockAuditor{}, issuerConfig())

	_, err := issuer.Issue(context.Background(), "missing", 30)
	expectAppCode(t, err, apperrors.CodeNotFound)
}

func TestIssue_AuditFailureDoesNotBlock(t *testing.T) {
	auditor := &mockAuditor{err: fmt.Errorf("broker down")}
	issuer := NewCredentialIssuer(readerFor(liveSession()), newTestSigner(t), clock.NewFixed(testNow), auditor, issuerConfig())

	if _, err := issuer.Issue(context.Background(), "sess-1", 30); err != nil {
		t.Fatalf("expected issue to succeed despite audit failure, got %v", err)
	}
}

func TestIssueBulk_ItemsAreIndependent(t *testing.T) {
	over := liveSession()
	over.ID = "sess-over"
	over.StartTime = testNow.Add(-3 * time.Hour)
	over.EndTime = testNow.Add(-2 * time.Hour)

	issuer := NewCredentialIssuer(readerFor(liveSession(), over), newTestSigner(t), clock.NewFixed(testNow), &mockAuditor{}, issuerConfig())

	results := issuer.IssueBulk(context.Background(), []string{"sess-over", "sess-1"}, 30)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	expectAppCode(t, results[0].Err, apperrors.CodeConflict)
	if results[1].Err != nil {
		t.Errorf("expected second session to issue, got %v", results[1].Err)
	}
	if results[1].Credential == nil || results[1].Credential.Token == "" {
		t.Errorf("expected a sealed credential for sess-1, got %+v", results[1].Credential)
	}
}
