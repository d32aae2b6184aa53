package model

import "time"

const (
	CheckInMethodManual = "MANUAL"
	CheckInMethodQR     = "QR"
)

// AttendanceToken is the transient claim set sealed into a QR credential.
// It is never persisted; the wire form is produced by the attendance token
// codec and must be treated as opaque by everything but the verifier.
type AttendanceToken struct {
	SessionID string    `json:"sid"`
	EventID   string    `json:"eid"`
	HallID    string    `json:"hid,omitempty"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// AttendanceRecord is the ledger entry for "user attended session". At most
// one record exists per (SessionID, UserID); repeated scans update ScannedAt
// and Metadata in place.
type AttendanceRecord struct {
	ID        string            `json:"id,omitempty" bson:"_id,omitempty"`
	SessionID string            `json:"session_id" bson:"session_id"`
	UserID    string            `json:"user_id" bson:"user_id"`
	EventID   string            `json:"event_id" bson:"event_id"`
	ScannedAt time.Time         `json:"scanned_at" bson:"scanned_at"`
	Method    string            `json:"method" bson:"method"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
}

// User is the minimal identity record the verifier provisions when a scan
// arrives with an email but no user id.
type User struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	Email       string    `json:"email" bson:"email"`
	DisplayName string    `json:"display_name,omitempty" bson:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// IssuedCredential is what the issue endpoints return to the dashboard.
type IssuedCredential struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CredentialBulkResult struct {
	SessionID  string            `json:"session_id"`
	Credential *IssuedCredential `json:"credential,omitempty"`
	Err        error             `json:"-"`
}

// CheckInResult reports the outcome of a verified scan. AttendanceCount is
// the post-write number of present attendees for the session.
type CheckInResult struct {
	AttendanceID    string `json:"attendance_id"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	IsUpdate        bool   `json:"is_update"`
	AttendanceCount int64  `json:"attendance_count"`
}
