// Package token implements the wire codec for QR attendance credentials.
// A token is base64url(claims JSON) + "." + base64url(tag), where the tag is
// computed over the encoded claims by a server-held key. Clients treat the
// whole string as opaque.
package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	attendanceerrors "confdesk/internal/attendance/errors"
	"confdesk/pkg/model"
	"confdesk/pkg/sealer"
)

// claims is the serialized form of a token. Timestamps are Unix seconds;
// sub-second precision adds nothing to a validity window measured in minutes
// and would bloat the QR payload.
type claims struct {
	SessionID string `json:"sid"`
	EventID   string `json:"eid"`
	HallID    string `json:"hid,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

var encoding = base64.RawURLEncoding

// Encode seals the token into its wire form. Encoding is deterministic: the
// same claims and key always produce the same string.
func Encode(t *model.AttendanceToken, signer sealer.Signer) (string, error) {
	payload, err := json.Marshal(claims{
		SessionID: t.SessionID,
		EventID:   t.EventID,
		HallID:    t.HallID,
		IssuedAt:  t.IssuedAt.Unix(),
		ExpiresAt: t.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token claims: %w", err)
	}

	encoded := encoding.EncodeToString(payload)
	tag := signer.Sign([]byte(encoded))
	return encoded + "." + encoding.EncodeToString(tag), nil
}

// Decode verifies the tag and unpacks the claims. Malformed input and a bad
// tag are indistinguishable to the caller: both return ErrTokenInvalid.
// Expiry is NOT checked here; that is the verifier's job, against its clock.
func Decode(wire string, signer sealer.Signer) (*model.AttendanceToken, error) {
	encoded, encodedTag, ok := strings.Cut(wire, ".")
	if !ok || encoded == "" || encodedTag == "" {
		return nil, attendanceerrors.ErrTokenInvalid
	}

	tag, err := encoding.DecodeString(encodedTag)
	if err != nil {
		return nil, attendanceerrors.ErrTokenInvalid
	}
	if !signer.Verify([]byte(encoded), tag) {
		return nil, attendanceerrors.ErrTokenInvalid
	}

	payload, err := encoding.DecodeString(encoded)
	if err != nil {
		return nil, attendanceerrors.ErrTokenInvalid
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, attendanceerrors.ErrTokenInvalid
	}
	if c.SessionID == "" || c.ExpiresAt == 0 {
		return nil, attendanceerrors.ErrTokenInvalid
	}

	return &model.AttendanceToken{
		SessionID: c.SessionID,
		EventID:   c.EventID,
		HallID:    c.HallID,
		IssuedAt:  time.Unix(c.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(c.ExpiresAt, 0).UTC(),
	}, nil
}
