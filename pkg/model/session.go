package model

import (
	"time"
)

const (
	SessionTypeKeynote    = "keynote"
	SessionTypeWorkshop   = "workshop"
	SessionTypePanel      = "panel"
	SessionTypePoster     = "poster"
	SessionTypeBreak      = "break"
	SessionTypeNetworking = "networking"
	SessionTypeOther      = "other"
)

// Session occupies the half-open interval [StartTime, EndTime) in its hall.
// HallID may be empty for virtual/no-venue sessions, which never conflict.
type Session struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EventID    string    `json:"event_id" bson:"event_id" validate:"required"`
	HallID     string    `json:"hall_id,omitempty" bson:"hall_id,omitempty" validate:"omitempty"`
	Title      string    `json:"title" bson:"title" validate:"required,min=2,max=200"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Type       string    `json:"type" bson:"type" validate:"required,session_type"`
	SpeakerIDs []string  `json:"speaker_ids,omitempty" bson:"speaker_ids,omitempty" validate:"omitempty,max=30"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Overlaps reports whether the session's interval intersects [start, end).
// Half-open semantics: a session ending exactly when another starts does
// not overlap, so back-to-back scheduling is legal.
func (s *Session) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// IsLiveAt reports whether t falls inside [StartTime, EndTime).
func (s *Session) IsLiveAt(t time.Time) bool {
	return !t.Before(s.StartTime) && t.Before(s.EndTime)
}

type SessionUpdate struct {
	HallID     *string    `json:"hall_id,omitempty" validate:"omitempty"`
	Title      string     `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	StartTime  *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty" validate:"omitempty"`
	Type       string     `json:"type,omitempty" validate:"omitempty,session_type"`
	SpeakerIDs *[]string  `json:"speaker_ids,omitempty" validate:"omitempty,max=30"`
}

// SessionBulkUpdate is one item of a bulk scheduling request. Items are
// validated and committed independently; one item's conflict does not block
// the others.
type SessionBulkUpdate struct {
	SessionID string        `json:"session_id"`
	Updates   SessionUpdate `json:"updates"`
}

type SessionBulkResult struct {
	SessionID string   `json:"session_id"`
	Session   *Session `json:"session,omitempty"`
	Err       error    `json:"-"`
}

type SessionBulkDeleteResult struct {
	SessionID string `json:"session_id"`
	Err       error  `json:"-"`
}
