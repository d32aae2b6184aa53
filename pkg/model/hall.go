package model

import "time"

// Hall is a physical venue owned by an event. Hall CRUD belongs to the
// dashboard layer; the scheduler only reads halls to verify assignments.
type Hall struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EventID   string    `json:"event_id" bson:"event_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity  int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=100000"`
	Equipment []string  `json:"equipment,omitempty" bson:"equipment,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// HallLock is an advisory lock serializing the conflict-check-then-write
// sequence for one hall. The collection carries a TTL index on expires_at
// so abandoned locks expire on their own.
type HallLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
