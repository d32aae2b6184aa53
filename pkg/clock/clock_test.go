package clock

import (
	"testing"
	"time"
)

func TestSystemClock_UTC(t *testing.T) {
	now := System().Now()
	if now.Location() != time.UTC {
		t.Errorf("expected UTC time, got %v", now.Location())
	}
}

func TestFixedClock(t *testing.T) {
	base := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	c := NewFixed(base)

	if !c.Now().Equal(base) {
		t.Errorf("expected %v, got %v", base, c.Now())
	}

	c.Advance(30 * time.Minute)
	if !c.Now().Equal(base.Add(30 * time.Minute)) {
		t.Errorf("expected %v, got %v", base.Add(30*time.Minute), c.Now())
	}

	later := base.Add(2 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("expected %v, got %v", later, c.Now())
	}
}
