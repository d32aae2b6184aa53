// Package conflict implements double-booking detection for halls. The check
// is read-only; serializing it against concurrent writes is the scheduler's
// job.
package conflict

import (
	"context"
	"sort"
	"time"

	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/pkg/model"
)

// SessionCatalog is the read side of the session store the detector runs
// against. Inside a scheduling transaction this is the transactional view.
type SessionCatalog interface {
	FindByHall(ctx context.Context, hallID string) ([]*model.Session, error)
}

type Detector struct {
	catalog SessionCatalog
}

func NewDetector(catalog SessionCatalog) *Detector {
	return &Detector{catalog: catalog}
}

// FindConflicts returns every session in the hall whose [start, end) interval
// overlaps the proposed one, ordered by start time ascending. excludeID skips
// a session being edited against itself. Intervals are half-open, so a
// session ending exactly at start is not a conflict.
func (d *Detector) FindConflicts(ctx context.Context, hallID string, start, end time.Time, excludeID string) ([]*model.Session, error) {
	if !start.Before(end) {
		return nil, sessionserrors.ErrInvalidInterval
	}

	existing, err := d.catalog.FindByHall(ctx, hallID)
	if err != nil {
		return nil, err
	}

	var conflicts []*model.Session
	for _, s := range existing {
		if s.ID == excludeID {
			continue
		}
		if s.Overlaps(start, end) {
			conflicts = append(conflicts, s)
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].StartTime.Before(conflicts[j].StartTime)
	})

	return conflicts, nil
}
