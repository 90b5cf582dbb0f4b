package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// ActivityEntry describes one audit record. A nil ActorID records a system action.
type ActivityEntry struct {
	TicketID    string
	ActorID     *string
	Action      domain.ActivityAction
	OldValue    string
	NewValue    string
	Description string
	At          time.Time
}

// ActivityLogger appends audit records through the caller's transaction so the trail
// commits or rolls back together with the mutation it describes.
type ActivityLogger struct {
	clock clock.Clock
}

// NewActivityLogger builds a logger stamping entries with clk.
func NewActivityLogger(clk clock.Clock) *ActivityLogger {
	if clk == nil {
		clk = clock.System()
	}
	return &ActivityLogger{clock: clk}
}

// Log writes entry using repos, which must be bound to the mutation's transaction.
func (l *ActivityLogger) Log(ctx context.Context, repos repository.Repositories, entry ActivityEntry) (*domain.TicketActivity, error) {
	at := entry.At
	if at.IsZero() {
		at = l.clock.Now()
	}
	activity := &domain.TicketActivity{
		TicketID:    entry.TicketID,
		UserID:      entry.ActorID,
		Action:      entry.Action,
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		Description: entry.Description,
		CreatedAt:   at.UTC(),
	}
	if err := repos.Activities().Create(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}
