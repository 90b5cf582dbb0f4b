package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	defaultAutoCloseGrace = 72 * time.Hour
	defaultSweepBatchSize = 200
)

// SweepResult summarises one auto-close pass.
type SweepResult struct {
	Closed  int
	Skipped int
	Failed  int
}

// AutoCloseDependencies bundles collaborators for the sweeper.
type AutoCloseDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
	Grace      time.Duration
	BatchSize  int
}

// AutoCloseSweeper closes tickets whose resolution went unconfirmed for the grace period.
type AutoCloseSweeper struct {
	store      repository.Store
	activities *ActivityLogger
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	grace      time.Duration
	batchSize  int
}

// NewAutoCloseSweeper constructs the sweeper.
func NewAutoCloseSweeper(deps AutoCloseDependencies) *AutoCloseSweeper {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := deps.Grace
	if grace <= 0 {
		grace = defaultAutoCloseGrace
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &AutoCloseSweeper{
		store:      deps.Store,
		activities: NewActivityLogger(clk),
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     logger,
		grace:      grace,
		batchSize:  batch,
	}
}

// Description is the audit text written for every auto-closed ticket.
func (s *AutoCloseSweeper) Description() string {
	return fmt.Sprintf("Ticket closed automatically after %s without requester confirmation", graceLabel(s.grace))
}

// Run closes every ticket in waiting_confirmation resolved more than the grace period
// before now. Running it again with the same now closes nothing further.
func (s *AutoCloseSweeper) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	now = now.UTC()

	catalog, err := loadStatusCatalog(ctx, s.store)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	if err := catalog.Validate(domain.StatusSlugWaitingConfirmation, domain.StatusSlugClosed); err != nil {
		return result, apperrors.NewConfigurationMissing(err.Error(), err)
	}
	waiting, _ := catalog.BySlug(domain.StatusSlugWaitingConfirmation)
	closed, _ := catalog.BySlug(domain.StatusSlugClosed)
	cutoff := now.Add(-s.grace)

	// Closed and skipped tickets drop out of the listing; failed ones stay in it, so the
	// limit is widened by the failures seen so far and seen ids are filtered out.
	seen := make(map[string]struct{})
	failed := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		limit := s.batchSize + failed
		ids, err := s.store.Tickets().ListStaleIDs(ctx, waiting.ID, cutoff, limit)
		if err != nil {
			return result, apperrors.MapError(err)
		}
		fresh := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh++

			ticket, err := s.closeOne(ctx, id, waiting, closed, cutoff, now)
			switch {
			case isNotFound(err):
				result.Skipped++
			case err != nil:
				result.Failed++
				failed++
				s.logger.Error("auto-close failed", zap.String("ticket_id", id), zap.Error(err))
			case ticket == nil:
				result.Skipped++
			default:
				result.Closed++
				publish(ctx, s.dispatcher, s.clock, events.Event{
					Type:         events.EventTicketAutoClosed,
					TicketID:     ticket.ID,
					TicketNumber: ticket.Number,
					Recipients:   recipients(ticket, ""),
					Timestamp:    now,
					Payload:      events.TicketStatusChangedPayload{OldStatus: waiting.Slug, NewStatus: closed.Slug},
				})
			}
		}
		if fresh == 0 || len(ids) < limit {
			break
		}
	}

	s.logger.Info("auto-close sweep finished",
		zap.Int("closed", result.Closed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Time("cutoff", cutoff))
	return result, nil
}

// closeOne returns nil, nil when the ticket no longer qualifies.
func (s *AutoCloseSweeper) closeOne(ctx context.Context, ticketID string, waiting, closed domain.TicketStatus, cutoff, now time.Time) (*domain.Ticket, error) {
	var result *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		ticket, err := repos.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.StatusID != waiting.ID || ticket.ResolvedAt == nil || !ticket.ResolvedAt.Before(cutoff) {
			return nil
		}
		ticket.StatusID = closed.ID
		ticket.ClosedAt = timePtr(now)
		ticket.UpdatedAt = now
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := s.activities.Log(ctx, repos, ActivityEntry{
			TicketID:    ticket.ID,
			Action:      domain.ActivityAutoClosed,
			OldValue:    waiting.Name,
			NewValue:    closed.Name,
			Description: s.Description(),
			At:          now,
		}); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isNotFound reports a ticket removed between listing and the locked re-read.
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || apperrors.HasCode(err, apperrors.CodeNotFound)
}

func graceLabel(grace time.Duration) string {
	if grace%(24*time.Hour) == 0 {
		days := int(grace / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(grace / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
