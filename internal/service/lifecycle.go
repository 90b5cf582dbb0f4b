package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ChangeStatus moves a ticket to statusID and maintains the lifecycle timestamps.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID, statusID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanChangeStatus(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to change status")
		}
		next, ok := tc.catalog.ByID(statusID)
		if !ok {
			return nil, apperrors.NewInvalidStatus(statusID)
		}
		if tc.ticket.StatusID == next.ID {
			return nil, nil
		}
		prev := tc.status()

		t := tc.ticket
		t.StatusID = next.ID
		if t.FirstResponseAt == nil && next.Slug != domain.StatusSlugNew {
			t.FirstResponseAt = timePtr(now)
		}
		if t.ResolvedAt == nil && (next.IsClosed || next.Slug == domain.StatusSlugWaitingConfirmation) {
			t.ResolvedAt = timePtr(now)
		}
		if next.Slug == domain.StatusSlugClosed {
			t.ClosedAt = timePtr(now)
		} else {
			t.ClosedAt = nil
		}

		if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityStatusChanged,
			OldValue:    prev.Name,
			NewValue:    next.Name,
			Description: "Status changed from " + statusLabel(prev) + " to " + next.Name,
		}); err != nil {
			return nil, err
		}
		return &events.Event{
			Type:         events.EventTicketStatusChanged,
			TicketID:     t.ID,
			TicketNumber: t.Number,
			ActorID:      actorRef(actor),
			Recipients:   recipients(t, actor.UserID),
			Payload:      events.TicketStatusChangedPayload{OldStatus: prev.Slug, NewStatus: next.Slug},
		}, nil
	})
}

// Close moves a ticket straight to the closed status.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to close ticket")
		}
		return s.closeTicket(ctx, repos, tc, now, actor, "Ticket closed")
	})
}

// ConfirmClosure lets the requester accept a resolution awaiting confirmation.
func (s *TicketService) ConfirmClosure(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanConfirmClosure(actor, tc.facts) {
			return nil, apperrors.NewForbidden("only the requester may confirm closure")
		}
		current := tc.status()
		if current.Slug == domain.StatusSlugClosed {
			return nil, nil
		}
		if current.Slug != domain.StatusSlugWaitingConfirmation {
			return nil, apperrors.NewInvalidTransition("ticket is not awaiting confirmation",
				map[string]any{"status": current.Slug})
		}
		return s.closeTicket(ctx, repos, tc, now, actor, "Closure confirmed by requester")
	})
}

// RejectResolution sends a ticket awaiting confirmation back to work.
func (s *TicketService) RejectResolution(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanConfirmClosure(actor, tc.facts) {
			return nil, apperrors.NewForbidden("only the requester may reject a resolution")
		}
		current := tc.status()
		if current.Slug != domain.StatusSlugWaitingConfirmation {
			return nil, apperrors.NewInvalidTransition("ticket is not awaiting confirmation",
				map[string]any{"status": current.Slug})
		}
		next, err := requireStatus(tc.catalog, domain.StatusSlugInProgress)
		if err != nil {
			return nil, err
		}

		t := tc.ticket
		t.StatusID = next.ID
		t.ResolvedAt = nil
		t.ClosedAt = nil

		description := "Resolution rejected by requester"
		if reason = strings.TrimSpace(reason); reason != "" {
			description += ": " + reason
		}
		if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityReopened,
			OldValue:    current.Name,
			NewValue:    next.Name,
			Description: description,
		}); err != nil {
			return nil, err
		}
		return &events.Event{
			Type:         events.EventTicketReopened,
			TicketID:     t.ID,
			TicketNumber: t.Number,
			ActorID:      actorRef(actor),
			Recipients:   recipients(t, actor.UserID),
			Payload:      events.TicketStatusChangedPayload{OldStatus: current.Slug, NewStatus: next.Slug},
		}, nil
	})
}

func (s *TicketService) closeTicket(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time, actor domain.Actor, description string) (*events.Event, error) {
	closed, err := requireStatus(tc.catalog, domain.StatusSlugClosed)
	if err != nil {
		return nil, err
	}
	if tc.ticket.StatusID == closed.ID {
		return nil, nil
	}
	prev := tc.status()

	t := tc.ticket
	t.StatusID = closed.ID
	t.ClosedAt = timePtr(now)
	if t.ResolvedAt == nil {
		t.ResolvedAt = timePtr(now)
	}

	if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
		ActorID:     actorRef(actor),
		Action:      domain.ActivityClosed,
		OldValue:    prev.Name,
		NewValue:    closed.Name,
		Description: description,
	}); err != nil {
		return nil, err
	}
	return &events.Event{
		Type:         events.EventTicketClosed,
		TicketID:     t.ID,
		TicketNumber: t.Number,
		ActorID:      actorRef(actor),
		Recipients:   recipients(t, actor.UserID),
		Payload:      events.TicketStatusChangedPayload{OldStatus: prev.Slug, NewStatus: closed.Slug},
	}, nil
}

func statusLabel(st domain.TicketStatus) string {
	if st.Name == "" {
		return "unknown"
	}
	return st.Name
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
