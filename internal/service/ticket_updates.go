package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AttachmentInput describes an uploaded file already stored externally.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// ChangePriority updates the priority. Due dates keep their original values.
func (s *TicketService) ChangePriority(ctx context.Context, actor domain.Actor, ticketID, priorityID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to update ticket")
		}
		if tc.ticket.PriorityID == priorityID {
			return nil, nil
		}
		next, err := repos.Catalog().GetPriority(ctx, priorityID)
		if err != nil || !next.IsActive {
			return nil, inactiveOrMissing(err, "priority", "priority_id", priorityID)
		}
		oldName := tc.ticket.PriorityID
		if prev, err := repos.Catalog().GetPriority(ctx, tc.ticket.PriorityID); err == nil {
			oldName = prev.Name
		}
		tc.ticket.PriorityID = next.ID
		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityPriorityChanged,
			OldValue:    oldName,
			NewValue:    next.Name,
			Description: "Priority changed to " + next.Name,
		})
	})
}

// ChangeCategory moves the ticket to another category and recalculates SLA due dates from
// the original creation time.
func (s *TicketService) ChangeCategory(ctx context.Context, actor domain.Actor, ticketID, categoryID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to update ticket")
		}
		if tc.ticket.CategoryID == categoryID {
			return nil, nil
		}
		next, err := repos.Catalog().GetCategory(ctx, categoryID)
		if err != nil || !next.IsActive {
			return nil, inactiveOrMissing(err, "category", "category_id", categoryID)
		}
		priority, err := repos.Catalog().GetPriority(ctx, tc.ticket.PriorityID)
		if err != nil {
			return nil, apperrors.NotFoundOr(err, "priority", map[string]any{"priority_id": tc.ticket.PriorityID})
		}
		targets, err := s.resolveTargets(ctx, repos, tc.ticket.TypeID, next, *priority)
		if err != nil {
			return nil, err
		}

		prev := tc.category
		t := tc.ticket
		t.CategoryID = next.ID
		t.ResponseDueAt, t.ResolutionDueAt = sla.DueDates(t.CreatedAt, targets)
		if !next.IsDevelopment {
			t.DueDate = nil
		}
		tc.category = next
		tc.refreshFacts()

		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityCategoryChanged,
			OldValue:    prev.Name,
			NewValue:    next.Name,
			Description: "Category changed to " + next.Name,
		})
	})
}

// SetDueDate records a manual due date on a development ticket. Admin only.
func (s *TicketService) SetDueDate(ctx context.Context, actor domain.Actor, ticketID string, due time.Time) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !actor.IsAdmin() {
			return nil, apperrors.NewForbidden("only administrators may set due dates")
		}
		if !policy.CanSetDueDate(actor, tc.facts) {
			return nil, apperrors.NewInvalidTransition("due dates apply to development tickets only",
				map[string]any{"category_id": tc.ticket.CategoryID})
		}
		due = due.UTC()
		var old string
		if tc.ticket.DueDate != nil {
			if tc.ticket.DueDate.Equal(due) {
				return nil, nil
			}
			old = tc.ticket.DueDate.Format(time.RFC3339)
		}
		tc.ticket.DueDate = &due
		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityDueDateSet,
			OldValue:    old,
			NewValue:    due.Format(time.RFC3339),
			Description: "Due date set to " + due.Format("2006-01-02"),
		})
	})
}

// AddComment appends a comment to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.TicketComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	var comment *domain.TicketComment
	_, err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanComment(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to comment")
		}
		comment = &domain.TicketComment{
			TicketID:  tc.ticket.ID,
			UserID:    actor.UserID,
			Body:      body,
			CreatedAt: now,
		}
		if err := repos.Comments().Create(ctx, comment); err != nil {
			return nil, err
		}
		preview := stringPreview(body, 120)
		if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityCommented,
			NewValue:    preview,
			Description: "Comment added",
		}); err != nil {
			return nil, err
		}
		return &events.Event{
			Type:         events.EventTicketCommented,
			TicketID:     tc.ticket.ID,
			TicketNumber: tc.ticket.Number,
			ActorID:      actorRef(actor),
			Recipients:   recipients(tc.ticket, actor.UserID, tc.ticket.Collaborators...),
			Payload:      events.TicketCommentedPayload{CommentID: comment.ID, BodyPreview: preview},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// AddAttachment records metadata for a file uploaded to the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, actor domain.Actor, ticketID string, input AttachmentInput) (*domain.TicketAttachment, error) {
	if strings.TrimSpace(input.StorageKey) == "" || strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewValidationError("storage_key and file_name required", nil)
	}
	if input.SizeBytes < 0 {
		return nil, apperrors.NewValidationError("size_bytes must not be negative", nil)
	}
	var attachment *domain.TicketAttachment
	_, err := s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to attach files")
		}
		attachment = &domain.TicketAttachment{
			TicketID:   tc.ticket.ID,
			UploadedBy: actor.UserID,
			StorageKey: strings.TrimSpace(input.StorageKey),
			FileName:   strings.TrimSpace(input.FileName),
			MimeType:   input.MimeType,
			SizeBytes:  input.SizeBytes,
			CreatedAt:  now,
		}
		if err := repos.Attachments().Create(ctx, attachment); err != nil {
			return nil, err
		}
		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityAttachmentAdded,
			NewValue:    attachment.FileName,
			Description: "Attachment " + attachment.FileName + " added",
		})
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// AddCollaborator adds a staff member as collaborator. Adding an existing collaborator
// is a no-op.
func (s *TicketService) AddCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to manage collaborators")
		}
		if tc.ticket.HasCollaborator(userID) {
			return nil, nil
		}
		if tc.ticket.IsAssignedTo(userID) {
			return nil, apperrors.NewValidationError("assignee cannot be a collaborator", map[string]any{"user_id": userID})
		}
		user, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, apperrors.NotFoundOr(err, "user", map[string]any{"user_id": userID})
		}
		if !assignable(*user) {
			return nil, apperrors.NewValidationError("collaborator must be active staff", map[string]any{"user_id": userID})
		}
		if err := repos.Tickets().AddCollaborator(ctx, tc.ticket.ID, userID); err != nil {
			return nil, err
		}
		tc.ticket.Collaborators = append(tc.ticket.Collaborators, userID)
		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityCollaboratorAdded,
			NewValue:    user.Name,
			Description: user.Name + " added as collaborator",
		})
	})
}

// RemoveCollaborator removes a collaborator. Removing a non-collaborator is a no-op.
func (s *TicketService) RemoveCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanEdit(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to manage collaborators")
		}
		if !tc.ticket.HasCollaborator(userID) {
			return nil, nil
		}
		if err := repos.Tickets().RemoveCollaborator(ctx, tc.ticket.ID, userID); err != nil {
			return nil, err
		}
		remaining := tc.ticket.Collaborators[:0]
		for _, id := range tc.ticket.Collaborators {
			if id != userID {
				remaining = append(remaining, id)
			}
		}
		tc.ticket.Collaborators = remaining
		name := s.userName(ctx, repos, userID)
		return nil, s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityCollaboratorRemoved,
			OldValue:    name,
			Description: name + " removed as collaborator",
		})
	})
}
