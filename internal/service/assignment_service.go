package service

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentResolver computes the pool of users a ticket may be assigned to.
type AssignmentResolver struct{}

// NewAssignmentResolver creates the resolver.
func NewAssignmentResolver() *AssignmentResolver {
	return &AssignmentResolver{}
}

// EligibleAssignees returns active staff of the ticket's department plus active staff
// members of its group, de-duplicated and sorted by name.
func (r *AssignmentResolver) EligibleAssignees(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, group *domain.TicketGroup) ([]domain.User, error) {
	pool, err := repos.Users().ListStaffByDepartment(ctx, ticket.DepartmentID)
	if err != nil {
		return nil, err
	}
	if group != nil && ticket.GroupID != nil && group.ID == *ticket.GroupID && len(group.MemberIDs) > 0 {
		members, err := repos.Users().ListByIDs(ctx, group.MemberIDs)
		if err != nil {
			return nil, err
		}
		pool = append(pool, members...)
	}

	seen := make(map[string]struct{}, len(pool))
	result := make([]domain.User, 0, len(pool))
	for _, user := range pool {
		if !assignable(user) {
			continue
		}
		if _, ok := seen[user.ID]; ok {
			continue
		}
		seen[user.ID] = struct{}{}
		result = append(result, user)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// IsEligible reports whether userID is in the ticket's assignment pool.
func (r *AssignmentResolver) IsEligible(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, group *domain.TicketGroup, userID string) (bool, error) {
	pool, err := r.EligibleAssignees(ctx, repos, ticket, group)
	if err != nil {
		return false, err
	}
	for _, user := range pool {
		if user.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func assignable(user domain.User) bool {
	return user.Active && (user.Role == domain.RoleStaff || user.Role == domain.RoleAdmin)
}

// AssignSelf assigns the ticket to the acting staff member.
func (s *TicketService) AssignSelf(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanAssign(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to assign ticket")
		}
		if !actor.IsAdmin() && !actor.InDepartment(tc.ticket.DepartmentID) {
			return nil, apperrors.NewForbidden("ticket belongs to another department")
		}
		if current := tc.ticket.AssigneeID; current != nil {
			if *current == actor.UserID {
				return nil, nil
			}
			return nil, apperrors.NewInvalidTransition("ticket already assigned",
				map[string]any{"assignee_id": *current})
		}
		return s.applyAssignee(ctx, repos, tc, now, actor, actor.UserID)
	})
}

// AssignTo assigns the ticket to assigneeID, who must be in the assignment pool.
// Admins may pick any active staff member.
func (s *TicketService) AssignTo(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanAssign(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to assign ticket")
		}
		if tc.ticket.IsAssignedTo(assigneeID) {
			return nil, nil
		}
		assignee, err := repos.Users().GetByID(ctx, assigneeID)
		if err != nil {
			return nil, apperrors.NotFoundOr(err, "user", map[string]any{"user_id": assigneeID})
		}
		if !assignable(*assignee) {
			return nil, apperrors.NewValidationError("assignee must be active staff", map[string]any{"user_id": assigneeID})
		}
		if !actor.IsAdmin() {
			eligible, err := s.assignment.IsEligible(ctx, repos, tc.ticket, tc.group, assigneeID)
			if err != nil {
				return nil, err
			}
			if !eligible {
				return nil, apperrors.NewForbidden("assignee outside ticket department and group")
			}
		}
		return s.applyAssignee(ctx, repos, tc, now, actor, assigneeID)
	})
}

// Unassign clears the assignee.
func (s *TicketService) Unassign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.mutate(ctx, ticketID, func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error) {
		if !policy.CanAssign(actor, tc.facts) {
			return nil, apperrors.NewForbidden("not allowed to assign ticket")
		}
		if tc.ticket.AssigneeID == nil {
			return nil, nil
		}
		previous := *tc.ticket.AssigneeID
		tc.ticket.AssigneeID = nil
		if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
			ActorID:     actorRef(actor),
			Action:      domain.ActivityUnassigned,
			OldValue:    s.userName(ctx, repos, previous),
			Description: "Assignee removed",
		}); err != nil {
			return nil, err
		}
		return &events.Event{
			Type:         events.EventTicketAssigned,
			TicketID:     tc.ticket.ID,
			TicketNumber: tc.ticket.Number,
			ActorID:      actorRef(actor),
			Recipients:   recipients(tc.ticket, actor.UserID, previous),
			Payload:      events.TicketAssignedPayload{},
		}, nil
	})
}

// EligibleAssignees lists the assignment pool for a ticket the actor may assign.
func (s *TicketService) EligibleAssignees(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.User, error) {
	tc, err := s.loadContext(ctx, s.store, ticketID, false)
	if err != nil {
		return nil, err
	}
	if !policy.CanAssign(actor, tc.facts) {
		return nil, apperrors.NewForbidden("not allowed to assign ticket")
	}
	users, err := s.assignment.EligibleAssignees(ctx, s.store, tc.ticket, tc.group)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

func (s *TicketService) applyAssignee(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time, actor domain.Actor, assigneeID string) (*events.Event, error) {
	var previous string
	if tc.ticket.AssigneeID != nil {
		previous = s.userName(ctx, repos, *tc.ticket.AssigneeID)
	}
	id := assigneeID
	tc.ticket.AssigneeID = &id
	name := s.userName(ctx, repos, assigneeID)

	description := "Assigned to " + name
	if assigneeID == actor.UserID {
		description = "Self-assigned by " + name
	}
	if err := s.saveWithActivity(ctx, repos, tc, now, ActivityEntry{
		ActorID:     actorRef(actor),
		Action:      domain.ActivityAssigned,
		OldValue:    previous,
		NewValue:    name,
		Description: description,
	}); err != nil {
		return nil, err
	}
	return &events.Event{
		Type:         events.EventTicketAssigned,
		TicketID:     tc.ticket.ID,
		TicketNumber: tc.ticket.Number,
		ActorID:      actorRef(actor),
		Recipients:   recipients(tc.ticket, actor.UserID),
		Payload:      events.TicketAssignedPayload{AssigneeID: &id},
	}, nil
}

// userName resolves a display name for activity values, falling back to the id.
func (s *TicketService) userName(ctx context.Context, repos repository.Repositories, userID string) string {
	user, err := repos.Users().GetByID(ctx, userID)
	if err != nil || user.Name == "" {
		return userID
	}
	return user.Name
}
