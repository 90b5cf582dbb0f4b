package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle: creation, SLA targets, authorized
// transitions and the audit trail.
type TicketService struct {
	store      repository.Store
	resolver   *sla.Resolver
	activities *ActivityLogger
	assignment *AssignmentResolver
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title         string
	Description   string
	TypeID        string
	CategoryID    string
	SubcategoryID *string
	PriorityID    string
	DepartmentID  string
	GroupID       *string
	// RequesterID files the ticket on behalf of another user; honored for admins only.
	RequesterID string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	StatusIDs   []string
	PriorityIDs []string
	AssigneeID  *string
	GroupID     *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		resolver:   sla.NewResolver(),
		activities: NewActivityLogger(clk),
		assignment: NewAssignmentResolver(),
		dispatcher: deps.Dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// ticketContext is the locked ticket plus everything the policy and transitions read.
type ticketContext struct {
	ticket   *domain.Ticket
	group    *domain.TicketGroup
	category *domain.TicketCategory
	catalog  *domain.StatusCatalog
	facts    policy.TicketFacts
}

func (tc *ticketContext) status() domain.TicketStatus {
	st, _ := tc.catalog.ByID(tc.ticket.StatusID)
	return st
}

func (tc *ticketContext) refreshFacts() {
	tc.facts = policy.FactsFor(tc.ticket, tc.group, tc.category)
}

func (s *TicketService) loadContext(ctx context.Context, repos repository.Repositories, ticketID string, forUpdate bool) (*ticketContext, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if forUpdate {
		ticket, err = repos.Tickets().GetByIDForUpdate(ctx, ticketID)
	} else {
		ticket, err = repos.Tickets().GetByID(ctx, ticketID)
	}
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	tc := &ticketContext{ticket: ticket}
	if ticket.GroupID != nil {
		group, err := repos.Groups().GetByID(ctx, *ticket.GroupID)
		if err != nil {
			return nil, apperrors.NotFoundOr(err, "ticket group", map[string]any{"group_id": *ticket.GroupID})
		}
		tc.group = group
	}
	category, err := repos.Catalog().GetCategory(ctx, ticket.CategoryID)
	if err != nil {
		return nil, apperrors.NotFoundOr(err, "category", map[string]any{"category_id": ticket.CategoryID})
	}
	tc.category = category

	catalog, err := loadStatusCatalog(ctx, repos)
	if err != nil {
		return nil, err
	}
	tc.catalog = catalog
	tc.refreshFacts()
	return tc, nil
}

// mutation applies a change to the locked ticket. It returns the event to publish after
// commit, or nil when the call turned out to be a no-op.
type mutation func(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time) (*events.Event, error)

// mutate runs fn inside one transaction; any error discards all pending writes.
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn mutation) (*domain.Ticket, error) {
	var (
		result *domain.Ticket
		event  *events.Event
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		tc, err := s.loadContext(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		event, err = fn(ctx, repos, tc, now)
		if err != nil {
			return err
		}
		result = tc.ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if event != nil {
		s.publishEvent(ctx, *event)
	}
	return result, nil
}

func (s *TicketService) saveWithActivity(ctx context.Context, repos repository.Repositories, tc *ticketContext, now time.Time, entry ActivityEntry) error {
	tc.ticket.UpdatedAt = now
	if err := repos.Tickets().Update(ctx, tc.ticket); err != nil {
		return err
	}
	entry.TicketID = tc.ticket.ID
	entry.At = now
	_, err := s.activities.Log(ctx, repos, entry)
	return err
}

// CreateTicket files a ticket, resolving SLA targets and starting it in the "new" status.
// Only admins may file on behalf of another requester; anyone else is recorded as the
// requester regardless of input.RequesterID.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !policy.CanCreate(actor) {
		return nil, apperrors.NewForbidden("not allowed to create tickets")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || input.TypeID == "" || input.CategoryID == "" || input.PriorityID == "" || input.DepartmentID == "" {
		return nil, apperrors.NewValidationError("title, type_id, category_id, priority_id, department_id required", nil)
	}

	requesterID := actor.UserID
	if actor.IsAdmin() && strings.TrimSpace(input.RequesterID) != "" {
		requesterID = strings.TrimSpace(input.RequesterID)
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if requesterID != actor.UserID {
			if _, err := repos.Users().GetByID(ctx, requesterID); err != nil {
				return apperrors.NotFoundOr(err, "requester", map[string]any{"requester_id": requesterID})
			}
		}
		if _, err := repos.Departments().GetByID(ctx, input.DepartmentID); err != nil {
			return apperrors.NotFoundOr(err, "department", map[string]any{"department_id": input.DepartmentID})
		}
		if input.GroupID != nil {
			if _, err := repos.Groups().GetByID(ctx, *input.GroupID); err != nil {
				return apperrors.NotFoundOr(err, "ticket group", map[string]any{"group_id": *input.GroupID})
			}
		}
		ticketType, err := repos.Catalog().GetType(ctx, input.TypeID)
		if err != nil || !ticketType.IsActive {
			return inactiveOrMissing(err, "ticket type", "type_id", input.TypeID)
		}
		category, err := repos.Catalog().GetCategory(ctx, input.CategoryID)
		if err != nil || !category.IsActive {
			return inactiveOrMissing(err, "category", "category_id", input.CategoryID)
		}
		priority, err := repos.Catalog().GetPriority(ctx, input.PriorityID)
		if err != nil || !priority.IsActive {
			return inactiveOrMissing(err, "priority", "priority_id", input.PriorityID)
		}

		catalog, err := loadStatusCatalog(ctx, repos)
		if err != nil {
			return err
		}
		initial, err := requireStatus(catalog, domain.StatusSlugNew)
		if err != nil {
			return err
		}

		targets, err := s.resolveTargets(ctx, repos, ticketType.ID, category, *priority)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		responseDue, resolutionDue := sla.DueDates(now, targets)
		ticket = &domain.Ticket{
			Number:          generateTicketNumber(),
			Title:           title,
			Description:     strings.TrimSpace(input.Description),
			TypeID:          ticketType.ID,
			CategoryID:      category.ID,
			SubcategoryID:   input.SubcategoryID,
			PriorityID:      priority.ID,
			DepartmentID:    input.DepartmentID,
			GroupID:         input.GroupID,
			RequesterID:     requesterID,
			StatusID:        initial.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
			ResponseDueAt:   responseDue,
			ResolutionDueAt: resolutionDue,
		}
		if err := repos.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		description := "Ticket created"
		if requesterID != actor.UserID {
			description = "Ticket created on behalf of requester"
		}
		_, err = s.activities.Log(ctx, repos, ActivityEntry{
			TicketID:    ticket.ID,
			ActorID:     actorRef(actor),
			Action:      domain.ActivityCreated,
			NewValue:    initial.Name,
			Description: description,
			At:          now,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		ActorID:      actorRef(actor),
		Recipients:   recipients(ticket, actor.UserID),
		Payload: events.TicketCreatedPayload{
			DepartmentID: ticket.DepartmentID,
			PriorityID:   ticket.PriorityID,
			Title:        ticket.Title,
		},
	})
	return ticket, nil
}

func (s *TicketService) resolveTargets(ctx context.Context, repos repository.Repositories, typeID string, category *domain.TicketCategory, priority domain.TicketPriority) (sla.Targets, error) {
	if category.IsDevelopment {
		return sla.Targets{Source: sla.SourceExempt}, nil
	}
	rules, err := repos.Catalog().ListSlaRules(ctx, priority.ID)
	if err != nil {
		return sla.Targets{}, err
	}
	key := sla.Key{TypeID: typeID, PriorityID: priority.ID, CategoryID: category.ID}
	return s.resolver.Resolve(key, category, priority, rules), nil
}

// Get returns a ticket the actor may view.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	tc, err := s.loadContext(ctx, s.store, ticketID, false)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(actor, tc.facts) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return tc.ticket, nil
}

// List returns tickets visible to the actor.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		StatusIDs:   filter.StatusIDs,
		PriorityIDs: filter.PriorityIDs,
		AssigneeID:  filter.AssigneeID,
		GroupID:     filter.GroupID,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleStaff:
		repoFilter.VisibleTo = &repository.VisibilityScope{UserID: actor.UserID, DepartmentID: actor.DepartmentID}
	case domain.RoleRequester:
		repoFilter.RequesterID = &actor.UserID
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	tickets, err := s.store.Tickets().ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Capabilities evaluates every capability of actor on the ticket.
func (s *TicketService) Capabilities(ctx context.Context, actor domain.Actor, ticketID string) (map[policy.Capability]bool, error) {
	tc, err := s.loadContext(ctx, s.store, ticketID, false)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(actor, tc.facts) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return policy.Capabilities(actor, tc.facts), nil
}

// ListActivities returns the audit trail of a ticket the actor may view.
func (s *TicketService) ListActivities(ctx context.Context, actor domain.Actor, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if _, err := s.Get(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	activities, err := s.store.Activities().ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return activities, nil
}

// ListComments returns the comment thread of a ticket the actor may view.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketComment, error) {
	if _, err := s.Get(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// Delete hard-deletes a ticket. Admin only.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, ticketID string) error {
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		tc, err := s.loadContext(ctx, repos, ticketID, true)
		if err != nil {
			return err
		}
		if !policy.CanDelete(actor, tc.facts) {
			return apperrors.NewForbidden("only administrators may delete tickets")
		}
		return repos.Tickets().Delete(ctx, ticketID)
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("actor_id", actor.UserID))
	return nil
}

func inactiveOrMissing(err error, resource, key, id string) error {
	details := map[string]any{key: id}
	if err != nil {
		return apperrors.NotFoundOr(err, resource, details)
	}
	return apperrors.NewValidationError(resource+" is inactive", details)
}

func generateTicketNumber() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func actorRef(actor domain.Actor) *string {
	if actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

// recipients lists the parties to notify about a ticket, excluding the actor.
func recipients(ticket *domain.Ticket, actorID string, extra ...string) []string {
	candidates := []string{ticket.RequesterID}
	if ticket.AssigneeID != nil {
		candidates = append(candidates, *ticket.AssigneeID)
	}
	candidates = append(candidates, extra...)

	seen := make(map[string]struct{}, len(candidates))
	var result []string
	for _, id := range candidates {
		if id == "" || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.clock, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, clk clock.Clock, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = clk.Now()
	}
	dispatcher.Publish(ctx, event)
}

// stringPreview shortens body to at most max runes, never splitting a character.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
