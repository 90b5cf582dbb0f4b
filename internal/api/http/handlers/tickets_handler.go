package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketOperations is the ticket engine surface exposed over HTTP.
type TicketOperations interface {
	CreateTicket(ctx context.Context, actor domain.Actor, input service.TicketCreateInput) (*domain.Ticket, error)
	Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	List(ctx context.Context, actor domain.Actor, filter service.TicketListFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, actor domain.Actor, ticketID string) error
	Capabilities(ctx context.Context, actor domain.Actor, ticketID string) (map[policy.Capability]bool, error)
	ListActivities(ctx context.Context, actor domain.Actor, ticketID string, limit, offset int) ([]domain.TicketActivity, error)
	ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketComment, error)

	AssignSelf(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	AssignTo(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error)
	Unassign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	EligibleAssignees(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.User, error)

	ChangeStatus(ctx context.Context, actor domain.Actor, ticketID, statusID string) (*domain.Ticket, error)
	Close(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	ConfirmClosure(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	RejectResolution(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error)

	ChangePriority(ctx context.Context, actor domain.Actor, ticketID, priorityID string) (*domain.Ticket, error)
	ChangeCategory(ctx context.Context, actor domain.Actor, ticketID, categoryID string) (*domain.Ticket, error)
	SetDueDate(ctx context.Context, actor domain.Actor, ticketID string, due time.Time) (*domain.Ticket, error)
	AddComment(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.TicketComment, error)
	AddAttachment(ctx context.Context, actor domain.Actor, ticketID string, input service.AttachmentInput) (*domain.TicketAttachment, error)
	AddCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) (*domain.Ticket, error)
	RemoveCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) (*domain.Ticket, error)
}

// TicketsHandler manages ticket endpoints for every role; authorization lives in the engine.
type TicketsHandler struct {
	tickets TicketOperations
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketOperations) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		TypeID:        req.TypeID,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		PriorityID:    req.PriorityID,
		DepartmentID:  req.DepartmentID,
		GroupID:       req.GroupID,
		RequesterID:   req.RequesterID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.List(c.UserContext(), actor, parseTicketFilter(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.Get(ctx, actor, id)
	})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignSelf POST /tickets/:id/assign-self.
func (h *TicketsHandler) AssignSelf(c *fiber.Ctx) error {
	return h.respondTicket(c, h.tickets.AssignSelf)
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.AssigneeID) == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.AssignTo(ctx, actor, id, req.AssigneeID)
	})
}

// Unassign POST /tickets/:id/unassign.
func (h *TicketsHandler) Unassign(c *fiber.Ctx) error {
	return h.respondTicket(c, h.tickets.Unassign)
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.StatusID) == "" {
		return apperrors.NewValidationError("status_id required", nil)
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.ChangeStatus(ctx, actor, id, req.StatusID)
	})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	return h.respondTicket(c, h.tickets.Close)
}

// Confirm POST /tickets/:id/confirm.
func (h *TicketsHandler) Confirm(c *fiber.Ctx) error {
	return h.respondTicket(c, h.tickets.ConfirmClosure)
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	var req dto.RejectResolutionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.RejectResolution(ctx, actor, id, req.Reason)
	})
}

// ChangePriority POST /tickets/:id/priority.
func (h *TicketsHandler) ChangePriority(c *fiber.Ctx) error {
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.PriorityID) == "" {
		return apperrors.NewValidationError("priority_id required", nil)
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.ChangePriority(ctx, actor, id, req.PriorityID)
	})
}

// ChangeCategory POST /tickets/:id/category.
func (h *TicketsHandler) ChangeCategory(c *fiber.Ctx) error {
	var req dto.ChangeCategoryRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.CategoryID) == "" {
		return apperrors.NewValidationError("category_id required", nil)
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.ChangeCategory(ctx, actor, id, req.CategoryID)
	})
}

// SetDueDate POST /tickets/:id/due-date.
func (h *TicketsHandler) SetDueDate(c *fiber.Ctx) error {
	var req dto.SetDueDateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	due := parseTime(req.DueDate)
	if due == nil {
		return apperrors.NewValidationError("due_date must be RFC3339", map[string]any{"due_date": req.DueDate})
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.SetDueDate(ctx, actor, id, *due)
	})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.tickets.AddComment(c.UserContext(), actor, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachment POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	att, err := h.tickets.AddAttachment(c.UserContext(), actor, c.Params("id"), service.AttachmentInput{
		StorageKey: req.StorageKey,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AttachmentResponse{
		ID:         att.ID,
		UploadedBy: att.UploadedBy,
		FileName:   att.FileName,
		MimeType:   att.MimeType,
		SizeBytes:  att.SizeBytes,
		CreatedAt:  att.CreatedAt,
	}})
}

// AddCollaborator POST /tickets/:id/collaborators.
func (h *TicketsHandler) AddCollaborator(c *fiber.Ctx) error {
	var req dto.CollaboratorRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.AddCollaborator(ctx, actor, id, req.UserID)
	})
}

// RemoveCollaborator DELETE /tickets/:id/collaborators/:userId.
func (h *TicketsHandler) RemoveCollaborator(c *fiber.Ctx) error {
	userID := c.Params("userId")
	return h.respondTicket(c, func(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.RemoveCollaborator(ctx, actor, id, userID)
	})
}

// ListActivities GET /tickets/:id/activities.
func (h *TicketsHandler) ListActivities(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	entries, err := h.tickets.ListActivities(c.UserContext(), actor, c.Params("id"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.ActivityResponse{
			ID:          entry.ID,
			UserID:      entry.UserID,
			Action:      string(entry.Action),
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Capabilities GET /tickets/:id/capabilities.
func (h *TicketsHandler) Capabilities(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	caps, err := h.tickets.Capabilities(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caps})
}

// EligibleAssignees GET /tickets/:id/assignees.
func (h *TicketsHandler) EligibleAssignees(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.tickets.EligibleAssignees(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.UserSummary, 0, len(users))
	for i := range users {
		items = append(items, userSummary(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

type ticketAction func(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) respondTicket(c *fiber.Ctx, action ticketAction) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := action(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func actorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

func parseTicketFilter(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		StatusIDs:   splitList(c.Query("status")),
		PriorityIDs: splitList(c.Query("priority")),
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if group := c.Query("group_id"); group != "" {
		filter.GroupID = &group
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	collaborators := ticket.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return dto.TicketResponse{
		ID:              ticket.ID,
		Number:          ticket.Number,
		Title:           ticket.Title,
		Description:     ticket.Description,
		TypeID:          ticket.TypeID,
		CategoryID:      ticket.CategoryID,
		SubcategoryID:   ticket.SubcategoryID,
		PriorityID:      ticket.PriorityID,
		DepartmentID:    ticket.DepartmentID,
		GroupID:         ticket.GroupID,
		AssigneeID:      ticket.AssigneeID,
		RequesterID:     ticket.RequesterID,
		Collaborators:   collaborators,
		StatusID:        ticket.StatusID,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		FirstResponseAt: ticket.FirstResponseAt,
		ResolvedAt:      ticket.ResolvedAt,
		ClosedAt:        ticket.ClosedAt,
		ResponseDueAt:   ticket.ResponseDueAt,
		ResolutionDueAt: ticket.ResolutionDueAt,
		DueDate:         ticket.DueDate,
	}
}

func commentResponse(comment *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		UserID:    comment.UserID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func userSummary(user *domain.User) dto.UserSummary {
	return dto.UserSummary{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         string(user.Role),
		DepartmentID: user.DepartmentID,
	}
}
