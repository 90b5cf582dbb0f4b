package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID  *string
	DepartmentID *string
	AssigneeID   *string
	GroupID      *string
	StatusIDs    []string
	PriorityIDs  []string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	// VisibleTo restricts results to tickets a staff member can see: own department,
	// assigned, requested, collaborating or via group membership.
	VisibleTo *VisibilityScope
	Limit     int
	Offset    int
}

// VisibilityScope identifies a staff member for scoped listings.
type VisibilityScope struct {
	UserID       string
	DepartmentID string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the ticket row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListStaleIDs(ctx context.Context, statusID string, resolvedBefore time.Time, limit int) ([]string, error)
	AddCollaborator(ctx context.Context, ticketID, userID string) error
	RemoveCollaborator(ctx context.Context, ticketID, userID string) error
}

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `id, number, title, description, type_id, category_id, subcategory_id, priority_id,
               department_id, assignee_id, group_id, requester_id, status_id,
               created_at, updated_at, first_response_at, resolved_at, closed_at,
               response_due_at, resolution_due_at, due_date`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, title, description, type_id, category_id, subcategory_id, priority_id,
            department_id, assignee_id, group_id, requester_id, status_id, created_at, updated_at,
            response_due_at, resolution_due_at, due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13,$14,$15,$16)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		ticket.Number,
		ticket.Title,
		ticket.Description,
		ticket.TypeID,
		ticket.CategoryID,
		ticket.SubcategoryID,
		ticket.PriorityID,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.GroupID,
		ticket.RequesterID,
		ticket.StatusID,
		ticket.CreatedAt,
		ticket.ResponseDueAt,
		ticket.ResolutionDueAt,
		ticket.DueDate,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, type_id=$3, category_id=$4, subcategory_id=$5,
            priority_id=$6, department_id=$7, assignee_id=$8, group_id=$9, status_id=$10,
            first_response_at=$11, resolved_at=$12, closed_at=$13, response_due_at=$14,
            resolution_due_at=$15, due_date=$16, updated_at=$17
        WHERE id=$18`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.TypeID,
		ticket.CategoryID,
		ticket.SubcategoryID,
		ticket.PriorityID,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.GroupID,
		ticket.StatusID,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ResponseDueAt,
		ticket.ResolutionDueAt,
		ticket.DueDate,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	collaborators, err := r.listCollaborators(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Collaborators = collaborators
	return ticket, nil
}

func (r *ticketRepository) listCollaborators(ctx context.Context, ticketID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM ticket_collaborators WHERE ticket_id=$1 ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) AddCollaborator(ctx context.Context, ticketID, userID string) error {
	const query = `
        INSERT INTO ticket_collaborators (ticket_id, user_id) VALUES ($1,$2)
        ON CONFLICT (ticket_id, user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, ticketID, userID)
	return err
}

func (r *ticketRepository) RemoveCollaborator(ctx context.Context, ticketID, userID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_collaborators WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListStaleIDs(ctx context.Context, statusID string, resolvedBefore time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	const query = `
        SELECT id FROM tickets
        WHERE status_id=$1 AND resolved_at IS NOT NULL AND resolved_at < $2
        ORDER BY resolved_at ASC, id ASC
        LIMIT $3`
	rows, err := r.db.Query(ctx, query, statusID, resolvedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets t`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		clauses = append(clauses, fmt.Sprintf("group_id=$%d", len(args)))
	}
	if len(filter.StatusIDs) > 0 {
		args = append(args, filter.StatusIDs)
		clauses = append(clauses, fmt.Sprintf("status_id = ANY($%d)", len(args)))
	}
	if len(filter.PriorityIDs) > 0 {
		args = append(args, filter.PriorityIDs)
		clauses = append(clauses, fmt.Sprintf("priority_id = ANY($%d)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if scope := filter.VisibleTo; scope != nil {
		args = append(args, scope.UserID)
		user := fmt.Sprintf("$%d", len(args))
		args = append(args, scope.DepartmentID)
		dept := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(`(department_id=%[2]s OR assignee_id=%[1]s OR requester_id=%[1]s
            OR EXISTS (SELECT 1 FROM ticket_collaborators c WHERE c.ticket_id=t.id AND c.user_id=%[1]s)
            OR EXISTS (SELECT 1 FROM ticket_group_members m WHERE m.group_id=t.group_id AND m.user_id=%[1]s))`, user, dept))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.TypeID,
		&ticket.CategoryID,
		&ticket.SubcategoryID,
		&ticket.PriorityID,
		&ticket.DepartmentID,
		&ticket.AssigneeID,
		&ticket.GroupID,
		&ticket.RequesterID,
		&ticket.StatusID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.ResponseDueAt,
		&ticket.ResolutionDueAt,
		&ticket.DueDate,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
