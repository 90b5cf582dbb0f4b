package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CatalogRepository reads the master data the lifecycle engine depends on.
type CatalogRepository interface {
	ListStatuses(ctx context.Context) ([]domain.TicketStatus, error)
	GetType(ctx context.Context, id string) (*domain.TicketType, error)
	GetCategory(ctx context.Context, id string) (*domain.TicketCategory, error)
	GetPriority(ctx context.Context, id string) (*domain.TicketPriority, error)
	// ListSlaRules returns active rules for a priority ordered by id.
	ListSlaRules(ctx context.Context, priorityID string) ([]domain.SlaRule, error)
}

type catalogRepository struct {
	db DBTX
}

func (r *catalogRepository) ListStatuses(ctx context.Context) ([]domain.TicketStatus, error) {
	const query = `
        SELECT id, name, slug, sort_order, is_closed, is_active
        FROM ticket_statuses WHERE is_active = TRUE ORDER BY sort_order ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatus
	for rows.Next() {
		var st domain.TicketStatus
		if err := rows.Scan(&st.ID, &st.Name, &st.Slug, &st.SortOrder, &st.IsClosed, &st.IsActive); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (r *catalogRepository) GetType(ctx context.Context, id string) (*domain.TicketType, error) {
	const query = `SELECT id, name, is_active FROM ticket_types WHERE id=$1`
	var tt domain.TicketType
	if err := r.db.QueryRow(ctx, query, id).Scan(&tt.ID, &tt.Name, &tt.IsActive); err != nil {
		return nil, err
	}
	return &tt, nil
}

func (r *catalogRepository) GetCategory(ctx context.Context, id string) (*domain.TicketCategory, error) {
	const query = `SELECT id, parent_id, name, is_development, is_active FROM ticket_categories WHERE id=$1`
	var cat domain.TicketCategory
	if err := r.db.QueryRow(ctx, query, id).Scan(&cat.ID, &cat.ParentID, &cat.Name, &cat.IsDevelopment, &cat.IsActive); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *catalogRepository) GetPriority(ctx context.Context, id string) (*domain.TicketPriority, error) {
	const query = `
        SELECT id, name, level, response_hours, resolution_hours, is_active
        FROM ticket_priorities WHERE id=$1`
	var p domain.TicketPriority
	if err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Level, &p.ResponseHours, &p.ResolutionHours, &p.IsActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepository) ListSlaRules(ctx context.Context, priorityID string) ([]domain.SlaRule, error) {
	const query = `
        SELECT id, type_id, priority_id, category_id, response_minutes, resolution_minutes,
               business_hours_only, is_active, created_at
        FROM sla_rules WHERE priority_id=$1 AND is_active = TRUE ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, priorityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaRule
	for rows.Next() {
		var rule domain.SlaRule
		if err := rows.Scan(
			&rule.ID,
			&rule.TypeID,
			&rule.PriorityID,
			&rule.CategoryID,
			&rule.ResponseMinutes,
			&rule.ResolutionMinutes,
			&rule.BusinessHoursOnly,
			&rule.IsActive,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
