package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketActivityRepository stores audit entries. Entries are append-only.
type TicketActivityRepository interface {
	Create(ctx context.Context, activity *domain.TicketActivity) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error)
}

type ticketActivityRepository struct {
	db DBTX
}

func (r *ticketActivityRepository) Create(ctx context.Context, activity *domain.TicketActivity) error {
	const query = `
        INSERT INTO ticket_activities (ticket_id, user_id, action, old_value, new_value, description, created_at)
        VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		activity.TicketID,
		activity.UserID,
		activity.Action,
		activity.OldValue,
		activity.NewValue,
		activity.Description,
		activity.CreatedAt,
	).Scan(&activity.ID)
}

func (r *ticketActivityRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, user_id, action, COALESCE(old_value,''), COALESCE(new_value,''), description, created_at
        FROM ticket_activities WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketActivity
	for rows.Next() {
		var activity domain.TicketActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.UserID,
			&activity.Action,
			&activity.OldValue,
			&activity.NewValue,
			&activity.Description,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}
