package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// GroupRepository reads ticket groups and their members.
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketGroup, error)
	ListByMember(ctx context.Context, userID string) ([]domain.TicketGroup, error)
}

type groupRepository struct {
	db DBTX
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*domain.TicketGroup, error) {
	const query = `
        SELECT id, department_id, name, is_active, created_at, updated_at
        FROM ticket_groups WHERE id=$1`
	var group domain.TicketGroup
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.DepartmentID,
		&group.Name,
		&group.IsActive,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, err
	}
	members, err := r.listMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	group.MemberIDs = members
	return &group, nil
}

func (r *groupRepository) ListByMember(ctx context.Context, userID string) ([]domain.TicketGroup, error) {
	const query = `
        SELECT g.id, g.department_id, g.name, g.is_active, g.created_at, g.updated_at
        FROM ticket_groups g JOIN ticket_group_members m ON m.group_id = g.id
        WHERE m.user_id=$1 AND g.is_active = TRUE ORDER BY g.name ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketGroup
	for rows.Next() {
		var group domain.TicketGroup
		if err := rows.Scan(&group.ID, &group.DepartmentID, &group.Name, &group.IsActive, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}

func (r *groupRepository) listMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM ticket_group_members WHERE group_id=$1 ORDER BY user_id ASC`, groupID)
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
