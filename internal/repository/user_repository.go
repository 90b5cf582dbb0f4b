package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserRepository defines persistence access for requesters, staff and admins.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListByIDs returns the users with the given ids; unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListStaffByDepartment(ctx context.Context, departmentID string) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

const userColumns = `id, name, email, password_hash, role, department_id, active_flag, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email))
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY name ASC`, ids)
}

func (r *userRepository) ListStaffByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	const where = ` FROM users WHERE department_id=$1 AND role IN ('staff','admin') AND active_flag = TRUE ORDER BY name ASC`
	return r.list(ctx, `SELECT `+userColumns+where, departmentID)
}

func (r *userRepository) list(ctx context.Context, query string, arg any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.DepartmentID,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
