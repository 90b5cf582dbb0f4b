package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups every repository bound to one connection or transaction.
type Repositories interface {
	Tickets() TicketRepository
	Activities() TicketActivityRepository
	Catalog() CatalogRepository
	Groups() GroupRepository
	Users() UserRepository
	Departments() DepartmentRepository
	Comments() TicketCommentRepository
	Attachments() AttachmentRepository
}

// Store exposes pool-bound repositories and a unit of work.
type Store interface {
	Repositories
	// WithinTx runs fn in a single transaction, committing when fn returns nil and
	// rolling back every write otherwise.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

type repositories struct {
	db DBTX
}

func (r repositories) Tickets() TicketRepository { return &ticketRepository{db: r.db} }
func (r repositories) Activities() TicketActivityRepository { return &ticketActivityRepository{db: r.db} }
func (r repositories) Catalog() CatalogRepository { return &catalogRepository{db: r.db} }
func (r repositories) Groups() GroupRepository { return &groupRepository{db: r.db} }
func (r repositories) Users() UserRepository { return &userRepository{db: r.db} }
func (r repositories) Departments() DepartmentRepository { return &departmentRepository{db: r.db} }
func (r repositories) Comments() TicketCommentRepository { return &ticketCommentRepository{db: r.db} }
func (r repositories) Attachments() AttachmentRepository { return &attachmentRepository{db: r.db} }

type pgStore struct {
	repositories
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{repositories: repositories{db: pool}, pool: pool}
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(repos Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(repositories{db: tx})
	})
}
