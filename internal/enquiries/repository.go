package enquiries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for enquiries.
type Repository interface {
	Insert(ctx context.Context, e Enquiry) error
	List(ctx context.Context, limit int) ([]Enquiry, error)
	Count(ctx context.Context) (int64, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert persists one enquiry.
func (r *PGRepository) Insert(ctx context.Context, e Enquiry) error {
	const query = `
		INSERT INTO enquiries (id, name, email, message, received_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, e.ID, e.Name, e.Email, e.Message, e.ReceivedAt)
	return err
}

// List returns the most recent enquiries.
func (r *PGRepository) List(ctx context.Context, limit int) ([]Enquiry, error) {
	const query = `
		SELECT id, name, email, message, received_at
		FROM enquiries ORDER BY received_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Enquiry, error) {
		var e Enquiry
		err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Message, &e.ReceivedAt)
		return e, err
	})
}

// Count returns the number of enquiries for the dashboard.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM enquiries`).Scan(&n)
	return n, err
}

var _ Repository = (*PGRepository)(nil)
