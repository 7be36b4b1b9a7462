package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearline-consulting/clearline/internal/shared"
)

// ErrDuplicateSlug indicates another insight already uses the slug.
var ErrDuplicateSlug = errors.New("insights: duplicate slug")

// Repository defines persistence operations for insights.
type Repository interface {
	ListPublished(ctx context.Context, limit int) ([]Insight, error)
	BySlug(ctx context.Context, slug string) (Insight, error)
	ByID(ctx context.Context, id string) (Insight, error)
	ListAll(ctx context.Context) ([]Insight, error)
	Insert(ctx context.Context, ins Insight) error
	Update(ctx context.Context, ins Insight) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (total, published int64, err error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const insightColumns = `id, slug, title, summary, body, author_id, published, published_at, created_at, updated_at`

func scanInsight(row pgx.Row) (Insight, error) {
	var (
		ins         Insight
		publishedAt *time.Time
	)
	err := row.Scan(&ins.ID, &ins.Slug, &ins.Title, &ins.Summary, &ins.Body,
		&ins.AuthorID, &ins.Published, &publishedAt, &ins.CreatedAt, &ins.UpdatedAt)
	if err != nil {
		return Insight{}, err
	}
	if publishedAt != nil {
		ins.PublishedAt = *publishedAt
	}
	return ins, nil
}

// ListPublished returns published insights, newest first.
func (r *PGRepository) ListPublished(ctx context.Context, limit int) ([]Insight, error) {
	query := fmt.Sprintf(`SELECT %s FROM insights WHERE published ORDER BY published_at DESC LIMIT $1`, insightColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collectInsights(rows)
}

// BySlug fetches one published insight by slug.
func (r *PGRepository) BySlug(ctx context.Context, slug string) (Insight, error) {
	query := fmt.Sprintf(`SELECT %s FROM insights WHERE slug = $1 AND published`, insightColumns)
	ins, err := scanInsight(r.pool.QueryRow(ctx, query, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Insight{}, shared.ErrNotFound
	}
	return ins, err
}

// ByID fetches one insight regardless of publication state.
func (r *PGRepository) ByID(ctx context.Context, id string) (Insight, error) {
	query := fmt.Sprintf(`SELECT %s FROM insights WHERE id = $1`, insightColumns)
	ins, err := scanInsight(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Insight{}, shared.ErrNotFound
	}
	return ins, err
}

// ListAll returns every insight for the backoffice, newest first.
func (r *PGRepository) ListAll(ctx context.Context) ([]Insight, error) {
	query := fmt.Sprintf(`SELECT %s FROM insights ORDER BY updated_at DESC`, insightColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectInsights(rows)
}

// Insert persists a new insight.
func (r *PGRepository) Insert(ctx context.Context, ins Insight) error {
	const query = `
		INSERT INTO insights (id, slug, title, summary, body, author_id, published, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`
	_, err := r.pool.Exec(ctx, query, ins.ID, ins.Slug, ins.Title, ins.Summary,
		ins.Body, ins.AuthorID, ins.Published, nullableTime(ins.PublishedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

// Update persists changes to an existing insight.
func (r *PGRepository) Update(ctx context.Context, ins Insight) error {
	const query = `
		UPDATE insights
		SET slug = $2, title = $3, summary = $4, body = $5, published = $6, published_at = $7, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, ins.ID, ins.Slug, ins.Title, ins.Summary,
		ins.Body, ins.Published, nullableTime(ins.PublishedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an insight by id.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM insights WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Counts returns totals for the backoffice dashboard.
func (r *PGRepository) Counts(ctx context.Context) (int64, int64, error) {
	var total, published int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE published) FROM insights`,
	).Scan(&total, &published)
	return total, published, err
}

func collectInsights(rows pgx.Rows) ([]Insight, error) {
	defer rows.Close()
	var out []Insight
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation reports whether err is SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NewID mints an insight id.
func NewID() string { return uuid.NewString() }

var _ Repository = (*PGRepository)(nil)
