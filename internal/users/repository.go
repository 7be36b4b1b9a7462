package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
)

// ErrDuplicateEmail indicates another identity already uses the email.
var ErrDuplicateEmail = errors.New("users: duplicate email")

// Repository defines persistence operations for user accounts.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	ByID(ctx context.Context, id string) (User, error)
	Insert(ctx context.Context, u User, passwordHash string) error
	SetRole(ctx context.Context, id string, role string) error
	SetActive(ctx context.Context, id string, active bool) error
	Count(ctx context.Context) (int64, error)
}

// PGRepository implements Repository on PostgreSQL. Accounts span the
// identities and profiles tables, so writes run in one transaction.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `
	i.id, i.email, p.display_name, p.role, p.is_active, i.created_at, i.updated_at`

const userJoin = `
	FROM identities i
	JOIN profiles p ON p.identity_id = i.id`

// List returns every account, newest first.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+userColumns+userJoin+` ORDER BY i.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ByID fetches one account.
func (r *PGRepository) ByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT`+userColumns+userJoin+` WHERE i.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// Insert creates the identity and profile rows atomically.
func (r *PGRepository) Insert(ctx context.Context, u User, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertIdentity = `
		INSERT INTO identities (id, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`
	if _, err := tx.Exec(ctx, insertIdentity, u.ID, u.Email, passwordHash, u.Active); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	const insertProfile = `
		INSERT INTO profiles (identity_id, display_name, role, is_active)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertProfile, u.ID, u.Name, string(u.Role), u.Active); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetRole updates the profile role.
func (r *PGRepository) SetRole(ctx context.Context, id string, role string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE identity_id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive flips the active flag on both tables atomically.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE identities SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE profiles SET is_active = $2 WHERE identity_id = $1`, id, active); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Count returns the number of accounts for the dashboard.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM identities`).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	u.Role = authz.Role(role)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
