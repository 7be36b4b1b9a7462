package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearline-consulting/clearline/internal/authz"
)

// PGProfileStore resolves actor profiles from the profiles table.
type PGProfileStore struct {
	pool *pgxpool.Pool
}

// NewPGProfileStore constructs a PGProfileStore.
func NewPGProfileStore(pool *pgxpool.Pool) *PGProfileStore {
	return &PGProfileStore{pool: pool}
}

// ActorProfile loads the profile for an identity id.
func (s *PGProfileStore) ActorProfile(ctx context.Context, identityID string) (authz.Actor, error) {
	const query = `
		SELECT p.identity_id, i.email, p.display_name, p.role, p.is_active
		FROM profiles p
		JOIN identities i ON i.id = p.identity_id
		WHERE p.identity_id = $1`

	var (
		actor authz.Actor
		role  string
	)
	err := s.pool.QueryRow(ctx, query, identityID).Scan(&actor.ID, &actor.Email, &actor.Name, &role, &actor.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Actor{}, ErrNotFound
		}
		return authz.Actor{}, err
	}
	actor.Role = authz.Role(role)
	return actor, nil
}

var _ ProfileStore = (*PGProfileStore)(nil)
