package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// PGProvider is the built-in identity provider backed by PostgreSQL. It owns
// the identities and identity_sessions tables and announces session changes
// through an EventBus.
type PGProvider struct {
	pool   *pgxpool.Pool
	bus    *EventBus
	ttl    time.Duration
	logger *slog.Logger
}

// NewPGProvider constructs a PGProvider. ttl bounds the lifetime of sessions
// it issues.
func NewPGProvider(pool *pgxpool.Pool, bus *EventBus, ttl time.Duration, logger *slog.Logger) *PGProvider {
	return &PGProvider{pool: pool, bus: bus, ttl: ttl, logger: logger}
}

// SignIn verifies credentials and issues a new session.
func (p *PGProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	const query = `SELECT id, email, password_hash, is_active FROM identities WHERE email = $1`

	var (
		id, hash string
		storedEmail string
		active   bool
	)
	if err := p.pool.QueryRow(ctx, query, email).Scan(&id, &storedEmail, &hash, &active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !active {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	sess := Session{
		Token:      uuid.NewString(),
		IdentityID: id,
		Email:      storedEmail,
		ExpiresAt:  time.Now().UTC().Add(p.ttl),
	}
	const insert = `INSERT INTO identity_sessions (token, identity_id, created_at, expires_at) VALUES ($1, $2, now(), $3)`
	if _, err := p.pool.Exec(ctx, insert, sess.Token, sess.IdentityID, sess.ExpiresAt); err != nil {
		return Session{}, err
	}
	p.announce(ctx, Event{Kind: EventSignedIn, Token: sess.Token, IdentityID: sess.IdentityID})
	return sess, nil
}

// SignOut invalidates the session for the token and announces the fact. A
// missing session is not an error; sign-out is idempotent.
func (p *PGProvider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	var identityID string
	const del = `DELETE FROM identity_sessions WHERE token = $1 RETURNING identity_id`
	if err := p.pool.QueryRow(ctx, del, token).Scan(&identityID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	p.announce(ctx, Event{Kind: EventSignedOut, Token: token, IdentityID: identityID})
	return nil
}

// CurrentSession resolves a token to its live session.
func (p *PGProvider) CurrentSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	const query = `
		SELECT s.token, s.identity_id, i.email, s.expires_at
		FROM identity_sessions s
		JOIN identities i ON i.id = s.identity_id
		WHERE s.token = $1 AND s.expires_at > now() AND i.is_active`

	var sess Session
	err := p.pool.QueryRow(ctx, query, token).Scan(&sess.Token, &sess.IdentityID, &sess.Email, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}
	return sess, nil
}

// RevokeIdentitySessions invalidates every session of one identity, e.g. when
// an administrator deactivates the account. Each revoked token is announced
// so other instances drop their cached state.
func (p *PGProvider) RevokeIdentitySessions(ctx context.Context, identityID string) error {
	const del = `DELETE FROM identity_sessions WHERE identity_id = $1 RETURNING token`
	rows, err := p.pool.Query(ctx, del, identityID)
	if err != nil {
		return err
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return err
	}
	for _, token := range tokens {
		p.announce(ctx, Event{Kind: EventSignedOut, Token: token, IdentityID: identityID})
	}
	return nil
}

// SweepExpiredSessions removes expired session rows and returns how many were
// deleted. Run periodically from the worker.
func (p *PGProvider) SweepExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM identity_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Events exposes the provider notification stream.
func (p *PGProvider) Events() <-chan Event {
	return p.bus.Events()
}

func (p *PGProvider) announce(ctx context.Context, ev Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, ev); err != nil && p.logger != nil {
		p.logger.Warn("publish identity event", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
	}
}

var _ Provider = (*PGProvider)(nil)
