package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
)

// ErrSelfChange is returned when an administrator tries to change their own
// role or deactivate their own account.
var ErrSelfChange = errors.New("users: cannot change own account")

// SessionRevoker invalidates every live session of one identity.
type SessionRevoker interface {
	RevokeIdentitySessions(ctx context.Context, identityID string) error
}

// Service handles account management. Every operation requires the
// manage_users capability, which only administrators hold.
type Service struct {
	repo    Repository
	revoker SessionRevoker
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, revoker SessionRevoker, logger *slog.Logger) *Service {
	return &Service{repo: repo, revoker: revoker, logger: logger}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context, actor *authz.Actor) ([]User, error) {
	if !canManage(actor) {
		return nil, shared.ErrForbidden
	}
	return s.repo.List(ctx)
}

// Create provisions a new account with a bcrypt-hashed initial password.
func (s *Service) Create(ctx context.Context, actor *authz.Actor, req NewUser) (User, error) {
	if !canManage(actor) {
		return User{}, shared.ErrForbidden
	}
	if !authz.Known(req.Role) {
		return User{}, fmt.Errorf("unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:     uuid.NewString(),
		Email:  req.Email,
		Name:   req.Name,
		Role:   req.Role,
		Active: true,
	}
	if err := s.repo.Insert(ctx, u, string(hash)); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ChangeRole moves an account to another role in the closed set. An
// administrator cannot change their own role, so the backoffice always keeps
// at least the acting admin.
func (s *Service) ChangeRole(ctx context.Context, actor *authz.Actor, id string, role authz.Role) error {
	if !canManage(actor) {
		return shared.ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfChange
	}
	if !authz.Known(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := s.repo.SetRole(ctx, id, string(role)); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

// Deactivate disables an account and revokes its live sessions, so the user
// is signed out everywhere, not just refused at the next login.
func (s *Service) Deactivate(ctx context.Context, actor *authz.Actor, id string) error {
	if !canManage(actor) {
		return shared.ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfChange
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if err := s.revoker.RevokeIdentitySessions(ctx, id); err != nil {
		// The account is already inactive; session resolution fails closed
		// even if revocation misses.
		s.logger.Warn("revoke sessions", slog.String("identity_id", id), slog.Any("error", err))
	}
	return nil
}

// Activate re-enables a previously deactivated account.
func (s *Service) Activate(ctx context.Context, actor *authz.Actor, id string) error {
	if !canManage(actor) {
		return shared.ErrForbidden
	}
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

// Count returns the number of accounts for the dashboard.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func canManage(actor *authz.Actor) bool {
	return actor != nil && actor.Active && authz.HasCapability(actor.Role, authz.CapManageUsers)
}
