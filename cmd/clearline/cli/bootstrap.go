package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/platform/db"
	"github.com/clearline-consulting/clearline/internal/users"
)

// BootstrapCLI provisions the first administrator account on a fresh
// deployment, where no admin exists yet to use the backoffice.
type BootstrapCLI struct {
	service *users.Service
	repo    users.Repository
}

type noopRevoker struct{}

func (noopRevoker) RevokeIdentitySessions(context.Context, string) error { return nil }

// NewBootstrapCLI connects to the database and prepares the helper.
func NewBootstrapCLI(ctx context.Context, dsn string, logger *slog.Logger) (*BootstrapCLI, error) {
	pool, err := db.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	repo := users.NewRepository(pool)
	return &BootstrapCLI{
		service: users.NewService(repo, noopRevoker{}, logger),
		repo:    repo,
	}, nil
}

// CreateAdmin creates the initial administrator. It refuses to run when any
// account already exists.
func (c *BootstrapCLI) CreateAdmin(ctx context.Context, email, name, password string) error {
	n, err := c.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return errors.New("bootstrap: accounts already exist, use the backoffice instead")
	}

	// No actor exists yet, so act as a synthetic active admin.
	bootstrapActor := &authz.Actor{ID: "bootstrap", Role: authz.RoleAdmin, Active: true}
	_, err = c.service.Create(ctx, bootstrapActor, users.NewUser{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     authz.RoleAdmin,
	})
	return err
}
