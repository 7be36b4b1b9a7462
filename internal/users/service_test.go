package users

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
)

type mockRepository struct {
	users   map[string]User
	byEmail map[string]string
	hashes  map[string]string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		hashes:  make(map[string]string),
	}
}

func (m *mockRepository) List(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepository) ByID(_ context.Context, id string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepository) Insert(_ context.Context, u User, hash string) error {
	if _, exists := m.byEmail[u.Email]; exists {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	m.hashes[u.ID] = hash
	return nil
}

func (m *mockRepository) SetRole(_ context.Context, id string, role string) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = authz.Role(role)
	m.users[id] = u
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Active = active
	m.users[id] = u
	return nil
}

func (m *mockRepository) Count(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

var _ Repository = (*mockRepository)(nil)

type mockRevoker struct {
	revoked []string
}

func (m *mockRevoker) RevokeIdentitySessions(_ context.Context, identityID string) error {
	m.revoked = append(m.revoked, identityID)
	return nil
}

func newTestService() (*Service, *mockRepository, *mockRevoker) {
	repo := newMockRepository()
	revoker := &mockRevoker{}
	return NewService(repo, revoker, slog.Default()), repo, revoker
}

func admin() *authz.Actor {
	return &authz.Actor{ID: "admin-1", Role: authz.RoleAdmin, Active: true}
}

func TestCreateHashesPassword(t *testing.T) {
	svc, repo, _ := newTestService()

	u, err := svc.Create(context.Background(), admin(), NewUser{
		Email:    "dewi@clearline.example",
		Name:     "Dewi",
		Password: "initial-password-1",
		Role:     authz.RoleConsultant,
	})
	require.NoError(t, err)
	assert.True(t, u.Active)

	hash := repo.hashes[u.ID]
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "initial-password-1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("initial-password-1")))
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), admin(), NewUser{
		Email: "x@clearline.example", Name: "X", Password: "long-enough-pass", Role: "superuser",
	})
	assert.Error(t, err)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()

	req := NewUser{Email: "dup@clearline.example", Name: "A", Password: "long-enough-pass", Role: authz.RoleObserver}
	_, err := svc.Create(context.Background(), admin(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), admin(), req)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestOperationsRequireManageUsers(t *testing.T) {
	svc, _, _ := newTestService()
	consultant := &authz.Actor{ID: "c-1", Role: authz.RoleConsultant, Active: true}

	_, err := svc.List(context.Background(), consultant)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Create(context.Background(), consultant, NewUser{})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	assert.ErrorIs(t, svc.ChangeRole(context.Background(), consultant, "u-1", authz.RoleObserver), shared.ErrForbidden)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), consultant, "u-1"), shared.ErrForbidden)

	var nilActor *authz.Actor
	_, err = svc.List(context.Background(), nilActor)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestChangeRole(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.users["u-1"] = User{ID: "u-1", Role: authz.RoleObserver, Active: true}

	require.NoError(t, svc.ChangeRole(context.Background(), admin(), "u-1", authz.RoleConsultant))
	assert.Equal(t, authz.RoleConsultant, repo.users["u-1"].Role)

	assert.Error(t, svc.ChangeRole(context.Background(), admin(), "u-1", "superuser"))
}

func TestAdminCannotChangeOwnAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	actor := admin()
	repo.users[actor.ID] = User{ID: actor.ID, Role: authz.RoleAdmin, Active: true}

	assert.ErrorIs(t, svc.ChangeRole(context.Background(), actor, actor.ID, authz.RoleObserver), ErrSelfChange)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), actor, actor.ID), ErrSelfChange)
}

func TestDeactivateRevokesSessions(t *testing.T) {
	svc, repo, revoker := newTestService()
	repo.users["u-1"] = User{ID: "u-1", Role: authz.RoleConsultant, Active: true}

	require.NoError(t, svc.Deactivate(context.Background(), admin(), "u-1"))
	assert.False(t, repo.users["u-1"].Active)
	assert.Equal(t, []string{"u-1"}, revoker.revoked)

	require.NoError(t, svc.Activate(context.Background(), admin(), "u-1"))
	assert.True(t, repo.users["u-1"].Active)
}
