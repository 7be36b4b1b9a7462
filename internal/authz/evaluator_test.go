package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type record struct {
	owner string
}

func (r record) OwnerID() string { return r.owner }

func actorWith(role Role) *Actor {
	return &Actor{ID: "actor-1", Email: "a@clearline.example", Role: role, Active: true}
}

func TestCanMutateEntityNilActor(t *testing.T) {
	e := record{owner: "actor-1"}
	assert.False(t, CanMutateEntity(nil, e, ActionEdit))
	assert.False(t, CanMutateEntity(nil, e, ActionDelete))
}

func TestCanMutateEntityInactiveActor(t *testing.T) {
	a := actorWith(RoleAdmin)
	a.Active = false
	assert.False(t, CanMutateEntity(a, record{owner: a.ID}, ActionEdit))
}

func TestCanMutateEntityUnconditionalIgnoresOwner(t *testing.T) {
	a := actorWith(RoleAdmin)
	assert.True(t, CanMutateEntity(a, record{owner: "someone-else"}, ActionEdit))
	assert.True(t, CanMutateEntity(a, record{owner: "someone-else"}, ActionDelete))
	assert.True(t, CanMutateEntity(a, record{owner: a.ID}, ActionDelete))
}

func TestCanMutateEntityScopedRequiresOwnership(t *testing.T) {
	a := actorWith(RoleConsultant)
	assert.True(t, CanMutateEntity(a, record{owner: a.ID}, ActionEdit))
	assert.False(t, CanMutateEntity(a, record{owner: "someone-else"}, ActionEdit))
	assert.True(t, CanMutateEntity(a, record{owner: a.ID}, ActionDelete))
	assert.False(t, CanMutateEntity(a, record{owner: "someone-else"}, ActionDelete))
}

func TestCanMutateEntityNoCapability(t *testing.T) {
	a := actorWith(RoleObserver)
	assert.False(t, CanMutateEntity(a, record{owner: a.ID}, ActionEdit))
	assert.False(t, CanMutateEntity(a, record{owner: a.ID}, ActionDelete))
}

func TestCanMutateEntityUnknownRole(t *testing.T) {
	a := actorWith(Role("intern"))
	assert.False(t, CanMutateEntity(a, record{owner: a.ID}, ActionEdit))
}

func TestCanMutateEntityUnknownAction(t *testing.T) {
	a := actorWith(RoleAdmin)
	assert.False(t, CanMutateEntity(a, record{owner: a.ID}, Action("publish")))
}

func TestCanMutateEntityNilEntityScoped(t *testing.T) {
	// A scoped capability can never match a missing entity.
	a := actorWith(RoleConsultant)
	assert.False(t, CanMutateEntity(a, nil, ActionEdit))
	// Unconditional capability does not consult the entity at all.
	assert.True(t, CanMutateEntity(actorWith(RoleAdmin), nil, ActionEdit))
}

func TestHasCapabilityTotal(t *testing.T) {
	assert.True(t, HasCapability(RoleAdmin, CapManageUsers))
	assert.False(t, HasCapability(RoleConsultant, CapManageUsers))
	assert.False(t, HasCapability(Role("nobody"), CapEdit))
	assert.False(t, HasCapability(RoleAdmin, Capability("teleport")))
}
