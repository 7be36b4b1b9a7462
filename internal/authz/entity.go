package authz

// roleRank encodes the total order over the closed role set. This table is
// the single place to touch if the hierarchy ever changes.
var roleRank = map[Role]int{
	RoleObserver:   1,
	RoleConsultant: 2,
	RoleAdmin:      3,
}

// CanEditEntity reports whether the actor may edit the entity.
func CanEditEntity(actor *Actor, entity Owned) bool {
	return CanMutateEntity(actor, entity, ActionEdit)
}

// CanDeleteEntity reports whether the actor may delete the entity.
func CanDeleteEntity(actor *Actor, entity Owned) bool {
	return CanMutateEntity(actor, entity, ActionDelete)
}

// HasAtLeastRole reports whether the actor's role ranks at or above the
// minimum. Unknown roles rank below every known role.
func HasAtLeastRole(actor *Actor, minimum Role) bool {
	if actor == nil || !actor.Active {
		return false
	}
	min, ok := roleRank[minimum]
	if !ok {
		return false
	}
	return roleRank[actor.Role] >= min
}
