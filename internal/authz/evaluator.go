// Package authz answers permission questions for the current actor.
//
// Every function here is pure and total: no ambient state is read, no error
// is ever returned, and unknown input degrades to "deny". The same call made
// from a navigation guard, a template, or a mutation handler yields the same
// answer.
package authz

// Actor is the currently identified user.
type Actor struct {
	ID     string
	Email  string
	Name   string
	Role   Role
	Active bool
}

// Owned is any record carrying the identity id of its creator.
type Owned interface {
	OwnerID() string
}

// Action is a mutation kind subject to ownership-scoped authorization.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// HasCapability reports whether the role grants the capability. Total; unknown
// roles and unknown capabilities read as false.
func HasCapability(r Role, c Capability) bool {
	entry, ok := registry[r]
	if !ok {
		return false
	}
	return entry.grants[c]
}

// actionCaps maps an action to its unconditional and ownership-scoped
// capability. The unconditional capability always wins when both are granted.
var actionCaps = map[Action]struct {
	any Capability
	own Capability
}{
	ActionEdit:   {any: CapEdit, own: CapEditOwn},
	ActionDelete: {any: CapDelete, own: CapDeleteOwn},
}

// CanMutateEntity reports whether the actor may apply the action to the
// entity. A nil or inactive actor may mutate nothing. An unconditional
// capability grants the action regardless of ownership; a scoped capability
// grants it only for entities the actor owns.
func CanMutateEntity(actor *Actor, entity Owned, action Action) bool {
	if actor == nil || !actor.Active {
		return false
	}
	caps, ok := actionCaps[action]
	if !ok {
		return false
	}
	if HasCapability(actor.Role, caps.any) {
		return true
	}
	if !HasCapability(actor.Role, caps.own) {
		return false
	}
	return entity != nil && entity.OwnerID() == actor.ID
}
