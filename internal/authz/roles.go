package authz

// Role identifies one of the fixed user roles. The set is closed: roles are
// defined here once and never mutated at runtime.
type Role string

const (
	// RoleAdmin has unrestricted access to the backoffice.
	RoleAdmin Role = "admin"
	// RoleConsultant may author content and edit records they own.
	RoleConsultant Role = "consultant"
	// RoleObserver has read-only access.
	RoleObserver Role = "observer"
)

// Capability names an atomic permission a role may grant.
type Capability string

const (
	CapCreate         Capability = "create"
	CapEdit           Capability = "edit"
	CapEditOwn        Capability = "edit_own"
	CapDelete         Capability = "delete"
	CapDeleteOwn      Capability = "delete_own"
	CapManageUsers    Capability = "manage_users"
	CapManageInsights Capability = "manage_insights"
	CapViewReports    Capability = "view_reports"
)

// CapabilitySet maps each capability to whether the role grants it. A missing
// key reads as false; lookups never fail.
type CapabilitySet map[Capability]bool

// Has reports whether the set grants the named capability.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// allCapabilities is the full key schema shared by every role.
var allCapabilities = []Capability{
	CapCreate,
	CapEdit,
	CapEditOwn,
	CapDelete,
	CapDeleteOwn,
	CapManageUsers,
	CapManageInsights,
	CapViewReports,
}

// unknownRoleLabel is returned by Label for unrecognized roles.
const unknownRoleLabel = "Unknown role"

type roleEntry struct {
	label  string
	grants CapabilitySet
}

var registry = map[Role]roleEntry{
	RoleAdmin: {
		label: "Administrator",
		grants: CapabilitySet{
			CapCreate:         true,
			CapEdit:           true,
			CapEditOwn:        true,
			CapDelete:         true,
			CapDeleteOwn:      true,
			CapManageUsers:    true,
			CapManageInsights: true,
			CapViewReports:    true,
		},
	},
	RoleConsultant: {
		label: "Consultant",
		grants: CapabilitySet{
			CapCreate:         true,
			CapEdit:           false,
			CapEditOwn:        true,
			CapDelete:         false,
			CapDeleteOwn:      true,
			CapManageUsers:    false,
			CapManageInsights: true,
			CapViewReports:    true,
		},
	},
	RoleObserver: {
		label: "Observer",
		grants: CapabilitySet{
			CapCreate:         false,
			CapEdit:           false,
			CapEditOwn:        false,
			CapDelete:         false,
			CapDeleteOwn:      false,
			CapManageUsers:    false,
			CapManageInsights: false,
			CapViewReports:    true,
		},
	},
}

// Roles returns the closed role set in descending privilege order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleConsultant, RoleObserver}
}

// Known reports whether the role belongs to the closed set.
func Known(r Role) bool {
	_, ok := registry[r]
	return ok
}

// Capabilities returns the capability set for the role. Unknown roles get a
// fully populated all-false set, never a partial one and never an error.
func Capabilities(r Role) CapabilitySet {
	out := make(CapabilitySet, len(allCapabilities))
	entry, ok := registry[r]
	for _, c := range allCapabilities {
		out[c] = ok && entry.grants[c]
	}
	return out
}

// Label returns the display label for the role, or a fixed sentinel for
// unrecognized input.
func Label(r Role) string {
	if entry, ok := registry[r]; ok {
		return entry.label
	}
	return unknownRoleLabel
}

// Labels maps each role to its display label, for rendering role pickers.
func Labels(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = Label(r)
	}
	return out
}
