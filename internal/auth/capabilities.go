package auth

// Capability is a single permitted action. Mutating operations check
// capabilities through Capabilities rather than comparing role strings
// at call sites.
type Capability string

const (
	CapWagerCreate  Capability = "wager:create"
	CapWagerAccept  Capability = "wager:accept"
	CapWagerCancel  Capability = "wager:cancel"
	CapMatchBan     Capability = "match:ban"
	CapAdminRefund  Capability = "admin:refund"
	CapAdminForce   Capability = "admin:force-winner"
	CapAdminDispute Capability = "admin:dispute"
	CapAdminRead    Capability = "admin:read"
)

// CapabilitySet is the typed permission set for one role.
type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool { return s[c] }

var roleCaps = map[Role]CapabilitySet{
	RolePlayer: {
		CapWagerCreate: true,
		CapWagerAccept: true,
		CapWagerCancel: true,
		CapMatchBan:    true,
	},
	RoleAdmin: {
		CapWagerCreate:  true,
		CapWagerAccept:  true,
		CapWagerCancel:  true,
		CapMatchBan:     true,
		CapAdminRefund:  true,
		CapAdminForce:   true,
		CapAdminDispute: true,
		CapAdminRead:    true,
	},
}

// Capabilities returns the permission set for a role. Unknown roles get an
// empty set.
func Capabilities(r Role) CapabilitySet {
	return roleCaps[r]
}

// Can reports whether the identity may perform the capability.
func (id Identity) Can(c Capability) bool {
	return Capabilities(id.Role).Has(c)
}
