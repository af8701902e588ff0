package shared

// User roles.
const (
	RoleAdmin    = "ADMIN"
	RoleVerifier = "VERIFIER"
	RoleUser     = "USER"
)

// CanVerify reports whether the role may confirm or reject invoices.
func CanVerify(role string) bool {
	return role == RoleAdmin || role == RoleVerifier
}
