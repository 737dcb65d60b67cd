package domain

// ============================================================
// Auth: caller identity taken from Supabase access tokens
// ============================================================

// RoleServiceRole is the Supabase role allowed to run administrative jobs.
const RoleServiceRole = "service_role"

// Identidade is the authenticated caller. UserID is the token "sub" claim
// and owns every case the caller records.
type Identidade struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Admin reports whether the caller may run batch recomputes.
func (i *Identidade) Admin() bool {
	return i != nil && i.Role == RoleServiceRole
}
