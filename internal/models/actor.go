package models

// Actor is the authenticated principal performing a request. It is resolved
// by the auth middleware from the API key and supplies tenant scoping and
// audit attribution; it is never derived from request payloads.
type Actor struct {
	UserID      int64    `json:"user_id"`
	CompanyID   int64    `json:"company_id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// wildcardPermission grants every permission key (platform administrators).
const wildcardPermission = "*"

// Can reports whether the actor holds the given permission key.
func (a Actor) Can(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm || p == wildcardPermission {
			return true
		}
	}

	return false
}
