package session

import "github.com/medicareplus/portal/internal/domain/role"

// Decision is a route-protection verdict for one resolver state.
type Decision struct {
	Allow bool
	// RedirectTo is where a denied request belongs: the landing page for
	// anonymous or role-less sessions, the matching dashboard for sessions
	// holding the other role. Empty while the resolver is still loading.
	RedirectTo string
}

// Decide implements the protected-route state machine:
// LOADING holds, no session redirects to landing, a matching role renders,
// a mismatched role is sent to its own dashboard.
func Decide(st State, required role.Role) Decision {
	if st.Loading {
		return Decision{}
	}

	if st.UserID == "" {
		return Decision{RedirectTo: "/"}
	}

	if st.Role == required {
		return Decision{Allow: true}
	}

	if !st.Role.Valid() {
		return Decision{RedirectTo: "/"}
	}

	return Decision{RedirectTo: st.Role.DashboardPath()}
}
