package role

import "errors"

// Role is the doctor/patient partition. Exactly one role is assigned per
// user at signup and never changes afterwards.
type Role string

const (
	Doctor  Role = "doctor"
	Patient Role = "patient"

	// None is the zero value: authenticated but role-less (failed or
	// missing lookup). Route gating treats it as "no access".
	None Role = ""
)

var ErrUnknownRole = errors.New("unknown role")

func Parse(s string) (Role, error) {
	switch Role(s) {
	case Doctor:
		return Doctor, nil
	case Patient:
		return Patient, nil
	case None:
		return None, nil
	}

	return None, ErrUnknownRole
}

func (r Role) Valid() bool {
	return r == Doctor || r == Patient
}

// DashboardPath is where a session holding this role belongs.

func (r Role) DashboardPath() string {
	switch r {
	case Doctor:
		return "/doctor"
	case Patient:
		return "/patient"
	default:
		return "/"
	}
}
