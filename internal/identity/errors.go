package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateLicense: the pre-signup uniqueness check found the license.
	ErrDuplicateLicense = errors.New("this license number is already registered")

	// ErrDoctorNotFound distinguishes "never signed up" from a wrong
	// password, which stays a generic credential error.
	ErrDoctorNotFound = errors.New("doctor account not found, sign up using a valid license number")

	ErrNoUserReturned = errors.New("no user returned from signup")

	ErrInvalidCredentials = errors.New("email or password is incorrect")
)

// ValidationError is raised before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RoleAssignmentError marks a role insert that failed after the account was
// already created. The account is NOT rolled back; the orphan is logged as
// an integrity gap.
type RoleAssignmentError struct {
	UserID string
	Err    error
}

func (e *RoleAssignmentError) Error() string {
	return fmt.Sprintf("assign role for user %s: %v", e.UserID, e.Err)
}

func (e *RoleAssignmentError) Unwrap() error { return e.Err }

// ProfileUpdateError is the profile-step counterpart of RoleAssignmentError.
type ProfileUpdateError struct {
	UserID string
	Err    error
}

func (e *ProfileUpdateError) Error() string {
	return fmt.Sprintf("update profile for user %s: %v", e.UserID, e.Err)
}

func (e *ProfileUpdateError) Unwrap() error { return e.Err }
