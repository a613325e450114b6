package account

import "time"

// Account is an authenticated identity. For doctors the email is a
// pseudo-email derived from the license number, never a real inbox.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile carries the per-user record attached right after signup.
type Profile struct {
	UserID        string    `json:"userId"`
	FullName      string    `json:"fullName"`
	LicenseNumber *string   `json:"licenseNumber,omitempty"`
	PatientID     *string   `json:"patientId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
