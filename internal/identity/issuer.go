package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/medicareplus/portal/internal/domain/account"
	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/repo/postgres"
	"github.com/medicareplus/portal/internal/security"
)

// Store interfaces are kept small so tests can fake them.

type AccountStore interface {
	Create(ctx context.Context, email, passwordHash string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

type RoleStore interface {
	Assign(ctx context.Context, userID string, r role.Role) error
	RoleForUser(ctx context.Context, userID string) (role.Role, error)
}

type ProfileStore interface {
	SetFullName(ctx context.Context, userID, fullName string) error
	SetDoctorProfile(ctx context.Context, userID, fullName, licenseNumber string) error
	LicenseNumberExists(ctx context.Context, licenseNumber string) (bool, error)
	EmailForLicense(ctx context.Context, licenseNumber string) (string, error)
}

// Issuer performs the signup and sign-in flows. Signup is three separate
// store calls (account, role, profile) with no surrounding transaction: a
// failure after account creation leaves an orphaned account. That gap is
// logged and surfaced as a typed error, never silently healed.
type Issuer struct {
	accounts AccountStore
	roles    RoleStore
	profiles ProfileStore
	log      *slog.Logger
}

func NewIssuer(accounts AccountStore, roles RoleStore, profiles ProfileStore, log *slog.Logger) *Issuer {
	return &Issuer{
		accounts: accounts,
		roles:    roles,
		profiles: profiles,
		log:      log,
	}
}

// SignUpPatient registers a standard email+password account.
func (i *Issuer) SignUpPatient(ctx context.Context, email, password, fullName string) (account.Account, error) {
	email = strings.TrimSpace(email)

	if email == "" {
		return account.Account{}, &ValidationError{Field: "email", Reason: "must not be empty"}
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return account.Account{}, err
	}

	a, err := i.accounts.Create(ctx, email, hash)

	if err != nil {
		return account.Account{}, err
	}

	if a.ID == "" {
		// defensive check against an inconsistent store response
		return account.Account{}, ErrNoUserReturned
	}

	if err := i.provision(ctx, a.ID, role.Patient, fullName, ""); err != nil {
		return account.Account{}, err
	}

	return a, nil
}

// SignUpDoctor registers a doctor under a license-derived pseudo-email.
func (i *Issuer) SignUpDoctor(ctx context.Context, licenseNumber, password, fullName string) (account.Account, error) {
	licenseNumber = strings.TrimSpace(licenseNumber)

	if licenseNumber == "" {
		return account.Account{}, &ValidationError{Field: "licenseNumber", Reason: "must not be empty"}
	}

	exists, err := i.profiles.LicenseNumberExists(ctx, licenseNumber)

	if err != nil {
		return account.Account{}, err
	}

	if exists {
		return account.Account{}, ErrDuplicateLicense
	}

	hash, err := security.HashPassword(password)

	if err != nil {
		return account.Account{}, err
	}

	a, err := i.accounts.Create(ctx, PseudoEmail(licenseNumber), hash)

	if err != nil {
		return account.Account{}, err
	}

	if a.ID == "" {
		return account.Account{}, ErrNoUserReturned
	}

	if err := i.provision(ctx, a.ID, role.Doctor, fullName, licenseNumber); err != nil {
		return account.Account{}, err
	}

	return a, nil
}

// provision attaches the role row and profile fields after the account
// exists. Failures here are the known integrity gap: the account stays.
func (i *Issuer) provision(ctx context.Context, userID string, r role.Role, fullName, licenseNumber string) error {
	if err := i.roles.Assign(ctx, userID, r); err != nil {
		i.log.Error("integrity gap: account without role", "user_id", userID, "role", r, "err", err)
		return &RoleAssignmentError{UserID: userID, Err: err}
	}

	var err error

	if r == role.Doctor {
		err = i.profiles.SetDoctorProfile(ctx, userID, fullName, licenseNumber)
	} else {
		err = i.profiles.SetFullName(ctx, userID, fullName)
	}

	if err != nil {
		i.log.Error("integrity gap: account without profile", "user_id", userID, "err", err)
		return &ProfileUpdateError{UserID: userID, Err: err}
	}

	return nil
}

// SignInPatient is a plain password check against the stored hash.
func (i *Issuer) SignInPatient(ctx context.Context, email, password string) (account.Account, error) {
	a, err := i.accounts.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return account.Account{}, ErrInvalidCredentials
		}

		return account.Account{}, err
	}

	if err := security.CheckPassword(a.PasswordHash, password); err != nil {
		return account.Account{}, ErrInvalidCredentials
	}

	return a, nil
}

// SignInDoctor first resolves the license number to its registered
// pseudo-email, then authenticates with the password. A wrong password on a
// valid license yields the same generic credential error as patients get.
func (i *Issuer) SignInDoctor(ctx context.Context, licenseNumber, password string) (account.Account, error) {
	licenseNumber = strings.TrimSpace(licenseNumber)

	if licenseNumber == "" {
		return account.Account{}, &ValidationError{Field: "licenseNumber", Reason: "must not be empty"}
	}

	email, err := i.profiles.EmailForLicense(ctx, licenseNumber)

	if err != nil {
		if errors.Is(err, postgres.ErrProfileNotFound) {
			return account.Account{}, ErrDoctorNotFound
		}

		return account.Account{}, err
	}

	return i.SignInPatient(ctx, email, password)
}

func (i *Issuer) RoleForUser(ctx context.Context, userID string) (role.Role, error) {
	return i.roles.RoleForUser(ctx, userID)
}
