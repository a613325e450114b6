package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/domain/account"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfilesRepo struct {
	pool *pgxpool.Pool
}

func NewProfilesRepo(pool *pgxpool.Pool) *ProfilesRepo {
	return &ProfilesRepo{pool: pool}
}

func (r *ProfilesRepo) SetFullName(ctx context.Context, userID, fullName string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles
		SET full_name = $2, updated_at = NOW()
		WHERE user_id = $1`,
		userID, fullName,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *ProfilesRepo) SetDoctorProfile(ctx context.Context, userID, fullName, licenseNumber string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles
		SET full_name = $2, license_number = $3, updated_at = NOW()
		WHERE user_id = $1`,
		userID, fullName, licenseNumber,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *ProfilesRepo) GetByUserID(ctx context.Context, userID string) (account.Profile, error) {
	var p account.Profile

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, full_name, license_number, patient_id, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FullName, &p.LicenseNumber, &p.PatientID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Profile{}, ErrProfileNotFound
		}

		return account.Profile{}, err
	}

	return p, nil
}

// LicenseNumberExists backs the pre-signup uniqueness check. A race window
// between this check and the profile update is accepted; the unique index
// on license_number is the hard stop.
func (r *ProfilesRepo) LicenseNumberExists(ctx context.Context, licenseNumber string) (bool, error) {
	var exists bool

	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE license_number = $1)`,
		licenseNumber,
	).Scan(&exists)

	if err != nil {
		return false, err
	}

	return exists, nil
}

// EmailForLicense resolves a doctor's license number to the pseudo-email
// the account was registered under.
func (r *ProfilesRepo) EmailForLicense(ctx context.Context, licenseNumber string) (string, error) {
	var email string

	err := r.pool.QueryRow(ctx,
		`SELECT u.email
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.license_number = $1`,
		licenseNumber,
	).Scan(&email)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrProfileNotFound
		}

		return "", err
	}

	return email, nil
}
