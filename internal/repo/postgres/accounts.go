package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/domain/account"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrEmailAlreadyUsed = errors.New("email is already registered")
)

type AccountsRepo struct {
	pool *pgxpool.Pool
}

func NewAccountsRepo(pool *pgxpool.Pool) *AccountsRepo {
	return &AccountsRepo{pool: pool}
}

// Create inserts the account together with its empty profile row. The
// profile exists from the moment the account does, mirroring the hosted
// backend's signup trigger; full name and license are attached afterwards
// by the credential issuer.
func (r *AccountsRepo) Create(ctx context.Context, email, passwordHash string) (account.Account, error) {
	now := time.Now().UTC()

	a := account.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return account.Account{}, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt, a.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return account.Account{}, ErrEmailAlreadyUsed
		}

		return account.Account{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (user_id, created_at, updated_at)
		VALUES ($1,$2,$3)`,
		a.ID, now, now,
	)

	if err != nil {
		return account.Account{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account

	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (account.Account, error) {
	var a account.Account

	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, ErrAccountNotFound
		}

		return account.Account{}, err
	}

	return a, nil
}
