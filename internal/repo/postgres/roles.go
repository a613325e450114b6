package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/domain/role"
)

var (
	ErrRoleNotFound        = errors.New("no role assigned for user")
	ErrRoleAlreadyAssigned = errors.New("role already assigned for user")
)

// RolesRepo owns the user_roles relation: one immutable role per user.
type RolesRepo struct {
	pool *pgxpool.Pool
}

func NewRolesRepo(pool *pgxpool.Pool) *RolesRepo {
	return &RolesRepo{pool: pool}
}

func (r *RolesRepo) Assign(ctx context.Context, userID string, rl role.Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1,$2)`,
		userID, string(rl),
	)

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRoleAlreadyAssigned
		}

		return err
	}

	return nil
}

// RoleForUser is the server-side role lookup the session resolver depends
// on. A missing row maps to ErrRoleNotFound, not an empty role.
func (r *RolesRepo) RoleForUser(ctx context.Context, userID string) (role.Role, error) {
	var raw string

	err := r.pool.QueryRow(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`,
		userID,
	).Scan(&raw)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return role.None, ErrRoleNotFound
		}

		return role.None, err
	}

	return role.Parse(raw)
}
