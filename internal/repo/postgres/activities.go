package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/domain/activity"
)

type ActivitiesRepo struct {
	pool *pgxpool.Pool
}

func NewActivitiesRepo(pool *pgxpool.Pool) *ActivitiesRepo {
	return &ActivitiesRepo{pool: pool}
}

func (r *ActivitiesRepo) Create(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO patient_activities (id, user_id, service_used, notes, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.UserID, a.ServiceUsed, a.Notes, a.CreatedAt,
	)

	if err != nil {
		return activity.Activity{}, err
	}

	return a, nil
}

func (r *ActivitiesRepo) ListByUser(ctx context.Context, userID string) ([]activity.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, service_used, notes, created_at
		FROM patient_activities
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	items := []activity.Activity{}

	for rows.Next() {
		var a activity.Activity

		err := rows.Scan(&a.ID, &a.UserID, &a.ServiceUsed, &a.Notes, &a.CreatedAt)

		if err != nil {
			return nil, err
		}

		items = append(items, a)
	}

	return items, rows.Err()
}
