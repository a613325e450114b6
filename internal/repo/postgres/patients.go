package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/domain/patient"
)

var ErrPatientNotFound = errors.New("patient not found")

type PatientsRepo struct {
	pool *pgxpool.Pool
}

func NewPatientsRepo(pool *pgxpool.Pool) *PatientsRepo {
	return &PatientsRepo{pool: pool}
}

func (r *PatientsRepo) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO patients
			(id, doctor_id, name, age, gender, notes,
			medical_report_analyzed, diabetes_prediction_performed,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.DoctorID, p.Name, p.Age, p.Gender, p.Notes,
		p.MedicalReportAnalyzed, p.DiabetesPredictionPerformed,
		p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		return patient.Patient{}, err
	}

	return p, nil
}

// ListByDoctor returns a doctor's patients, newest first. Doctors only ever
// see their own records.
func (r *PatientsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]patient.Patient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, doctor_id, name, age, gender, notes,
			medical_report_analyzed, diabetes_prediction_performed,
			created_at, updated_at
		FROM patients
		WHERE doctor_id = $1
		ORDER BY created_at DESC`,
		doctorID,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	items := []patient.Patient{}

	for rows.Next() {
		var p patient.Patient

		err := rows.Scan(
			&p.ID, &p.DoctorID, &p.Name, &p.Age, &p.Gender, &p.Notes,
			&p.MedicalReportAnalyzed, &p.DiabetesPredictionPerformed,
			&p.CreatedAt, &p.UpdatedAt,
		)

		if err != nil {
			return nil, err
		}

		items = append(items, p)
	}

	return items, rows.Err()
}

func (r *PatientsRepo) GetByID(ctx context.Context, doctorID, id string) (patient.Patient, error) {
	var p patient.Patient

	err := r.pool.QueryRow(ctx,
		`SELECT id, doctor_id, name, age, gender, notes,
			medical_report_analyzed, diabetes_prediction_performed,
			created_at, updated_at
		FROM patients
		WHERE id = $1 AND doctor_id = $2`,
		id, doctorID,
	).Scan(
		&p.ID, &p.DoctorID, &p.Name, &p.Age, &p.Gender, &p.Notes,
		&p.MedicalReportAnalyzed, &p.DiabetesPredictionPerformed,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return patient.Patient{}, ErrPatientNotFound
		}

		return patient.Patient{}, err
	}

	return p, nil
}

// RecordCheck flips the flag for the performed service and replaces notes.
func (r *PatientsRepo) RecordCheck(ctx context.Context, doctorID, id, service string, notes *string) (patient.Patient, error) {
	column := "medical_report_analyzed"

	if service == patient.ServiceDiabetesCheck {
		column = "diabetes_prediction_performed"
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE patients
		SET `+column+` = TRUE, notes = $3, updated_at = $4
		WHERE id = $1 AND doctor_id = $2`,
		id, doctorID, notes, time.Now().UTC(),
	)

	if err != nil {
		return patient.Patient{}, err
	}

	if tag.RowsAffected() == 0 {
		return patient.Patient{}, ErrPatientNotFound
	}

	return r.GetByID(ctx, doctorID, id)
}
