package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const patientColumns = `
	id, user_id, nik, name, phone, address, due_date, risk_level, active,
	longitude, latitude, clinic_id, nurse_id, assigned_at, assignment_method,
	assignment_distance_km, created_at, updated_at
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, nik, name, phone, address, due_date, risk_level,
			active, longitude, latitude, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.NIK,
		patient.Name,
		patient.Phone,
		patient.Address,
		patient.DueDate,
		patient.RiskLevel,
		patient.Active,
		patient.Longitude,
		patient.Latitude,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND deleted_at IS NULL`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1 AND deleted_at IS NULL`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by user: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, phone = $2, address = $3, due_date = $4, risk_level = $5,
		    longitude = $6, latitude = $7, updated_at = $8
		WHERE id = $9 AND deleted_at IS NULL
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Phone,
		patient.Address,
		patient.DueDate,
		patient.RiskLevel,
		patient.Longitude,
		patient.Latitude,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return checkAffected(result)
}

func (r *patientRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) ListUnassigned(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id IS NULL AND deleted_at IS NULL ORDER BY created_at`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list unassigned patients: %w", err)
	}
	return patients, nil
}

// SetClinicAssignment reserves the new clinic's slot and rewrites the
// patient's references in one transaction. Losing the conditional increment
// surfaces as repository.ErrNoCapacity and rolls everything back.
func (r *patientRepository) SetClinicAssignment(ctx context.Context, patientID, clinicID uuid.UUID, method model.AssignmentMethod, distanceKM *float64) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var prev struct {
			ClinicID *uuid.UUID `db:"clinic_id"`
			NurseID  *uuid.UUID `db:"nurse_id"`
		}
		err := tx.GetContext(ctx, &prev,
			`SELECT clinic_id, nurse_id FROM patients WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, patientID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock patient: %w", err)
		}

		if err := reserveClinicSlot(ctx, tx, clinicID); err != nil {
			return err
		}
		if prev.ClinicID != nil {
			if err := releaseClinicSlot(ctx, tx, *prev.ClinicID); err != nil {
				return err
			}
		}
		if prev.NurseID != nil {
			if err := releaseNurseSlot(ctx, tx, *prev.NurseID); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE patients
			SET clinic_id = $1, nurse_id = NULL, assigned_at = NOW(),
			    assignment_method = $2, assignment_distance_km = $3,
			    updated_at = NOW()
			WHERE id = $4
		`, clinicID, method, distanceKM, patientID)
		if err != nil {
			return fmt.Errorf("failed to set clinic assignment: %w", err)
		}
		return checkAffected(result)
	})
}

func (r *patientRepository) SetNurseAssignment(ctx context.Context, patientID, nurseID uuid.UUID, method model.AssignmentMethod) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var prevNurse *uuid.UUID
		err := tx.GetContext(ctx, &prevNurse,
			`SELECT nurse_id FROM patients WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, patientID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock patient: %w", err)
		}

		if err := reserveNurseSlot(ctx, tx, nurseID); err != nil {
			return err
		}
		if prevNurse != nil {
			if err := releaseNurseSlot(ctx, tx, *prevNurse); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE patients
			SET nurse_id = $1, assignment_method = $2, updated_at = NOW()
			WHERE id = $3
		`, nurseID, method, patientID)
		if err != nil {
			return fmt.Errorf("failed to set nurse assignment: %w", err)
		}
		return checkAffected(result)
	})
}
