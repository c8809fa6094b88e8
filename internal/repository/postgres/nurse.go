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

type nurseRepository struct {
	BaseRepository
}

func NewNurseRepository(base BaseRepository) repository.NurseRepository {
	return &nurseRepository{base}
}

const nurseColumns = `
	id, user_id, clinic_id, name, phone, active,
	max_patients, current_patients, created_at, updated_at
`

func (r *nurseRepository) Create(ctx context.Context, nurse *model.Nurse) error {
	query := `
		INSERT INTO nurses (
			id, user_id, clinic_id, name, phone, active,
			max_patients, current_patients, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	nurse.ID = uuid.New()
	nurse.CreatedAt = time.Now()
	nurse.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		nurse.ID,
		nurse.UserID,
		nurse.ClinicID,
		nurse.Name,
		nurse.Phone,
		nurse.Active,
		nurse.MaxPatients,
		nurse.CurrentPatients,
		nurse.CreatedAt,
		nurse.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create nurse: %w", err)
	}
	return nil
}

func (r *nurseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Nurse, error) {
	query := `SELECT ` + nurseColumns + ` FROM nurses WHERE id = $1 AND deleted_at IS NULL`
	var nurse model.Nurse
	err := r.db.GetContext(ctx, &nurse, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nurse: %w", err)
	}
	return &nurse, nil
}

func (r *nurseRepository) Update(ctx context.Context, nurse *model.Nurse) error {
	query := `
		UPDATE nurses
		SET name = $1, phone = $2, active = $3, max_patients = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	nurse.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		nurse.Name,
		nurse.Phone,
		nurse.Active,
		nurse.MaxPatients,
		nurse.UpdatedAt,
		nurse.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update nurse: %w", err)
	}
	return checkAffected(result)
}

// Delete soft-deletes the nurse and releases their patients in the same
// transaction, so no patient is left pointing at a removed nurse.
func (r *nurseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		clear := `
			UPDATE patients
			SET nurse_id = NULL, updated_at = NOW()
			WHERE nurse_id = $1
		`
		if _, err := tx.ExecContext(ctx, clear, id); err != nil {
			return fmt.Errorf("failed to release nurse's patients: %w", err)
		}

		remove := `
			UPDATE nurses
			SET deleted_at = NOW(), active = FALSE, current_patients = 0, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`
		result, err := tx.ExecContext(ctx, remove, id)
		if err != nil {
			return fmt.Errorf("failed to delete nurse: %w", err)
		}
		return checkAffected(result)
	})
}

func (r *nurseRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error) {
	query := `SELECT ` + nurseColumns + ` FROM nurses WHERE clinic_id = $1 AND deleted_at IS NULL ORDER BY name`
	var nurses []*model.Nurse
	if err := r.db.SelectContext(ctx, &nurses, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list nurses: %w", err)
	}
	return nurses, nil
}

func (r *nurseRepository) ListAvailable(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error) {
	query := `
		SELECT ` + nurseColumns + `
		FROM nurses
		WHERE clinic_id = $1 AND active = TRUE AND deleted_at IS NULL
		  AND current_patients < max_patients
		ORDER BY current_patients ASC, name
	`
	var nurses []*model.Nurse
	if err := r.db.SelectContext(ctx, &nurses, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list available nurses: %w", err)
	}
	return nurses, nil
}

func (r *nurseRepository) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	return reserveNurseSlot(ctx, r.db, id)
}

func (r *nurseRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	return releaseNurseSlot(ctx, r.db, id)
}

func reserveNurseSlot(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID) error {
	query := `
		UPDATE nurses
		SET current_patients = current_patients + 1, updated_at = NOW()
		WHERE id = $1 AND active = TRUE AND deleted_at IS NULL
		  AND current_patients < max_patients
	`
	result, err := e.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reserve nurse slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNoCapacity
	}
	return nil
}

func releaseNurseSlot(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID) error {
	query := `
		UPDATE nurses
		SET current_patients = GREATEST(current_patients - 1, 0), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := e.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release nurse slot: %w", err)
	}
	return nil
}
