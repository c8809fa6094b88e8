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

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (
			id, name, address, phone, status, active,
			max_patients, current_patients, longitude, latitude,
			admin_user_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`
	clinic.ID = uuid.New()
	clinic.CreatedAt = time.Now()
	clinic.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		clinic.ID,
		clinic.Name,
		clinic.Address,
		clinic.Phone,
		clinic.Status,
		clinic.Active,
		clinic.MaxPatients,
		clinic.CurrentPatients,
		clinic.Longitude,
		clinic.Latitude,
		clinic.AdminUserID,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `
		SELECT
			id, name, address, phone, status, active,
			max_patients, current_patients, longitude, latitude,
			admin_user_id, approved_by, approved_at, rejection_reason,
			created_at, updated_at
		FROM clinics
		WHERE id = $1 AND deleted_at IS NULL
	`
	var clinic model.Clinic
	err := r.db.GetContext(ctx, &clinic, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return &clinic, nil
}

func (r *clinicRepository) Update(ctx context.Context, clinic *model.Clinic) error {
	query := `
		UPDATE clinics
		SET name = $1, address = $2, phone = $3, max_patients = $4,
		    longitude = $5, latitude = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL
	`
	clinic.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		clinic.Name,
		clinic.Address,
		clinic.Phone,
		clinic.MaxPatients,
		clinic.Longitude,
		clinic.Latitude,
		clinic.UpdatedAt,
		clinic.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update clinic: %w", err)
	}
	return checkAffected(result)
}

func (r *clinicRepository) List(ctx context.Context, status model.ClinicStatus) ([]*model.Clinic, error) {
	query := `
		SELECT
			id, name, address, phone, status, active,
			max_patients, current_patients, longitude, latitude,
			admin_user_id, approved_by, approved_at, rejection_reason,
			created_at, updated_at
		FROM clinics
		WHERE deleted_at IS NULL
		AND (COALESCE($1, '') = '' OR status = $1)
		ORDER BY created_at DESC
	`
	var clinics []*model.Clinic
	if err := r.db.SelectContext(ctx, &clinics, query, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	return clinics, nil
}

func (r *clinicRepository) ListEligible(ctx context.Context) ([]*model.Clinic, error) {
	query := `
		SELECT
			id, name, address, phone, status, active,
			max_patients, current_patients, longitude, latitude,
			admin_user_id, approved_by, approved_at, rejection_reason,
			created_at, updated_at
		FROM clinics
		WHERE status = 'approved' AND active = TRUE AND deleted_at IS NULL
	`
	var clinics []*model.Clinic
	if err := r.db.SelectContext(ctx, &clinics, query); err != nil {
		return nil, fmt.Errorf("failed to list eligible clinics: %w", err)
	}
	return clinics, nil
}

// ReserveSlot performs the capacity check-then-increment as one conditional
// update. Zero rows affected means the clinic is ineligible or full.
func (r *clinicRepository) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	return reserveClinicSlot(ctx, r.db, id)
}

func (r *clinicRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	return releaseClinicSlot(ctx, r.db, id)
}

func reserveClinicSlot(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID) error {
	query := `
		UPDATE clinics
		SET current_patients = current_patients + 1, updated_at = NOW()
		WHERE id = $1
		  AND status = 'approved' AND active = TRUE AND deleted_at IS NULL
		  AND current_patients < max_patients
	`
	result, err := e.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reserve clinic slot: %w", err)
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

func releaseClinicSlot(ctx context.Context, e sqlx.ExecerContext, id uuid.UUID) error {
	query := `
		UPDATE clinics
		SET current_patients = GREATEST(current_patients - 1, 0), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := e.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release clinic slot: %w", err)
	}
	return nil
}

func (r *clinicRepository) Approve(ctx context.Context, id, adminID uuid.UUID) error {
	query := `
		UPDATE clinics
		SET status = 'approved', active = TRUE, approved_by = $1,
		    approved_at = NOW(), rejection_reason = NULL, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, adminID, id)
	if err != nil {
		return fmt.Errorf("failed to approve clinic: %w", err)
	}
	return checkAffected(result)
}

func (r *clinicRepository) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) error {
	query := `
		UPDATE clinics
		SET status = 'rejected', active = FALSE, approved_by = $1,
		    approved_at = NOW(), rejection_reason = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, adminID, reason, id)
	if err != nil {
		return fmt.Errorf("failed to reject clinic: %w", err)
	}
	return checkAffected(result)
}

// Deactivate restores the assignment invariant as a single transaction: no
// patient may keep referencing an inactive clinic, and its nurses go with it.
func (r *clinicRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var clinic model.Clinic
		err := tx.GetContext(ctx, &clinic,
			`SELECT id, active, admin_user_id FROM clinics WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock clinic: %w", err)
		}
		if !clinic.Active {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE patients
			SET clinic_id = NULL, nurse_id = NULL, assigned_at = NULL,
			    assignment_method = NULL, assignment_distance_km = NULL,
			    updated_at = NOW()
			WHERE clinic_id = $1
		`, id); err != nil {
			return fmt.Errorf("failed to clear patient assignments: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE nurses
			SET deleted_at = NOW(), active = FALSE, current_patients = 0, updated_at = NOW()
			WHERE clinic_id = $1 AND deleted_at IS NULL
		`, id); err != nil {
			return fmt.Errorf("failed to remove clinic nurses: %w", err)
		}

		if clinic.AdminUserID != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1`,
				*clinic.AdminUserID); err != nil {
				return fmt.Errorf("failed to deactivate clinic admin: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE clinics
			SET active = FALSE, current_patients = 0, updated_at = NOW()
			WHERE id = $1
		`, id); err != nil {
			return fmt.Errorf("failed to deactivate clinic: %w", err)
		}
		return nil
	})
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
