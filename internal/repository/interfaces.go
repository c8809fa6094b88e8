package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/model"
)

// Sentinel errors shared by all repository implementations. Services map
// these onto the caller-facing error kinds.
var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoCapacity is returned by the conditional slot reservation when the
	// atomic increment affected zero rows: either the target is full or a
	// concurrent request took the last slot.
	ErrNoCapacity = errors.New("no remaining capacity")

	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("already exists")
)

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		Update(ctx context.Context, clinic *model.Clinic) error
		List(ctx context.Context, status model.ClinicStatus) ([]*model.Clinic, error)
		// ListEligible returns approved, active clinics: the auto-assignment
		// candidate set.
		ListEligible(ctx context.Context) ([]*model.Clinic, error)
		// ReserveSlot increments current_patients iff the clinic is approved,
		// active and under capacity, as a single conditional update. Returns
		// ErrNoCapacity when no row was affected.
		ReserveSlot(ctx context.Context, id uuid.UUID) error
		ReleaseSlot(ctx context.Context, id uuid.UUID) error
		Approve(ctx context.Context, id, adminID uuid.UUID) error
		Reject(ctx context.Context, id, adminID uuid.UUID, reason string) error
		// Deactivate marks the clinic inactive and restores the assignment
		// invariant in the same transaction: clears clinic/nurse references
		// on all assigned patients, deletes the clinic's nurses and
		// deactivates the clinic admin account.
		Deactivate(ctx context.Context, id uuid.UUID) error
	}

	NurseRepository interface {
		Create(ctx context.Context, nurse *model.Nurse) error
		Get(ctx context.Context, id uuid.UUID) (*model.Nurse, error)
		Update(ctx context.Context, nurse *model.Nurse) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error)
		ListAvailable(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error)
		// ReserveSlot is the nurse-side atomic conditional increment; see
		// ClinicRepository.ReserveSlot.
		ReserveSlot(ctx context.Context, id uuid.UUID) error
		ReleaseSlot(ctx context.Context, id uuid.UUID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Patient, error)
		ListUnassigned(ctx context.Context) ([]*model.Patient, error)
		// SetClinicAssignment reserves a slot on the clinic and writes the
		// patient's clinic reference in one transaction, releasing the slot
		// on the previously assigned clinic if any. Nurse assignment is
		// cleared: it never survives a clinic change.
		SetClinicAssignment(ctx context.Context, patientID, clinicID uuid.UUID, method model.AssignmentMethod, distanceKM *float64) error
		// SetNurseAssignment reserves a slot on the nurse and writes the
		// patient's nurse reference in one transaction.
		SetNurseAssignment(ctx context.Context, patientID, nurseID uuid.UUID, method model.AssignmentMethod) error
	}

	UsageRepository interface {
		// GetOrCreate returns the counter for (scope, day), inserting a
		// zeroed row when the day has none yet.
		GetOrCreate(ctx context.Context, scopeKey string, day time.Time) (*model.UsageCounter, error)
		// AddUsage atomically adds tokens and requests to the (scope, day)
		// counter, creating it when absent. Writes are idempotent per
		// requestID: replaying an applied (scope, requestID) pair is a no-op.
		AddUsage(ctx context.Context, scopeKey string, day time.Time, tokens, requests int, requestID uuid.UUID) error
	}

	ConversationRepository interface {
		Create(ctx context.Context, conv *model.Conversation) error
		Get(ctx context.Context, id, userID uuid.UUID) (*model.Conversation, error)
		ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Conversation, error)
		SoftDelete(ctx context.Context, id, userID uuid.UUID) error
		Touch(ctx context.Context, id uuid.UUID) error
		AddMessage(ctx context.Context, msg *model.ChatMessage) error
		ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*model.ChatMessage, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
		MarkSent(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}
)
