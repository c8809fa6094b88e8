package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/email"
	"github.com/wellmom/wellmom-api/internal/geo"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
)

type Servicer interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.Clinic, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	List(ctx context.Context, status model.ClinicStatus) ([]*model.Clinic, error)
	Approve(ctx context.Context, clinicID, adminID uuid.UUID) error
	Reject(ctx context.Context, clinicID, adminID uuid.UUID, reason string) error
	Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*model.Clinic, error)
	ListNurses(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error)
	ListAvailableNurses(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error)
	AddNurse(ctx context.Context, clinicID uuid.UUID, req *AddNurseRequest) (*model.Nurse, error)
	UpdateNurse(ctx context.Context, clinicID, nurseID uuid.UUID, req *UpdateNurseRequest) (*model.Nurse, error)
	RemoveNurse(ctx context.Context, clinicID, nurseID uuid.UUID) error
}

type RegisterRequest struct {
	Name        string  `json:"name" binding:"required"`
	Address     string  `json:"address" binding:"required"`
	Phone       string  `json:"phone"`
	MaxPatients int     `json:"max_patients" binding:"required,min=1"`
	Longitude   float64 `json:"longitude" binding:"required,longitude"`
	Latitude    float64 `json:"latitude" binding:"required,latitude"`
	AdminUserID *uuid.UUID
}

type UpdateRequest struct {
	Name        *string  `json:"name"`
	Address     *string  `json:"address"`
	Phone       *string  `json:"phone"`
	MaxPatients *int     `json:"max_patients"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
}

type AddNurseRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	Name        string    `json:"name" binding:"required"`
	Phone       string    `json:"phone"`
	MaxPatients int       `json:"max_patients" binding:"required,min=1"`
}

type UpdateNurseRequest struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Active      *bool   `json:"active"`
	MaxPatients *int    `json:"max_patients"`
}

type Service struct {
	clinics repository.ClinicRepository
	nurses  repository.NurseRepository
	users   repository.UserRepository
	emailer email.Service
}

func NewService(
	clinics repository.ClinicRepository,
	nurses repository.NurseRepository,
	users repository.UserRepository,
	emailer email.Service,
) *Service {
	return &Service{clinics: clinics, nurses: nurses, users: users, emailer: emailer}
}

// Register creates a clinic in pending status. It receives no assignments
// until a super admin approves it.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*model.Clinic, error) {
	location := geo.Coordinate{Longitude: req.Longitude, Latitude: req.Latitude}
	if !location.Valid() {
		return nil, apperrors.BadRequest("invalid clinic coordinates", nil)
	}

	clinic := &model.Clinic{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		Status:      model.ClinicStatusPending,
		Active:      true,
		MaxPatients: req.MaxPatients,
		Longitude:   req.Longitude,
		Latitude:    req.Latitude,
		AdminUserID: req.AdminUserID,
	}
	if err := s.clinics.Create(ctx, clinic); err != nil {
		return nil, fmt.Errorf("failed to create clinic: %w", err)
	}

	log.Info().
		Str("clinic_id", clinic.ID.String()).
		Str("name", clinic.Name).
		Msg("clinic registered, pending approval")
	return clinic, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	clinic, err := s.clinics.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("clinic", err)
	}
	return clinic, err
}

func (s *Service) List(ctx context.Context, status model.ClinicStatus) ([]*model.Clinic, error) {
	return s.clinics.List(ctx, status)
}

func (s *Service) Approve(ctx context.Context, clinicID, adminID uuid.UUID) error {
	clinic, err := s.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	if clinic.Status != model.ClinicStatusPending {
		return apperrors.BadRequest(fmt.Sprintf("clinic is %s, only pending clinics can be approved", clinic.Status), nil)
	}

	if err := s.clinics.Approve(ctx, clinicID, adminID); err != nil {
		return fmt.Errorf("failed to approve clinic: %w", err)
	}

	s.sendDecisionEmail(ctx, clinic, true, "")
	log.Info().
		Str("clinic_id", clinicID.String()).
		Str("approved_by", adminID.String()).
		Msg("clinic approved")
	return nil
}

func (s *Service) Reject(ctx context.Context, clinicID, adminID uuid.UUID, reason string) error {
	if reason == "" {
		return apperrors.BadRequest("rejection reason is required", nil)
	}
	clinic, err := s.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	if clinic.Status != model.ClinicStatusPending {
		return apperrors.BadRequest(fmt.Sprintf("clinic is %s, only pending clinics can be rejected", clinic.Status), nil)
	}

	if err := s.clinics.Reject(ctx, clinicID, adminID, reason); err != nil {
		return fmt.Errorf("failed to reject clinic: %w", err)
	}

	s.sendDecisionEmail(ctx, clinic, false, reason)
	log.Info().
		Str("clinic_id", clinicID.String()).
		Str("rejected_by", adminID.String()).
		Msg("clinic rejected")
	return nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*model.Clinic, error) {
	clinic, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		clinic.Name = *req.Name
	}
	if req.Address != nil {
		clinic.Address = *req.Address
	}
	if req.Phone != nil {
		clinic.Phone = *req.Phone
	}
	if req.MaxPatients != nil {
		// Shrinking below current occupancy is allowed; existing patients
		// keep their assignments and the clinic just stops taking new ones.
		if *req.MaxPatients < 1 {
			return nil, apperrors.BadRequest("max_patients must be at least 1", nil)
		}
		clinic.MaxPatients = *req.MaxPatients
	}
	if req.Longitude != nil || req.Latitude != nil {
		if req.Longitude == nil || req.Latitude == nil {
			return nil, apperrors.BadRequest("longitude and latitude must be updated together", nil)
		}
		location := geo.Coordinate{Longitude: *req.Longitude, Latitude: *req.Latitude}
		if !location.Valid() {
			return nil, apperrors.BadRequest("invalid clinic coordinates", nil)
		}
		clinic.Longitude = *req.Longitude
		clinic.Latitude = *req.Latitude
	}

	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, fmt.Errorf("failed to update clinic: %w", err)
	}
	return clinic, nil
}

func (s *Service) ListNurses(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error) {
	if _, err := s.Get(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.nurses.ListByClinic(ctx, clinicID)
}

// ListAvailableNurses returns active nurses with remaining patient slots,
// least loaded first. Staff use it when picking a nurse to assign.
func (s *Service) ListAvailableNurses(ctx context.Context, clinicID uuid.UUID) ([]*model.Nurse, error) {
	if _, err := s.Get(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.nurses.ListAvailable(ctx, clinicID)
}

func (s *Service) AddNurse(ctx context.Context, clinicID uuid.UUID, req *AddNurseRequest) (*model.Nurse, error) {
	clinic, err := s.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if !clinic.Eligible() {
		return nil, apperrors.ClinicUnavailable("clinic is not approved and active")
	}

	nurse := &model.Nurse{
		UserID:      &req.UserID,
		ClinicID:    clinicID,
		Name:        req.Name,
		Phone:       req.Phone,
		Active:      true,
		MaxPatients: req.MaxPatients,
	}
	if err := s.nurses.Create(ctx, nurse); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.BadRequest("nurse already registered", err)
		}
		return nil, fmt.Errorf("failed to create nurse: %w", err)
	}
	return nurse, nil
}

func (s *Service) UpdateNurse(ctx context.Context, clinicID, nurseID uuid.UUID, req *UpdateNurseRequest) (*model.Nurse, error) {
	nurse, err := s.getClinicNurse(ctx, clinicID, nurseID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		nurse.Name = *req.Name
	}
	if req.Phone != nil {
		nurse.Phone = *req.Phone
	}
	if req.Active != nil {
		nurse.Active = *req.Active
	}
	if req.MaxPatients != nil {
		if *req.MaxPatients < 1 {
			return nil, apperrors.BadRequest("max_patients must be at least 1", nil)
		}
		nurse.MaxPatients = *req.MaxPatients
	}

	if err := s.nurses.Update(ctx, nurse); err != nil {
		return nil, fmt.Errorf("failed to update nurse: %w", err)
	}
	return nurse, nil
}

// RemoveNurse soft-deletes the nurse; their patients stay assigned to the
// clinic and lose only the nurse reference.
func (s *Service) RemoveNurse(ctx context.Context, clinicID, nurseID uuid.UUID) error {
	if _, err := s.getClinicNurse(ctx, clinicID, nurseID); err != nil {
		return err
	}
	if err := s.nurses.Delete(ctx, nurseID); err != nil {
		return fmt.Errorf("failed to remove nurse: %w", err)
	}
	log.Info().
		Str("clinic_id", clinicID.String()).
		Str("nurse_id", nurseID.String()).
		Msg("nurse removed from clinic")
	return nil
}

func (s *Service) getClinicNurse(ctx context.Context, clinicID, nurseID uuid.UUID) (*model.Nurse, error) {
	nurse, err := s.nurses.Get(ctx, nurseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("nurse", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load nurse: %w", err)
	}
	if nurse.ClinicID != clinicID {
		return nil, apperrors.NotFound("nurse", nil)
	}
	return nurse, nil
}

// sendDecisionEmail notifies the clinic admin of the approval decision.
// Email failures are logged, not surfaced: the decision itself stands.
func (s *Service) sendDecisionEmail(ctx context.Context, clinic *model.Clinic, approved bool, reason string) {
	if s.emailer == nil || clinic.AdminUserID == nil {
		return
	}
	admin, err := s.users.Get(ctx, *clinic.AdminUserID)
	if err != nil {
		log.Warn().Err(err).Str("clinic_id", clinic.ID.String()).Msg("failed to load clinic admin for decision email")
		return
	}

	if approved {
		err = s.emailer.SendClinicApproved(ctx, admin.Email, clinic.Name)
	} else {
		err = s.emailer.SendClinicRejected(ctx, admin.Email, clinic.Name, reason)
	}
	if err != nil {
		log.Warn().Err(err).Str("clinic_id", clinic.ID.String()).Msg("failed to send clinic decision email")
	}
}
