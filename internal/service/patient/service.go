package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/geo"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
)

type Servicer interface {
	Create(ctx context.Context, req *CreateRequest) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*model.Patient, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Patient, error)
	ListUnassigned(ctx context.Context) ([]*model.Patient, error)
}

type CreateRequest struct {
	UserID    uuid.UUID  `json:"user_id" binding:"required"`
	NIK       string     `json:"nik" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	DueDate   *time.Time `json:"due_date"`
	Longitude *float64   `json:"longitude" binding:"omitempty,longitude"`
	Latitude  *float64   `json:"latitude" binding:"omitempty,latitude"`
}

type UpdateRequest struct {
	Name      *string          `json:"name"`
	Phone     *string          `json:"phone"`
	Address   *string          `json:"address"`
	DueDate   *time.Time       `json:"due_date"`
	RiskLevel *model.RiskLevel `json:"risk_level"`
	Longitude *float64         `json:"longitude"`
	Latitude  *float64         `json:"latitude"`
}

type Service struct {
	patients repository.PatientRepository
}

func NewService(patients repository.PatientRepository) *Service {
	return &Service{patients: patients}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*model.Patient, error) {
	if err := validateOptionalLocation(req.Longitude, req.Latitude); err != nil {
		return nil, err
	}

	patient := &model.Patient{
		UserID:    req.UserID,
		NIK:       req.NIK,
		Name:      req.Name,
		Phone:     req.Phone,
		Address:   req.Address,
		DueDate:   req.DueDate,
		Active:    true,
		Longitude: req.Longitude,
		Latitude:  req.Latitude,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.BadRequest("patient profile already exists", err)
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", err)
	}
	return patient, err
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", err)
	}
	return patient, err
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateRequest) (*model.Patient, error) {
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}
	if req.DueDate != nil {
		patient.DueDate = req.DueDate
	}
	if req.RiskLevel != nil {
		patient.RiskLevel = req.RiskLevel
	}
	if req.Longitude != nil || req.Latitude != nil {
		if err := validateOptionalLocation(req.Longitude, req.Latitude); err != nil {
			return nil, err
		}
		patient.Longitude = req.Longitude
		patient.Latitude = req.Latitude
	}

	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Patient, error) {
	return s.patients.ListByClinic(ctx, clinicID)
}

func (s *Service) ListUnassigned(ctx context.Context) ([]*model.Patient, error) {
	return s.patients.ListUnassigned(ctx)
}

func validateOptionalLocation(lng, lat *float64) error {
	if lng == nil && lat == nil {
		return nil
	}
	if lng == nil || lat == nil {
		return apperrors.BadRequest("longitude and latitude must be provided together", nil)
	}
	location := geo.Coordinate{Longitude: *lng, Latitude: *lat}
	if !location.Valid() {
		return apperrors.BadRequest("invalid coordinates", nil)
	}
	return nil
}
