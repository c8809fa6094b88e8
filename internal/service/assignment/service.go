package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/geo"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

const eligibleClinicsCacheKey = "eligible_clinics"

// Notifier delivers assignment notifications. Failures must never roll back
// an assignment; they are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string) error
}

type Servicer interface {
	AssignClinic(ctx context.Context, patientID, clinicID uuid.UUID) (*model.Patient, error)
	AssignNurse(ctx context.Context, patientID, nurseID uuid.UUID) (*model.Patient, error)
	AutoAssign(ctx context.Context, patientID uuid.UUID) (*model.RankedClinic, error)
	NearestClinics(ctx context.Context, location geo.Coordinate) ([]*model.RankedClinic, error)
	DeactivateClinic(ctx context.Context, clinicID uuid.UUID) error
}

// Service resolves patients to clinics and nurses. Capacity decisions are
// delegated to the repositories' conditional increments, so two requests
// racing for a last slot can never both win.
type Service struct {
	clinics  repository.ClinicRepository
	nurses   repository.NurseRepository
	patients repository.PatientRepository
	notifier Notifier
	cfg      config.AssignmentConfig
	metrics  *metrics.Metrics

	// candidates caches the eligible-clinic snapshot used for ranking; the
	// authoritative capacity check happens in the database regardless.
	candidates *cache.Cache
}

func NewService(
	clinics repository.ClinicRepository,
	nurses repository.NurseRepository,
	patients repository.PatientRepository,
	notifier Notifier,
	cfg config.AssignmentConfig,
	m *metrics.Metrics,
) *Service {
	return &Service{
		clinics:    clinics,
		nurses:     nurses,
		patients:   patients,
		notifier:   notifier,
		cfg:        cfg,
		metrics:    m,
		candidates: cache.New(cfg.CacheTTL(), 2*cfg.CacheTTL()),
	}
}

// AssignClinic assigns a patient to an explicitly chosen clinic. The clinic
// must exist, be approved, active and under capacity.
func (s *Service) AssignClinic(ctx context.Context, patientID, clinicID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, s.mapPatientErr(err)
	}

	clinic, err := s.clinics.Get(ctx, clinicID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.AssignmentFailures.WithLabelValues("clinic_not_found").Inc()
		return nil, apperrors.ClinicUnavailable("clinic not found or not approved")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clinic: %w", err)
	}
	if !clinic.Eligible() {
		s.metrics.AssignmentFailures.WithLabelValues("clinic_ineligible").Inc()
		return nil, apperrors.ClinicUnavailable("clinic not found or not approved")
	}
	if !clinic.HasCapacity() {
		s.metrics.AssignmentFailures.WithLabelValues("clinic_full").Inc()
		return nil, apperrors.ClinicUnavailable("clinic is at full capacity")
	}

	err = s.patients.SetClinicAssignment(ctx, patient.ID, clinic.ID, model.AssignmentManual, nil)
	if errors.Is(err, repository.ErrNoCapacity) {
		// Lost the last slot to a concurrent request; same outcome as full.
		s.metrics.AssignmentFailures.WithLabelValues("clinic_race_lost").Inc()
		return nil, apperrors.CapacityRaceLost("clinic")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit clinic assignment: %w", err)
	}

	s.metrics.Assignments.WithLabelValues("clinic", "manual").Inc()
	s.notify(ctx, patient.UserID,
		"Penugasan Puskesmas", fmt.Sprintf("Anda telah ditugaskan ke %s.", clinic.Name))

	return s.patients.Get(ctx, patientID)
}

// AssignNurse assigns a patient to a nurse at the patient's clinic. The
// preconditions are checked in a fixed order because the distinct errors
// drive different caller flows: a missing clinic assignment must surface
// before anything about the nurse is examined.
func (s *Service) AssignNurse(ctx context.Context, patientID, nurseID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, s.mapPatientErr(err)
	}
	if patient.ClinicID == nil {
		s.metrics.AssignmentFailures.WithLabelValues("no_clinic_yet").Inc()
		return nil, apperrors.PatientNotAssignedToClinic()
	}

	nurse, err := s.nurses.Get(ctx, nurseID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.AssignmentFailures.WithLabelValues("nurse_not_found").Inc()
		return nil, apperrors.NurseUnavailable("nurse not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load nurse: %w", err)
	}
	if nurse.ClinicID != *patient.ClinicID {
		s.metrics.AssignmentFailures.WithLabelValues("nurse_clinic_mismatch").Inc()
		return nil, apperrors.NurseClinicMismatch()
	}
	if !nurse.Active {
		s.metrics.AssignmentFailures.WithLabelValues("nurse_inactive").Inc()
		return nil, apperrors.NurseUnavailable("nurse is not active")
	}
	if !nurse.HasCapacity() {
		s.metrics.AssignmentFailures.WithLabelValues("nurse_full").Inc()
		return nil, apperrors.NurseUnavailable("nurse is at full patient capacity")
	}

	err = s.patients.SetNurseAssignment(ctx, patient.ID, nurse.ID, model.AssignmentManual)
	if errors.Is(err, repository.ErrNoCapacity) {
		s.metrics.AssignmentFailures.WithLabelValues("nurse_race_lost").Inc()
		return nil, apperrors.CapacityRaceLost("nurse")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit nurse assignment: %w", err)
	}

	s.metrics.Assignments.WithLabelValues("nurse", "manual").Inc()
	s.notify(ctx, patient.UserID,
		"Penugasan Perawat", fmt.Sprintf("Perawat %s akan mendampingi Anda.", nurse.Name))

	return s.patients.Get(ctx, patientID)
}

// AutoAssign ranks eligible clinics by distance from the patient and commits
// the first one that still has a slot: nearest-with-capacity, not nearest.
// Nurse assignment is never part of auto-assignment.
func (s *Service) AutoAssign(ctx context.Context, patientID uuid.UUID) (*model.RankedClinic, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, s.mapPatientErr(err)
	}
	location, ok := patient.Location()
	if !ok {
		return nil, apperrors.BadRequest("patient has no stored location", nil)
	}

	ranked, err := s.rankEligible(ctx, location, 0)
	if err != nil {
		return nil, err
	}

	for _, candidate := range ranked {
		if !candidate.Clinic.HasCapacity() {
			continue
		}
		distance := candidate.DistanceKM
		err := s.patients.SetClinicAssignment(ctx, patient.ID, candidate.Clinic.ID, model.AssignmentAuto, &distance)
		if errors.Is(err, repository.ErrNoCapacity) {
			// Snapshot was stale; the next candidate may still have room.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit auto-assignment: %w", err)
		}

		s.metrics.Assignments.WithLabelValues("clinic", "auto").Inc()
		s.notify(ctx, patient.UserID,
			"Penugasan Puskesmas", fmt.Sprintf("Anda telah ditugaskan ke %s.", candidate.Clinic.Name))
		return candidate, nil
	}

	s.metrics.AssignmentFailures.WithLabelValues("no_clinic_available").Inc()
	return nil, apperrors.NoClinicAvailable()
}

// NearestClinics is the read-only ranking query: up to MaxCandidates
// approved, active clinics ordered by ascending distance.
func (s *Service) NearestClinics(ctx context.Context, location geo.Coordinate) ([]*model.RankedClinic, error) {
	if !location.Valid() {
		return nil, apperrors.BadRequest("coordinate out of range", nil)
	}
	return s.rankEligible(ctx, location, s.cfg.MaxCandidates)
}

// DeactivateClinic cascades through the repository transaction: assignments
// cleared, nurses removed, admin account disabled, all atomically.
func (s *Service) DeactivateClinic(ctx context.Context, clinicID uuid.UUID) error {
	err := s.clinics.Deactivate(ctx, clinicID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("clinic", err)
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate clinic: %w", err)
	}
	s.candidates.Delete(eligibleClinicsCacheKey)
	log.Info().Str("clinic_id", clinicID.String()).Msg("clinic deactivated, assignments cleared")
	return nil
}

func (s *Service) rankEligible(ctx context.Context, from geo.Coordinate, limit int) ([]*model.RankedClinic, error) {
	clinics, err := s.eligibleClinics(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]*model.RankedClinic, 0, len(clinics))
	for _, clinic := range clinics {
		d := geo.DistanceKM(from, clinic.Location())
		if s.cfg.SearchRadiusKM > 0 && d > s.cfg.SearchRadiusKM {
			continue
		}
		ranked = append(ranked, &model.RankedClinic{Clinic: clinic, DistanceKM: d})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].DistanceKM < ranked[j].DistanceKM
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *Service) eligibleClinics(ctx context.Context) ([]*model.Clinic, error) {
	if cached, ok := s.candidates.Get(eligibleClinicsCacheKey); ok {
		return cached.([]*model.Clinic), nil
	}
	clinics, err := s.clinics.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clinic candidates: %w", err)
	}
	s.candidates.SetDefault(eligibleClinicsCacheKey, clinics)
	return clinics, nil
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, title, message string) {
	if err := s.notifier.Notify(ctx, userID, model.NotificationTypeAssignment, title, message); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to dispatch assignment notification")
	}
}

func (s *Service) mapPatientErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("patient", err)
	}
	return fmt.Errorf("failed to load patient: %w", err)
}
