package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/geo"
)

type AssignmentMethod string

const (
	AssignmentManual AssignmentMethod = "manual"
	AssignmentAuto   AssignmentMethod = "auto"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Patient is an ibu hamil profile. The assignment fields form the
// PatientAssignment record: NurseID non-nil implies ClinicID non-nil and the
// nurse belongs to that clinic.
type Patient struct {
	Base
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	NIK          string     `db:"nik" json:"nik"`
	Name         string     `db:"name" json:"name"`
	Phone        string     `db:"phone" json:"phone"`
	Address      string     `db:"address" json:"address"`
	DueDate      *time.Time `db:"due_date" json:"due_date,omitempty"`
	RiskLevel    *RiskLevel `db:"risk_level" json:"risk_level,omitempty"`
	Active       bool       `db:"active" json:"active"`
	Longitude    *float64   `db:"longitude" json:"longitude,omitempty"`
	Latitude     *float64   `db:"latitude" json:"latitude,omitempty"`

	ClinicID           *uuid.UUID        `db:"clinic_id" json:"clinic_id,omitempty"`
	NurseID            *uuid.UUID        `db:"nurse_id" json:"nurse_id,omitempty"`
	AssignedAt         *time.Time        `db:"assigned_at" json:"assigned_at,omitempty"`
	AssignmentMethod   *AssignmentMethod `db:"assignment_method" json:"assignment_method,omitempty"`
	AssignmentDistance *float64          `db:"assignment_distance_km" json:"assignment_distance_km,omitempty"`
}

// Location returns the patient's stored coordinate, or false when none is set.
func (p *Patient) Location() (geo.Coordinate, bool) {
	if p.Longitude == nil || p.Latitude == nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Longitude: *p.Longitude, Latitude: *p.Latitude}, true
}
