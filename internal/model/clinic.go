package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/geo"
)

type ClinicStatus string

const (
	ClinicStatusPending   ClinicStatus = "pending"
	ClinicStatusApproved  ClinicStatus = "approved"
	ClinicStatusRejected  ClinicStatus = "rejected"
	ClinicStatusSuspended ClinicStatus = "suspended"
)

// Clinic is a puskesmas: a registered care facility with an approval
// lifecycle and a bounded patient capacity.
type Clinic struct {
	Base
	Name            string       `db:"name" json:"name"`
	Address         string       `db:"address" json:"address"`
	Phone           string       `db:"phone" json:"phone"`
	Status          ClinicStatus `db:"status" json:"status"`
	Active          bool         `db:"active" json:"active"`
	MaxPatients     int          `db:"max_patients" json:"max_patients"`
	CurrentPatients int          `db:"current_patients" json:"current_patients"`
	Longitude       float64      `db:"longitude" json:"longitude"`
	Latitude        float64      `db:"latitude" json:"latitude"`
	AdminUserID     *uuid.UUID   `db:"admin_user_id" json:"admin_user_id,omitempty"`
	ApprovedBy      *uuid.UUID   `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time   `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

func (c *Clinic) Location() geo.Coordinate {
	return geo.Coordinate{Longitude: c.Longitude, Latitude: c.Latitude}
}

// Eligible reports whether the clinic may receive assignments at all,
// capacity aside.
func (c *Clinic) Eligible() bool {
	return c.Status == ClinicStatusApproved && c.Active
}

func (c *Clinic) HasCapacity() bool {
	return HasCapacity(c.CurrentPatients, c.MaxPatients)
}

// RankedClinic pairs a clinic with its distance from a patient, for the
// nearest-clinics query and auto-assignment ranking.
type RankedClinic struct {
	Clinic     *Clinic `json:"clinic"`
	DistanceKM float64 `json:"distance_km"`
}
