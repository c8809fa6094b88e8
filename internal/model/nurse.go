package model

import "github.com/google/uuid"

// Nurse is a perawat: a care provider belonging to exactly one clinic, with
// an independent patient capacity.
type Nurse struct {
	Base
	UserID          *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ClinicID        uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name            string     `db:"name" json:"name"`
	Phone           string     `db:"phone" json:"phone"`
	Active          bool       `db:"active" json:"active"`
	MaxPatients     int        `db:"max_patients" json:"max_patients"`
	CurrentPatients int        `db:"current_patients" json:"current_patients"`
}

func (n *Nurse) HasCapacity() bool {
	return HasCapacity(n.CurrentPatients, n.MaxPatients)
}
