package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// HasCapacity reports whether a clinic or nurse with the given patient counts
// can accept one more patient. A non-positive max means no capacity at all,
// never "unlimited".
func HasCapacity(current, max int) bool {
	if max <= 0 {
		return false
	}
	return current < max
}
