package model

import "time"

type Role string

const (
	RoleMother      Role = "ibu_hamil"
	RoleRelative    Role = "kerabat"
	RoleNurse       Role = "perawat"
	RoleClinicAdmin Role = "puskesmas"
	RoleSuperAdmin  Role = "super_admin"
)

type User struct {
	Base
	Email        string     `db:"email" json:"email"`
	Phone        string     `db:"phone" json:"phone"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         Role       `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}
