package types

import (
	"errors"
	"time"
)

type UserRole string

const (
	UserRoleAdmin              UserRole = "ADMIN"
	UserRoleNeurologist        UserRole = "NEUROLOGUE"
	UserRoleResidentNeurologue UserRole = "NEUROLOGUE_RESIDENT"
	UserRoleDoctor             UserRole = "MEDECIN"
)

var ErrNoIdentity = errors.New("user id not found, please log in again")

// Identity is the authenticated user as persisted by the login flow.
type Identity struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	UserRole  UserRole  `json:"userRole"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
