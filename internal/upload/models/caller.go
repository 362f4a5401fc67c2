package models

import "github.com/google/uuid"

type Role string

const (
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleStudent    Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleInstructor, RoleAdmin, RoleStudent:
		return true
	}
	return false
}

// Caller — identity + role resolved by the auth module upstream.
// The upload service never inspects the role directly, only the capability.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// CanManage reports whether the caller may manage content owned by the
// given instructor: the instructor themselves, or an admin.
func (c Caller) CanManage(instructorID uuid.UUID) bool {
	if c.Role == RoleAdmin {
		return true
	}
	return c.Role == RoleInstructor && c.ID == instructorID
}
