package helper

import (
	"errors"

	"admissions-portal/internal/models"
)

var (
	ErrUserBanned  = errors.New("account is banned")
	ErrInvalidRole = errors.New("you do not have access to this resource")
)

// HasAccess reports whether role/perms grant perm. Super admins pass every
// check; an empty perm only requires a known role.
func HasAccess(role string, perms models.Permissions, perm string) bool {
	switch role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAdmin:
		return perm == "" || perms.Has(perm)
	}
	return false
}

// CheckAdmin rejects banned profiles and profiles lacking perm.
func CheckAdmin(a models.AdminProfile, perm string) error {
	if a.IsBanned {
		return ErrUserBanned
	}
	if !HasAccess(a.Role, a.Permissions, perm) {
		return ErrInvalidRole
	}
	return nil
}

func IsSuperAdmin(role string) bool {
	return role == models.RoleSuperAdmin
}
