// Package rbac provides role-based access control checks for the admin
// endpoints.
package rbac

import (
	"errors"
	"fmt"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

var ErrPermissionDenied = errors.New("permission denied")

// permissionMatrix maps roles to their allowed permissions.
var permissionMatrix = map[model.Role]map[model.Permission]bool{
	model.RoleAdmin: {
		model.PermListRooms: true,
		model.PermCloseRoom: true,
	},
	model.RoleUser: {
		// Queue and be matched only
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm model.Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// RequirePermission returns an error wrapping ErrPermissionDenied if the
// role lacks the permission.
func RequirePermission(role model.Role, perm model.Permission) error {
	if HasPermission(role, perm) {
		return nil
	}
	return fmt.Errorf("%w: %s requires admin", ErrPermissionDenied, PermName(perm))
}

// PermName returns the wire name of a permission.
func PermName(p model.Permission) string {
	switch p {
	case model.PermListRooms:
		return "list_rooms"
	case model.PermCloseRoom:
		return "close_room"
	default:
		return "unknown"
	}
}
