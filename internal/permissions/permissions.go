// Package permissions maps membership roles to concrete capability sets.
//
// The mapping is a pure, exhaustive function over the closed Role enumeration in
// internal/db/models. Handlers and the active-context manager treat the derived
// PermissionSet as opaque data: they read flags, they never re-derive behavior
// from the role string itself. This keeps role semantics in exactly one place.
package permissions

import "github.com/hearthhub/hearthhub/internal/db/models"

// PermissionSet is the capability set derived from a role. The zero value
// grants nothing, which is also what an unknown or absent role derives to.
type PermissionSet struct {
	CanManageGroup      bool `json:"can_manage_group"`
	CanDeleteGroup      bool `json:"can_delete_group"`
	CanManageMembers    bool `json:"can_manage_members"`
	CanManageRoles      bool `json:"can_manage_roles"`
	CanManageRooms      bool `json:"can_manage_rooms"`
	CanManageCategories bool `json:"can_manage_categories"`
	CanManageItems      bool `json:"can_manage_items"`
	CanMoveItems        bool `json:"can_move_items"`
	CanSetWatermark     bool `json:"can_set_watermark"`
}

// Derive returns the capability set for a role. The switch is exhaustive over
// models.AllRoles; anything else falls through to the zero (deny-all) set.
func Derive(role models.Role) PermissionSet {
	switch role {
	case models.RoleOwner:
		return PermissionSet{
			CanManageGroup:      true,
			CanDeleteGroup:      true,
			CanManageMembers:    true,
			CanManageRoles:      true,
			CanManageRooms:      true,
			CanManageCategories: true,
			CanManageItems:      true,
			CanMoveItems:        true,
			CanSetWatermark:     true,
		}
	case models.RoleAdmin:
		// Owners can additionally delete the group; admins cannot.
		return PermissionSet{
			CanManageGroup:      true,
			CanManageMembers:    true,
			CanManageRoles:      true,
			CanManageRooms:      true,
			CanManageCategories: true,
			CanManageItems:      true,
			CanMoveItems:        true,
			CanSetWatermark:     true,
		}
	case models.RoleManager:
		return PermissionSet{
			CanManageMembers:    true,
			CanManageRoles:      true,
			CanManageRooms:      true,
			CanManageCategories: true,
			CanManageItems:      true,
			CanMoveItems:        true,
			CanSetWatermark:     true,
		}
	case models.RoleUser:
		return PermissionSet{
			CanManageMembers:    true,
			CanManageRooms:      true,
			CanManageCategories: true,
			CanManageItems:      true,
			CanMoveItems:        true,
			CanSetWatermark:     true,
		}
	case models.RoleViewer:
		return PermissionSet{}
	case models.RoleVisitor:
		return PermissionSet{
			CanManageItems: true,
			CanMoveItems:   true,
		}
	default:
		return PermissionSet{}
	}
}
