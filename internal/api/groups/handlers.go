// Package groups implements group CRUD, member management, and the group
// activity log. Every endpoint is membership-gated: the caller must hold a
// membership in the target group, and mutations additionally require the
// capability derived from the caller's role. Mutations invalidate the group's
// in-process cache entries and refetch the live context managers of affected
// users so their active context converges without waiting for a new session.
package groups

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/hearthhub/hearthhub/internal/activity"
	"github.com/hearthhub/hearthhub/internal/api/contexts"
	"github.com/hearthhub/hearthhub/internal/cache"
	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/middleware"
	"github.com/hearthhub/hearthhub/internal/permissions"
)

// Cache resources per group. Invalidated together on any group mutation.
const (
	cacheResourceDetail  = "detail"
	cacheResourceMembers = "members"
)

// GroupHandlers handles group management endpoints
type GroupHandlers struct {
	groups      *repositories.GroupRepository
	memberships *repositories.MembershipRepository
	activities  *repositories.ActivityRepository
	users       *repositories.UserRepository
	recorder    *activity.Recorder
	registry    *contexts.ManagerRegistry
	cache       *cache.GroupCache
}

// NewGroupHandlers creates a new GroupHandlers instance. groupCache may be nil
// when in-process caching is disabled.
func NewGroupHandlers(db *sql.DB, sqlxDB *sqlx.DB, recorder *activity.Recorder, registry *contexts.ManagerRegistry, groupCache *cache.GroupCache) *GroupHandlers {
	return &GroupHandlers{
		groups:      repositories.NewGroupRepository(db),
		memberships: repositories.NewMembershipRepository(sqlxDB),
		activities:  repositories.NewActivityRepository(db),
		users:       repositories.NewUserRepository(db),
		recorder:    recorder,
		registry:    registry,
		cache:       groupCache,
	}
}

// requireMember loads the caller's membership in the group. Non-members get
// 404 rather than 403 so the endpoint does not reveal which groups exist.
func (h *GroupHandlers) requireMember(c *gin.Context, groupID string) (*models.Membership, bool) {
	userID := c.GetString(middleware.UserIDKey)

	m, err := h.memberships.GetByUserAndGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to check membership",
		})
		return nil, false
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Group not found",
		})
		return nil, false
	}
	return m, true
}

// forbid writes the uniform 403 for a capability the caller's role lacks.
func forbid(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"error": "Insufficient permissions",
	})
}

func (h *GroupHandlers) cacheGet(groupID, resource string) (any, bool) {
	if h.cache == nil {
		return nil, false
	}
	return h.cache.Get(groupID, resource)
}

func (h *GroupHandlers) cacheSet(groupID, resource string, value any) {
	if h.cache != nil {
		h.cache.Set(groupID, resource, value)
	}
}

func (h *GroupHandlers) cacheInvalidate(c *gin.Context, groupID string) {
	if h.cache != nil {
		h.cache.InvalidateGroup(c.Request.Context(), groupID)
	}
}

// createGroupRequest is the body of a group creation
type createGroupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// @Summary      Create group
// @Description  Creates a group and makes the caller its first OWNER member.
// @Tags         Groups
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  createGroupRequest  true  "Group details"
// @Success      201  {object}  map[string]interface{}  "group: models.Group, membership: models.Membership"
// @Failure      400  {object}  map[string]interface{}  "Missing name"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/groups [post]
// CreateGroupHandler creates a group owned by the caller
// POST /api/v1/groups
func (h *GroupHandlers) CreateGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "name is required",
			})
			return
		}

		userID := c.GetString(middleware.UserIDKey)

		group := &models.Group{
			Name:        req.Name,
			Description: req.Description,
		}
		if err := h.groups.CreateGroup(c.Request.Context(), group); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create group",
			})
			return
		}

		membership, err := h.memberships.AddMember(c.Request.Context(), userID, group.ID, models.RoleOwner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create group",
			})
			return
		}
		membership.Group = *group

		h.recorder.Record(group.ID, userID, activity.ActionGroupCreated, group.Name)
		h.registry.RefetchUser(c.Request.Context(), userID)

		c.JSON(http.StatusCreated, gin.H{
			"group":      group,
			"membership": membership,
		})
	}
}

// @Summary      Get group
// @Description  Returns a group's details. The caller must be a member.
// @Tags         Groups
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Group ID"
// @Success      200  {object}  map[string]interface{}  "group: models.Group"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Group not found"
// @Router       /api/v1/groups/{id} [get]
// GetGroupHandler retrieves a group the caller belongs to
// GET /api/v1/groups/:id
func (h *GroupHandlers) GetGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		if _, ok := h.requireMember(c, groupID); !ok {
			return
		}

		if cached, ok := h.cacheGet(groupID, cacheResourceDetail); ok {
			c.JSON(http.StatusOK, gin.H{"group": cached})
			return
		}

		group, err := h.groups.GetByID(c.Request.Context(), groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve group",
			})
			return
		}
		if group == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Group not found",
			})
			return
		}

		h.cacheSet(groupID, cacheResourceDetail, group)
		c.JSON(http.StatusOK, gin.H{"group": group})
	}
}

// updateGroupRequest is the body of a group update
type updateGroupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// @Summary      Update group
// @Description  Updates a group's name and description. Requires the manage-group capability (ADMIN or above).
// @Tags         Groups
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "Group ID"
// @Param        request  body  updateGroupRequest  true  "New details"
// @Success      200  {object}  map[string]interface{}  "group: models.Group"
// @Failure      400  {object}  map[string]interface{}  "Missing name"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Group not found"
// @Router       /api/v1/groups/{id} [put]
// UpdateGroupHandler updates a group's details
// PUT /api/v1/groups/:id
func (h *GroupHandlers) UpdateGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		member, ok := h.requireMember(c, groupID)
		if !ok {
			return
		}
		if !permissions.Derive(member.Role).CanManageGroup {
			forbid(c)
			return
		}

		var req updateGroupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "name is required",
			})
			return
		}

		group := &models.Group{
			ID:          groupID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := h.groups.UpdateGroup(c.Request.Context(), group); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update group",
			})
			return
		}

		// Re-read the row so the response carries the stored timestamps, not a
		// partially populated struct with a zero created_at.
		group, err := h.groups.GetByID(c.Request.Context(), groupID)
		if err != nil || group == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update group",
			})
			return
		}

		userID := c.GetString(middleware.UserIDKey)
		h.cacheInvalidate(c, groupID)
		h.recorder.Record(groupID, userID, activity.ActionGroupUpdated, group.Name)
		h.registry.RefetchUser(c.Request.Context(), userID)

		c.JSON(http.StatusOK, gin.H{"group": group})
	}
}

// @Summary      Delete group
// @Description  Deletes a group along with its memberships and activity log. Requires the delete-group capability (OWNER only).
// @Tags         Groups
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Group ID"
// @Success      204  "Deleted"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Group not found"
// @Router       /api/v1/groups/{id} [delete]
// DeleteGroupHandler deletes a group; memberships and activities cascade
// DELETE /api/v1/groups/:id
func (h *GroupHandlers) DeleteGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		member, ok := h.requireMember(c, groupID)
		if !ok {
			return
		}
		if !permissions.Derive(member.Role).CanDeleteGroup {
			forbid(c)
			return
		}

		// Snapshot the member list before the cascade so every affected live
		// session can be refetched afterwards.
		members, err := h.memberships.ListMembersWithUsers(c.Request.Context(), groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete group",
			})
			return
		}

		if err := h.groups.DeleteGroup(c.Request.Context(), groupID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete group",
			})
			return
		}

		h.cacheInvalidate(c, groupID)
		for _, m := range members {
			h.registry.RefetchUser(c.Request.Context(), m.UserID)
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      List members
// @Description  Returns the group's members with user details, ordered by join time. The caller must be a member.
// @Tags         Groups
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Group ID"
// @Success      200  {object}  map[string]interface{}  "members: []models.MemberWithUser"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Group not found"
// @Router       /api/v1/groups/{id}/members [get]
// ListMembersHandler lists the group's members
// GET /api/v1/groups/:id/members
func (h *GroupHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		if _, ok := h.requireMember(c, groupID); !ok {
			return
		}

		if cached, ok := h.cacheGet(groupID, cacheResourceMembers); ok {
			c.JSON(http.StatusOK, gin.H{"members": cached})
			return
		}

		members, err := h.memberships.ListMembersWithUsers(c.Request.Context(), groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list members",
			})
			return
		}

		h.cacheSet(groupID, cacheResourceMembers, members)
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// addMemberRequest is the body of a member addition
type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// @Summary      Add member
// @Description  Adds a user to the group with the given role. Requires the manage-members capability.
// @Tags         Groups
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string            true  "Group ID"
// @Param        request  body  addMemberRequest  true  "User and role"
// @Success      201  {object}  map[string]interface{}  "membership: models.Membership"
// @Failure      400  {object}  map[string]interface{}  "Unknown role"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Group or user not found"
// @Failure      409  {object}  map[string]interface{}  "Already a member"
// @Router       /api/v1/groups/{id}/members [post]
// AddMemberHandler adds a user to the group
// POST /api/v1/groups/:id/members
func (h *GroupHandlers) AddMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		member, ok := h.requireMember(c, groupID)
		if !ok {
			return
		}
		if !permissions.Derive(member.Role).CanManageMembers {
			forbid(c)
			return
		}

		var req addMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "user_id and role are required",
			})
			return
		}

		role, err := models.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Unknown role: %s", req.Role),
			})
			return
		}

		target, err := h.users.GetUserByID(c.Request.Context(), req.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to add member",
			})
			return
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		existing, err := h.memberships.GetByUserAndGroup(c.Request.Context(), req.UserID, groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to add member",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "User is already a member of this group",
			})
			return
		}

		membership, err := h.memberships.AddMember(c.Request.Context(), req.UserID, groupID, role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to add member",
			})
			return
		}

		actorID := c.GetString(middleware.UserIDKey)
		h.cacheInvalidate(c, groupID)
		h.recorder.Record(groupID, actorID, activity.ActionMemberAdded,
			fmt.Sprintf("added %s as %s", target.Name, role))
		h.registry.RefetchUser(c.Request.Context(), req.UserID)

		c.JSON(http.StatusCreated, gin.H{"membership": membership})
	}
}

// updateRoleRequest is the body of a role change
type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// @Summary      Change member role
// @Description  Changes a member's role. Requires the manage-roles capability. Demoting the last OWNER is rejected.
// @Tags         Groups
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "Group ID"
// @Param        user_id  path  string             true  "Target user ID"
// @Param        request  body  updateRoleRequest  true  "New role"
// @Success      200  {object}  map[string]interface{}  "user_id, role"
// @Failure      400  {object}  map[string]interface{}  "Unknown role"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Group or membership not found"
// @Failure      409  {object}  map[string]interface{}  "Would demote the last owner"
// @Router       /api/v1/groups/{id}/members/{user_id} [put]
// UpdateMemberRoleHandler changes a member's role
// PUT /api/v1/groups/:id/members/:user_id
func (h *GroupHandlers) UpdateMemberRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")
		targetID := c.Param("user_id")

		member, ok := h.requireMember(c, groupID)
		if !ok {
			return
		}
		if !permissions.Derive(member.Role).CanManageRoles {
			forbid(c)
			return
		}

		var req updateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "role is required",
			})
			return
		}

		role, err := models.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Unknown role: %s", req.Role),
			})
			return
		}

		target, err := h.memberships.GetByUserAndGroup(c.Request.Context(), targetID, groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to change role",
			})
			return
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Membership not found",
			})
			return
		}

		if target.Role == models.RoleOwner && role != models.RoleOwner {
			owners, err := h.memberships.CountOwners(c.Request.Context(), groupID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to change role",
				})
				return
			}
			if owners <= 1 {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Cannot demote the last owner",
				})
				return
			}
		}

		if err := h.memberships.UpdateRole(c.Request.Context(), targetID, groupID, role); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to change role",
			})
			return
		}

		actorID := c.GetString(middleware.UserIDKey)
		h.cacheInvalidate(c, groupID)
		h.recorder.Record(groupID, actorID, activity.ActionRoleChanged,
			fmt.Sprintf("%s %s -> %s", targetID, target.Role, role))
		h.registry.RefetchUser(c.Request.Context(), targetID)

		c.JSON(http.StatusOK, gin.H{
			"user_id": targetID,
			"role":    role,
		})
	}
}

// @Summary      Remove member
// @Description  Removes a member from the group. Members may remove themselves (leave); removing others requires the manage-members capability. Removing the last OWNER is rejected.
// @Tags         Groups
// @Security     Bearer
// @Produce      json
// @Param        id       path  string  true  "Group ID"
// @Param        user_id  path  string  true  "Target user ID"
// @Success      204  "Removed"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Group or membership not found"
// @Failure      409  {object}  map[string]interface{}  "Would remove the last owner"
// @Router       /api/v1/groups/{id}/members/{user_id} [delete]
// RemoveMemberHandler removes a member (or lets a member leave)
// DELETE /api/v1/groups/:id/members/:user_id
func (h *GroupHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")
		targetID := c.Param("user_id")

		member, ok := h.requireMember(c, groupID)
		if !ok {
			return
		}

		actorID := c.GetString(middleware.UserIDKey)
		leaving := actorID == targetID
		if !leaving && !permissions.Derive(member.Role).CanManageMembers {
			forbid(c)
			return
		}

		target, err := h.memberships.GetByUserAndGroup(c.Request.Context(), targetID, groupID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to remove member",
			})
			return
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Membership not found",
			})
			return
		}

		if target.Role == models.RoleOwner {
			owners, err := h.memberships.CountOwners(c.Request.Context(), groupID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to remove member",
				})
				return
			}
			if owners <= 1 {
				c.JSON(http.StatusConflict, gin.H{
					"error": "Cannot remove the last owner",
				})
				return
			}
		}

		if err := h.memberships.RemoveMember(c.Request.Context(), targetID, groupID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to remove member",
			})
			return
		}

		h.cacheInvalidate(c, groupID)
		detail := fmt.Sprintf("removed %s", targetID)
		if leaving {
			detail = "left the group"
		}
		h.recorder.Record(groupID, actorID, activity.ActionMemberRemoved, detail)
		h.registry.RefetchUser(c.Request.Context(), targetID)

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Group activity log
// @Description  Returns the group's most recent activity entries, newest first. The caller must be a member.
// @Tags         Groups
// @Security     Bearer
// @Produce      json
// @Param        id     path   string  true   "Group ID"
// @Param        limit  query  int     false  "Max entries (default 50, max 200)"
// @Success      200  {object}  map[string]interface{}  "activities: []models.Activity"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Group not found"
// @Router       /api/v1/groups/{id}/activities [get]
// ListActivitiesHandler lists the group's recent activity
// GET /api/v1/groups/:id/activities?limit=50
func (h *GroupHandlers) ListActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("id")

		if _, ok := h.requireMember(c, groupID); !ok {
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		activities, err := h.activities.ListForGroup(c.Request.Context(), groupID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list activities",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"activities": activities})
	}
}
