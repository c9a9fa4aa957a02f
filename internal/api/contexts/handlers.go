// handlers.go implements the context API endpoints backed by the per-user manager
// registry: snapshot reads, context switches, refetches, and forced refreshes.
package contexts

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthhub/hearthhub/internal/activectx"
	"github.com/hearthhub/hearthhub/internal/activity"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/middleware"
	"github.com/hearthhub/hearthhub/internal/telemetry"
)

// ContextHandlers handles the active-context endpoints
type ContextHandlers struct {
	registry    *ManagerRegistry
	memberships *repositories.MembershipRepository
	recorder    *activity.Recorder
}

// NewContextHandlers creates a new ContextHandlers instance
func NewContextHandlers(registry *ManagerRegistry, memberships *repositories.MembershipRepository, recorder *activity.Recorder) *ContextHandlers {
	return &ContextHandlers{
		registry:    registry,
		memberships: memberships,
		recorder:    recorder,
	}
}

// @Summary      Get active context
// @Description  Returns the caller's current active-context snapshot: active group, role, derived permissions, membership list, and refresh counter.
// @Tags         Context
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  activectx.Snapshot
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/context [get]
// GetContextHandler returns the current snapshot
// GET /api/v1/context
func (h *ContextHandlers) GetContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		mgr := h.registry.ManagerFor(c.Request.Context(), userID)
		c.JSON(http.StatusOK, mgr.Snapshot())
	}
}

// switchRequest is the body of a context switch
type switchRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

// @Summary      Switch active context
// @Description  Makes the given group the caller's active context. The target must be one of the caller's current memberships; switching to the already-active group is a silent no-op.
// @Tags         Context
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  switchRequest  true  "Target group id"
// @Success      200  {object}  activectx.Snapshot
// @Failure      400  {object}  map[string]interface{}  "Missing group_id"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      422  {object}  map[string]interface{}  "Not a member of the target group"
// @Router       /api/v1/context/switch [post]
// SwitchContextHandler switches the active group
// POST /api/v1/context/switch
func (h *ContextHandlers) SwitchContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req switchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "group_id is required",
			})
			return
		}

		userID := c.GetString(middleware.UserIDKey)
		mgr := h.registry.ManagerFor(c.Request.Context(), userID)

		previousID := mgr.Snapshot().ActiveGroupID

		if err := mgr.SwitchActive(c.Request.Context(), req.GroupID); err != nil {
			if errors.Is(err, activectx.ErrInvalidSwitchTarget) {
				telemetry.ContextSwitchesTotal.WithLabelValues("invalid_target").Inc()
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error": fmt.Sprintf("You are not a member of group %s", req.GroupID),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to switch context",
			})
			return
		}

		snap := mgr.Snapshot()
		if snap.ActiveGroupID == previousID {
			telemetry.ContextSwitchesTotal.WithLabelValues("noop").Inc()
		} else {
			telemetry.ContextSwitchesTotal.WithLabelValues("success").Inc()
			telemetry.RefreshPropagationsTotal.Inc()
			h.recorder.Record(snap.ActiveGroupID, userID, activity.ActionContextSwitched, "")
		}

		c.JSON(http.StatusOK, snap)
	}
}

// @Summary      Refetch memberships
// @Description  Reloads the caller's membership list from storage and re-runs active selection. Use after accepting an invite or when a stale-context error is suspected.
// @Tags         Context
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  activectx.Snapshot
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/context/refetch [post]
// RefetchContextHandler reloads memberships and returns the fresh snapshot
// POST /api/v1/context/refetch
func (h *ContextHandlers) RefetchContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		mgr := h.registry.ManagerFor(c.Request.Context(), userID)

		before := mgr.Snapshot().RefreshCounter

		start := time.Now()
		mgr.Refetch(c.Request.Context())
		telemetry.MembershipLoadDuration.Observe(time.Since(start).Seconds())

		snap := mgr.Snapshot()
		if snap.RefreshCounter != before {
			telemetry.RefreshPropagationsTotal.Inc()
		}

		c.JSON(http.StatusOK, snap)
	}
}

// @Summary      Force refresh
// @Description  Increments the refresh counter without changing the active group, signalling dependent consumers to refetch their group-scoped data.
// @Tags         Context
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "refresh_counter: new counter value"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/context/refresh [post]
// ForceRefreshHandler bumps the refresh counter
// POST /api/v1/context/refresh
func (h *ContextHandlers) ForceRefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		mgr := h.registry.ManagerFor(c.Request.Context(), userID)

		counter := mgr.ForceRefresh()
		telemetry.RefreshPropagationsTotal.Inc()

		c.JSON(http.StatusOK, gin.H{
			"refresh_counter": counter,
		})
	}
}

// @Summary      List own memberships
// @Description  Returns the caller's memberships with their groups embedded, ordered by join time. This is the membership query that remote context managers consume.
// @Tags         Context
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "memberships: []models.Membership"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/user/memberships [get]
// ListMembershipsHandler lists the caller's memberships
// GET /api/v1/user/memberships
func (h *ContextHandlers) ListMembershipsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)

		memberships, err := h.memberships.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list memberships",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"memberships": memberships,
		})
	}
}
