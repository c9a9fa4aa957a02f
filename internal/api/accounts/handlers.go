// Package accounts implements account endpoints: registration, login, the
// current-user view, and logout. Registration can be disabled per deployment
// with auth.allow_signup; login always issues a bearer JWT scoped by
// auth.token_ttl.
package accounts

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hearthhub/hearthhub/internal/api/contexts"
	"github.com/hearthhub/hearthhub/internal/auth"
	"github.com/hearthhub/hearthhub/internal/config"
	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/middleware"
)

// AccountHandlers handles account management endpoints
type AccountHandlers struct {
	cfg      *config.Config
	users    *repositories.UserRepository
	registry *contexts.ManagerRegistry
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(cfg *config.Config, db *sql.DB, registry *contexts.ManagerRegistry) *AccountHandlers {
	return &AccountHandlers{
		cfg:      cfg,
		users:    repositories.NewUserRepository(db),
		registry: registry,
	}
}

// registerRequest is the body of a registration
type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// loginRequest is the body of a login
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Register
// @Description  Creates a new account and returns a bearer token. Returns 403 when the deployment has signups disabled.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        request  body  registerRequest  true  "New account details"
// @Success      201  {object}  map[string]interface{}  "token: JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Validation failure"
// @Failure      403  {object}  map[string]interface{}  "Signups disabled"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates a new account
// POST /api/v1/auth/register
func (h *AccountHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.cfg.Auth.AllowSignup {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Signups are disabled on this server",
			})
			return
		}

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "email, name, and password are required",
			})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if !strings.Contains(email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid email address",
			})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordTooShort) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Password must be at least 8 characters",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create account",
			})
			return
		}

		existing, err := h.users.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create account",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Email is already registered",
			})
			return
		}

		user := &models.User{
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			PasswordHash: hash,
		}
		if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create account",
			})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// @Summary      Login
// @Description  Verifies credentials and returns a bearer token. The same 401 is returned for unknown emails and wrong passwords.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        request  body  loginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "token: JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Validation failure"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user and issues a JWT
// POST /api/v1/auth/login
func (h *AccountHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "email and password are required",
			})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		user, err := h.users.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to log in",
			})
			return
		}

		// Identical response for unknown email and wrong password so the
		// endpoint cannot be used to enumerate accounts.
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// @Summary      Current user
// @Description  Returns the authenticated user's account.
// @Tags         Accounts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the authenticated user
// GET /api/v1/auth/me
func (h *AccountHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet(middleware.UserKey).(*models.User)
		c.JSON(http.StatusOK, gin.H{
			"user": user,
		})
	}
}

// @Summary      Logout
// @Description  Ends the caller's session: the active-context manager is discarded, so the refresh counter restarts at zero on the next login.
// @Tags         Accounts
// @Security     Bearer
// @Success      204  "Logged out"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/logout [post]
// LogoutHandler drops the caller's session state
// POST /api/v1/auth/logout
func (h *AccountHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)
		h.registry.Drop(userID)
		c.Status(http.StatusNoContent)
	}
}
