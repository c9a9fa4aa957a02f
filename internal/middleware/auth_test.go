package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/hearthhub/hearthhub/internal/auth"
	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var userColumns = []string{"id", "email", "name", "password_hash", "created_at", "updated_at"}

func userRow(id, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).
		AddRow(id, email, "Test User", "$2a$10$hash", now, now)
}

// newAuthRouter builds a router with AuthMiddleware backed by a sqlmock database.
func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := repositories.NewUserRepository(db)

	r := gin.New()
	r.Use(AuthMiddleware(userRepo))
	r.GET("/protected", func(c *gin.Context) {
		user, _ := c.Get(UserKey)
		c.JSON(http.StatusOK, gin.H{"user_id": user.(*models.User).ID})
	})
	return r, mock
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Header parsing
// ---------------------------------------------------------------------------

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := doRequest(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_NonBearerHeader(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := doRequest(r, "Basic dXNlcjpwYXNz")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_EmptyToken(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := doRequest(r, "Bearer   ")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ---------------------------------------------------------------------------
// JWT validation
// ---------------------------------------------------------------------------

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := doRequest(r, "Bearer not-a-real-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ValidTokenLoadsUser(t *testing.T) {
	r, mock := newAuthRouter(t)

	token, err := auth.GenerateJWT("user-1", "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	mock.ExpectQuery("SELECT id, email, name, password_hash, created_at, updated_at").
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", "u@example.com"))

	w := doRequest(r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuthMiddleware_ValidTokenForDeletedUser(t *testing.T) {
	r, mock := newAuthRouter(t)

	token, err := auth.GenerateJWT("ghost-user", "gone@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	// Repository returns (nil, nil) for no rows
	mock.ExpectQuery("SELECT id, email, name, password_hash, created_at, updated_at").
		WithArgs("ghost-user").
		WillReturnRows(sqlmock.NewRows(userColumns))

	w := doRequest(r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deleted user", w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	r, _ := newAuthRouter(t)

	token, err := auth.GenerateJWT("user-1", "u@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w := doRequest(r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired token", w.Code)
	}
}
