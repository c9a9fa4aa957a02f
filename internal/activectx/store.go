// store.go defines the MembershipStore boundary and its two implementations: a
// repository-backed store used inside the service, and an HTTP client store that
// consumes the membership query endpoint when the manager is embedded elsewhere.
package activectx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
)

// Sentinel errors for membership loading. Callers classify failures with
// errors.Is; the manager treats ErrAuthenticationRequired as a legitimate empty
// state and everything else as ErrFetchFailed.
var (
	// ErrAuthenticationRequired indicates no valid session exists. Not a failure.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrFetchFailed indicates the membership list could not be loaded.
	ErrFetchFailed = errors.New("failed to load memberships")

	// ErrInvalidSwitchTarget indicates a switch request named a group the user
	// is not currently a member of. Local validation only; no I/O was performed.
	ErrInvalidSwitchTarget = errors.New("invalid switch target")
)

// MembershipStore loads the full membership list for one user. Implementations
// are read-only: membership mutations go through the repositories and are
// observed here on the next load.
type MembershipStore interface {
	LoadMemberships(ctx context.Context) ([]models.Membership, error)
}

// SQLStore is the in-service MembershipStore, reading directly from the
// membership repository for a fixed user.
type SQLStore struct {
	repo   *repositories.MembershipRepository
	userID string
}

// NewSQLStore creates a repository-backed store for the given user. An empty
// userID models the unauthenticated state.
func NewSQLStore(repo *repositories.MembershipRepository, userID string) *SQLStore {
	return &SQLStore{repo: repo, userID: userID}
}

// LoadMemberships implements MembershipStore.
func (s *SQLStore) LoadMemberships(ctx context.Context) ([]models.Membership, error) {
	if s.userID == "" {
		return nil, ErrAuthenticationRequired
	}

	memberships, err := s.repo.ListForUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	return memberships, nil
}

// HTTPStore consumes the remote membership query endpoint
// (GET <base>/api/v1/user/memberships) with a bearer token. It is the store to
// use when the context manager runs outside the service that owns the data.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore creates an HTTP-backed store. A nil client gets a 10-second
// timeout default.
func NewHTTPStore(baseURL, token string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStore{baseURL: baseURL, token: token, client: client}
}

// LoadMemberships implements MembershipStore. A 401 maps to
// ErrAuthenticationRequired; any other non-2xx response or transport failure
// maps to ErrFetchFailed.
func (s *HTTPStore) LoadMemberships(ctx context.Context) ([]models.Membership, error) {
	if s.token == "" {
		return nil, ErrAuthenticationRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v1/user/memberships", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuthenticationRequired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	var payload struct {
		Memberships []models.Membership `json:"memberships"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFetchFailed, err)
	}

	return payload.Memberships, nil
}
