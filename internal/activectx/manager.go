// Package activectx implements the active-context manager: given a user's group
// memberships, it durably tracks exactly one "active" membership, supports switching
// it, and propagates each distinct change as a monotonically increasing refresh
// counter that dependent consumers use to invalidate and refetch their own state.
//
// One Manager instance is long-lived per authenticated session. All mutating
// operations (Refetch, SwitchActive, ForceRefresh, SignOut) are serialized through a
// single operation mutex, so overlapping calls never race on shared state; readers
// observe state only through Snapshot, which is committed atomically — a consumer
// never sees a role without its matching group or a counter bump before the new
// active group id is visible.
package activectx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/permissions"
	"github.com/hearthhub/hearthhub/internal/safego"
)

// invalidateTimeout bounds the best-effort cache invalidation sweep that runs
// after a context switch. The sweep must never block a switch, so it runs in a
// background goroutine with this deadline.
const invalidateTimeout = 5 * time.Second

// Snapshot is the externally visible active-context state. All fields are
// value copies; mutating a snapshot never affects the manager.
type Snapshot struct {
	ActiveGroup    *models.Group             `json:"active_group,omitempty"`
	ActiveRole     models.Role               `json:"active_role,omitempty"`
	Permissions    permissions.PermissionSet `json:"permissions"`
	ActiveGroupID  string                    `json:"active_group_id,omitempty"`
	Memberships    []models.Membership       `json:"memberships"`
	IsLoading      bool                      `json:"is_loading"`
	IsSwitching    bool                      `json:"is_switching"`
	Err            string                    `json:"error,omitempty"`
	RefreshCounter uint64                    `json:"refresh_counter"`
}

// Manager owns one user's active context for the lifetime of their session.
type Manager struct {
	// opMu serializes mutating operations so at most one Refetch/Switch is in
	// flight at a time. stateMu guards the state itself and is held only for
	// short critical sections, letting Snapshot readers observe IsLoading
	// while a fetch is suspended on I/O.
	opMu    sync.Mutex
	stateMu sync.RWMutex

	store         MembershipStore
	prefs         PreferenceStore
	invalidations *InvalidatorRegistry

	state Snapshot
}

// NewManager creates a manager in the unauthenticated (empty) state. The
// registry may be nil when no dependent caches are wired.
func NewManager(store MembershipStore, prefs PreferenceStore, invalidations *InvalidatorRegistry) *Manager {
	return &Manager{
		store:         store,
		prefs:         prefs,
		invalidations: invalidations,
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	snap := m.state
	if m.state.ActiveGroup != nil {
		group := *m.state.ActiveGroup
		snap.ActiveGroup = &group
	}
	snap.Memberships = make([]models.Membership, len(m.state.Memberships))
	copy(snap.Memberships, m.state.Memberships)
	return snap
}

// Refetch loads the membership list and re-runs active selection. It is the
// same operation as initialization: call it when the session becomes
// authenticated, or any time a consumer wants the list re-confirmed.
//
// On ErrAuthenticationRequired the context resets to the empty state — an
// expected condition, not an error. On any other load failure the active
// context collapses to absent and Err carries a user-presentable message,
// recoverable by calling Refetch again.
func (m *Manager) Refetch(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stateMu.Lock()
	m.state.IsLoading = true
	m.state.Err = ""
	currentID := m.state.ActiveGroupID
	m.stateMu.Unlock()

	memberships, err := m.store.LoadMemberships(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthenticationRequired) {
			// No session: legitimate empty state, not a failure.
			m.stateMu.Lock()
			m.state = Snapshot{}
			m.stateMu.Unlock()
			return
		}

		slog.Error("membership load failed", "error", err)
		m.stateMu.Lock()
		m.clearActiveLocked()
		m.state.Memberships = nil
		m.state.Err = "failed to load memberships"
		m.state.IsLoading = false
		changed, prev := m.bumpIfChangedLocked(currentID)
		m.stateMu.Unlock()
		if changed {
			m.propagate(prev)
		}
		return
	}

	// The stored hint wins; absent that, the in-memory current selection is
	// re-confirmed across the refetch without touching storage.
	preferred, ok := m.prefs.Preferred(ctx)
	if !ok {
		preferred = currentID
	}

	active := SelectActive(memberships, preferred)

	m.stateMu.Lock()
	m.state.Memberships = memberships
	m.commitActiveLocked(active)
	m.state.IsLoading = false
	changed, prev := m.bumpIfChangedLocked(currentID)
	m.stateMu.Unlock()
	if changed {
		m.propagate(prev)
	}
}

// SwitchActive makes targetGroupID the active context. The target must be one
// of the currently loaded memberships; anything else is a local validation
// failure that sets Err, changes nothing else, and performs no I/O.
//
// On success the preference is persisted (best-effort), the matched membership
// is committed, and caches keyed by the previous group id are invalidated
// asynchronously. The returned error wraps ErrInvalidSwitchTarget only.
func (m *Manager) SwitchActive(ctx context.Context, targetGroupID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stateMu.Lock()
	var match *models.Membership
	for i := range m.state.Memberships {
		if m.state.Memberships[i].Group.ID == targetGroupID {
			match = &m.state.Memberships[i]
			break
		}
	}
	if match == nil {
		m.state.Err = fmt.Sprintf("cannot switch to group %q: no matching membership", targetGroupID)
		m.stateMu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidSwitchTarget, targetGroupID)
	}

	currentID := m.state.ActiveGroupID
	m.state.IsSwitching = true
	m.state.Err = ""
	m.stateMu.Unlock()

	m.prefs.SetPreferred(ctx, targetGroupID)

	m.stateMu.Lock()
	m.commitActiveLocked(match)
	m.state.IsSwitching = false
	changed, prev := m.bumpIfChangedLocked(currentID)
	m.stateMu.Unlock()
	if changed {
		m.propagate(prev)
	}
	return nil
}

// ForceRefresh increments the refresh counter without changing the active
// group. Consumers use it when server-side data for the current group is known
// to have changed and dependents should refetch without a context switch.
func (m *Manager) ForceRefresh() uint64 {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.RefreshCounter++
	return m.state.RefreshCounter
}

// SignOut resets the manager to the unauthenticated state. The refresh counter
// restarts at zero: its monotonicity is scoped to one session's lifetime.
func (m *Manager) SignOut() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state = Snapshot{}
}

// clearActiveLocked resets the derived active fields. stateMu must be held.
func (m *Manager) clearActiveLocked() {
	m.state.ActiveGroup = nil
	m.state.ActiveRole = ""
	m.state.Permissions = permissions.PermissionSet{}
	m.state.ActiveGroupID = ""
}

// commitActiveLocked installs a membership (or nil) as the active context.
// Group, role, derived permissions, and the id mirror are updated together so
// a concurrent Snapshot never observes a partial update. stateMu must be held.
func (m *Manager) commitActiveLocked(active *models.Membership) {
	if active == nil {
		m.clearActiveLocked()
		return
	}

	group := active.Group
	m.state.ActiveGroup = &group
	m.state.ActiveRole = active.Role
	m.state.Permissions = permissions.Derive(active.Role)
	m.state.ActiveGroupID = group.ID
}

// bumpIfChangedLocked increments the refresh counter exactly once if the
// active group id differs from previousID (including transitions to or from
// absent). The counter is bumped only after the new id is already visible in
// the state, so a consumer reacting to the counter always reads the new id.
// stateMu must be held.
func (m *Manager) bumpIfChangedLocked(previousID string) (changed bool, prev string) {
	if m.state.ActiveGroupID == previousID {
		return false, previousID
	}
	m.state.RefreshCounter++
	return true, previousID
}

// propagate sweeps caches keyed by the previous active group. Fire-and-forget:
// a slow or failing invalidation never blocks the operation that triggered it.
func (m *Manager) propagate(previousID string) {
	if previousID == "" || m.invalidations == nil {
		return
	}

	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()
		m.invalidations.InvalidateGroup(ctx, previousID)
	})
}
