// Package activity provides asynchronous recording of group activity entries
// (member added, role changed, context switched). Recording is fire-and-forget:
// an activity write failure is logged but never surfaces to the request that
// triggered it.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearthhub/hearthhub/internal/db/models"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/safego"
)

// writeTimeout bounds each background activity insert so a stalled database
// cannot leak goroutines.
const writeTimeout = 5 * time.Second

// Well-known activity actions.
const (
	ActionMemberAdded     = "member_added"
	ActionMemberRemoved   = "member_removed"
	ActionRoleChanged     = "role_changed"
	ActionGroupCreated    = "group_created"
	ActionGroupUpdated    = "group_updated"
	ActionContextSwitched = "context_switched"
)

// Recorder writes activity entries through the activity repository.
type Recorder struct {
	repo *repositories.ActivityRepository
}

// NewRecorder creates a recorder backed by the given repository.
func NewRecorder(repo *repositories.ActivityRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Record writes an activity entry asynchronously. Safe to call from request
// handlers; returns immediately.
func (r *Recorder) Record(groupID, userID, action, detail string) {
	entry := &models.Activity{
		GroupID: groupID,
		UserID:  userID,
		Action:  action,
		Detail:  detail,
	}

	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.repo.Insert(ctx, entry); err != nil {
			slog.Warn("activity record failed",
				"group_id", groupID, "action", action, "error", err)
		}
	})
}

// RecordSync writes an activity entry synchronously. Used where the caller
// needs the entry durably written before responding, e.g. in tests.
func (r *Recorder) RecordSync(ctx context.Context, groupID, userID, action, detail string) error {
	entry := &models.Activity{
		GroupID: groupID,
		UserID:  userID,
		Action:  action,
		Detail:  detail,
	}
	return r.repo.Insert(ctx, entry)
}
