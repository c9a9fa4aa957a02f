// activity_repository.go implements ActivityRepository, the persistence layer behind
// the asynchronous group activity log (member added, role changed, context switched).
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthhub/hearthhub/internal/db/models"
)

// ActivityRepository handles database operations for the group activity log
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert records one activity entry
func (r *ActivityRepository) Insert(ctx context.Context, activity *models.Activity) error {
	activity.ID = uuid.New().String()
	activity.CreatedAt = time.Now()

	query := `
		INSERT INTO activities (id, group_id, user_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		activity.ID,
		activity.GroupID,
		activity.UserID,
		activity.Action,
		activity.Detail,
		activity.CreatedAt,
	)

	return err
}

// ListForGroup returns the most recent activity entries for a group, newest first
func (r *ActivityRepository) ListForGroup(ctx context.Context, groupID string, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, group_id, user_id, action, detail, created_at
		FROM activities
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.GroupID, &a.UserID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}
