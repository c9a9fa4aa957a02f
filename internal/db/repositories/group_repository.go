// group_repository.go implements GroupRepository, providing database queries for
// group (household / building team / community team) CRUD.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthhub/hearthhub/internal/db/models"
)

// GroupRepository handles database operations for groups
type GroupRepository struct {
	db *sql.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateGroup creates a new group
func (r *GroupRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	group.ID = uuid.New().String()
	group.CreatedAt = time.Now()
	group.UpdatedAt = time.Now()

	query := `
		INSERT INTO groups (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.CreatedAt,
		group.UpdatedAt,
	)

	return err
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, groupID string) (*models.Group, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM groups
		WHERE id = $1
	`

	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatedAt,
		&group.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// Exists reports whether a group with the given ID exists
func (r *GroupRepository) Exists(ctx context.Context, groupID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}
	return exists, nil
}

// UpdateGroup updates a group's name and description
func (r *GroupRepository) UpdateGroup(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now()

	query := `
		UPDATE groups SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		group.Name,
		group.Description,
		group.UpdatedAt,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("group not found: %s", group.ID)
	}

	return nil
}

// DeleteGroup deletes a group; memberships and activities cascade
func (r *GroupRepository) DeleteGroup(ctx context.Context, groupID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("group not found: %s", groupID)
	}

	return nil
}
