// membership_repository.go implements MembershipRepository, providing database queries
// for the user↔group membership rows that the active-context manager consumes: the
// per-user membership list (with embedded group), per-group member lists with user
// details, and membership mutations (add / change role / remove).
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/hearthhub/hearthhub/internal/db/models"
)

// membershipRow is the sqlx scan target for the membership+group join.
type membershipRow struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	GroupID          string     `db:"group_id"`
	Role             string     `db:"role"`
	JoinedAt         *time.Time `db:"joined_at"`
	GroupName        string     `db:"group_name"`
	GroupDescription *string    `db:"group_description"`
	GroupCreatedAt   time.Time  `db:"group_created_at"`
	GroupUpdatedAt   time.Time  `db:"group_updated_at"`
}

// memberWithUserRow is the sqlx scan target for the membership+user join.
type memberWithUserRow struct {
	MembershipID string     `db:"membership_id"`
	UserID       string     `db:"user_id"`
	UserName     string     `db:"user_name"`
	UserEmail    string     `db:"user_email"`
	Role         string     `db:"role"`
	JoinedAt     *time.Time `db:"joined_at"`
}

// MembershipRepository handles database operations for memberships
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ListForUser returns all of a user's memberships with their groups embedded,
// ordered by join time. This is the query behind the membership list endpoint;
// the server-side ordering is the deterministic "first membership" that the
// active selector falls back to.
func (r *MembershipRepository) ListForUser(ctx context.Context, userID string) ([]models.Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.group_id, m.role, m.joined_at,
		       g.name AS group_name, g.description AS group_description,
		       g.created_at AS group_created_at, g.updated_at AS group_updated_at
		FROM memberships m
		JOIN groups g ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at, m.id
	`

	var rows []membershipRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	memberships := make([]models.Membership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, models.Membership{
			ID:       row.ID,
			UserID:   row.UserID,
			GroupID:  row.GroupID,
			Role:     models.Role(row.Role),
			JoinedAt: row.JoinedAt,
			Group: models.Group{
				ID:          row.GroupID,
				Name:        row.GroupName,
				Description: row.GroupDescription,
				CreatedAt:   row.GroupCreatedAt,
				UpdatedAt:   row.GroupUpdatedAt,
			},
		})
	}

	return memberships, nil
}

// GetByUserAndGroup retrieves a single membership, nil when absent
func (r *MembershipRepository) GetByUserAndGroup(ctx context.Context, userID, groupID string) (*models.Membership, error) {
	query := `
		SELECT id, user_id, group_id, role, joined_at
		FROM memberships
		WHERE user_id = $1 AND group_id = $2
	`

	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, userID, groupID).Scan(
		&m.ID,
		&m.UserID,
		&m.GroupID,
		&m.Role,
		&m.JoinedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// ListMembersWithUsers returns all members of a group with user details for display
func (r *MembershipRepository) ListMembersWithUsers(ctx context.Context, groupID string) ([]models.MemberWithUser, error) {
	query := `
		SELECT m.id AS membership_id, m.user_id, u.name AS user_name,
		       u.email AS user_email, m.role, m.joined_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at, m.id
	`

	var rows []memberWithUserRow
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]models.MemberWithUser, 0, len(rows))
	for _, row := range rows {
		members = append(members, models.MemberWithUser{
			MembershipID: row.MembershipID,
			UserID:       row.UserID,
			UserName:     row.UserName,
			UserEmail:    row.UserEmail,
			Role:         models.Role(row.Role),
			JoinedAt:     row.JoinedAt,
		})
	}

	return members, nil
}

// AddMember adds a user to a group with the given role
func (r *MembershipRepository) AddMember(ctx context.Context, userID, groupID string, role models.Role) (*models.Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role: %q", role)
	}

	now := time.Now()
	m := &models.Membership{
		ID:       uuid.New().String(),
		UserID:   userID,
		GroupID:  groupID,
		Role:     role,
		JoinedAt: &now,
	}

	query := `
		INSERT INTO memberships (id, user_id, group_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query, m.ID, m.UserID, m.GroupID, m.Role, m.JoinedAt); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return m, nil
}

// UpdateRole changes a member's role within a group
func (r *MembershipRepository) UpdateRole(ctx context.Context, userID, groupID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role: %q", role)
	}

	query := `
		UPDATE memberships SET role = $1
		WHERE user_id = $2 AND group_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, role, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("membership not found for user %s in group %s", userID, groupID)
	}

	return nil
}

// RemoveMember deletes a user's membership in a group
func (r *MembershipRepository) RemoveMember(ctx context.Context, userID, groupID string) error {
	query := `DELETE FROM memberships WHERE user_id = $1 AND group_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("membership not found for user %s in group %s", userID, groupID)
	}

	return nil
}

// CountOwners returns the number of OWNER members in a group. Used to prevent
// removing or demoting the last owner.
func (r *MembershipRepository) CountOwners(ctx context.Context, groupID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM memberships WHERE group_id = $1 AND role = 'OWNER'`
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}
