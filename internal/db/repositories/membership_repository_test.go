package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/hearthhub/hearthhub/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var membershipListCols = []string{
	"id", "user_id", "group_id", "role", "joined_at",
	"group_name", "group_description", "group_created_at", "group_updated_at",
}

var membershipCols = []string{"id", "user_id", "group_id", "role", "joined_at"}

var memberWithUserCols = []string{
	"membership_id", "user_id", "user_name", "user_email", "role", "joined_at",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errDB = errors.New("db error")

func newMembershipRepo(t *testing.T) (*MembershipRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func twoMembershipRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(membershipListCols).
		AddRow("m1", "user-1", "g1", "OWNER", now, "Smith Home", nil, now, now).
		AddRow("m2", "user-1", "g2", "USER", now.Add(time.Hour), "Building A", "shared spaces", now, now)
}

// ---------------------------------------------------------------------------
// ListForUser
// ---------------------------------------------------------------------------

func TestListForUser_EmbedsGroups(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships m.*JOIN groups g").
		WithArgs("user-1").
		WillReturnRows(twoMembershipRows())

	memberships, err := repo.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("got %d memberships, want 2", len(memberships))
	}
	if memberships[0].Group.Name != "Smith Home" {
		t.Errorf("Group.Name = %s, want Smith Home", memberships[0].Group.Name)
	}
	if memberships[0].Role != models.RoleOwner {
		t.Errorf("Role = %s, want OWNER", memberships[0].Role)
	}
	if memberships[1].Group.ID != "g2" {
		t.Errorf("Group.ID = %s, want g2", memberships[1].Group.ID)
	}
	if memberships[1].Group.Description == nil || *memberships[1].Group.Description != "shared spaces" {
		t.Error("second membership lost its group description")
	}
}

func TestListForUser_Empty(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships m").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(membershipListCols))

	memberships, err := repo.ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memberships) != 0 {
		t.Errorf("got %d memberships, want 0", len(memberships))
	}
}

func TestListForUser_DBError(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships m").
		WillReturnError(errDB)

	if _, err := repo.ListForUser(context.Background(), "user-1"); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetByUserAndGroup
// ---------------------------------------------------------------------------

func TestGetByUserAndGroup_Found(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships.*WHERE user_id").
		WithArgs("user-1", "g1").
		WillReturnRows(sqlmock.NewRows(membershipCols).
			AddRow("m1", "user-1", "g1", "ADMIN", time.Now()))

	m, err := repo.GetByUserAndGroup(context.Background(), "user-1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected membership, got nil")
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("Role = %s, want ADMIN", m.Role)
	}
}

func TestGetByUserAndGroup_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships.*WHERE user_id").
		WithArgs("user-1", "g-missing").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	m, err := repo.GetByUserAndGroup(context.Background(), "user-1", "g-missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil, got %+v", m)
	}
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func TestAddMember_Success(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("INSERT INTO memberships").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m, err := repo.AddMember(context.Background(), "user-2", "g1", models.RoleUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == "" {
		t.Error("AddMember did not assign an id")
	}
	if m.JoinedAt == nil {
		t.Error("AddMember did not set joined_at")
	}
}

func TestAddMember_RejectsUnknownRole(t *testing.T) {
	repo, _ := newMembershipRepo(t)

	if _, err := repo.AddMember(context.Background(), "user-2", "g1", models.Role("SUPERUSER")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestUpdateRole_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("UPDATE memberships SET role").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateRole(context.Background(), "user-9", "g1", models.RoleViewer); err == nil {
		t.Error("expected error for missing membership")
	}
}

func TestRemoveMember_Success(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("DELETE FROM memberships").
		WithArgs("user-2", "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveMember(context.Background(), "user-2", "g1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCountOwners(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM memberships").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountOwners(context.Background(), "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

// ---------------------------------------------------------------------------
// ListMembersWithUsers
// ---------------------------------------------------------------------------

func TestListMembersWithUsers(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships m.*JOIN users u").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(memberWithUserCols).
			AddRow("m1", "user-1", "Alice", "alice@example.com", "OWNER", time.Now()))

	members, err := repo.ListMembersWithUsers(context.Background(), "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("got %d members, want 1", len(members))
	}
	if members[0].UserEmail != "alice@example.com" {
		t.Errorf("UserEmail = %s", members[0].UserEmail)
	}
}
