// Package models - membership.go defines the Membership model (a user's association
// with one group, carrying a role) and the closed Role enumeration.
package models

import (
	"fmt"
	"time"
)

// Role is a closed enumeration of membership roles. Adding a role requires
// updating ParseRole, AllRoles, and the exhaustive switch in
// internal/permissions so the change is compile-time visible.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
	RoleViewer  Role = "VIEWER"
	RoleVisitor Role = "VISITOR"
)

// AllRoles lists every valid role, most privileged first.
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleUser, RoleViewer, RoleVisitor}

// ParseRole converts a string to a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleManager, RoleUser, RoleViewer, RoleVisitor:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Valid reports whether the role is a member of the closed enumeration.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Membership represents a user's membership in a group with a role.
// Each membership belongs to exactly one user and references exactly one group.
type Membership struct {
	ID       string     `json:"id"`
	UserID   string     `json:"-"`
	GroupID  string     `json:"-"`
	Role     Role       `json:"role"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
	Group    Group      `json:"group"`
}

// MemberWithUser includes user details for a group's member list views
type MemberWithUser struct {
	MembershipID string     `json:"membership_id"`
	UserID       string     `json:"user_id"`
	UserName     string     `json:"user_name"`
	UserEmail    string     `json:"user_email"`
	Role         Role       `json:"role"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
}

// Activity represents one entry in a group's activity log
type Activity struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
