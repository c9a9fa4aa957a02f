// Package models - group.go defines the Group model. A group is the uniform term for
// a household, a building-scoped team, or a community-scoped team — any entity a user
// can hold a membership in.
package models

import "time"

// Group represents a household, building team, or community team
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
