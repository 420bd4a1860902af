// Package domain contains core domain types for the academy assistant.
package domain

import (
	"time"
)

// Role values stored on a profile.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Profile is the public summary of an academy member.
type Profile struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstName returns the first word of the full name, or "" when unknown.
func (p *Profile) FirstName() string {
	if p == nil {
		return ""
	}
	for i, r := range p.FullName {
		if r == ' ' {
			return p.FullName[:i]
		}
	}
	return p.FullName
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
