// Package model defines the billing domain entities and their lifecycle
// invariants: contacts, creditors, recurring schedules, and concrete bills.
package model

import (
	"strings"
	"time"
)

// Contact is a bill recipient.
type Contact struct {
	CreatedAt time.Time
	Name      string
	Email     string
	ID        int64
}

// Validate checks the contact's fields.
func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return validationErr("name", "cannot be empty")
	}
	if !strings.Contains(c.Email, "@") {
		return validationErr("email", "must be a valid email address")
	}
	return nil
}
