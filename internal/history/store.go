// Package history persists past consultations per user and prunes them
// after a retention period.
package history

import (
	"context"
	"errors"
	"time"
)

// DefaultListLimit caps how many consultations List returns.
const DefaultListLimit = 50

var (
	// ErrNotFound is returned when a consultation does not exist or belongs
	// to another user.
	ErrNotFound = errors.New("consultation not found")

	// ErrInvalidConsultation is returned when required fields are missing.
	ErrInvalidConsultation = errors.New("consultation requires user, issue and advice")
)

// Consultation is one stored question and its advice.
type Consultation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Issue     string    `json:"issue"`
	Advice    string    `json:"advice"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the consultation repository.
type Store interface {
	// Save assigns an ID and timestamp when missing and stores c.
	Save(ctx context.Context, c Consultation) (Consultation, error)

	// List returns the user's consultations, newest first.
	List(ctx context.Context, userID string, limit int) ([]Consultation, error)

	// Delete removes one consultation owned by userID.
	Delete(ctx context.Context, userID, id string) error

	// PruneBefore deletes every consultation created before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
