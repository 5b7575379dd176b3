package storage

import (
	"context"
	"errors"
	"time"

	"olekmabot/internal/models"
)

// ErrNotFound is returned when a submission is not in the moderation queue
var ErrNotFound = errors.New("submission not found")

// Storage defines the interface for the moderation queue and its audit log
type Storage interface {
	// Moderation queue operations
	SaveSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	SetModeratorMessage(ctx context.Context, id string, messageID int) error
	// DeleteSubmission removes an entry. Returns ErrNotFound if it was already gone.
	DeleteSubmission(ctx context.Context, id string) error
	// ListPending returns the oldest open entries first
	ListPending(ctx context.Context, limit int) ([]models.Submission, error)
	CountPending(ctx context.Context) (int, error)

	// Decision operations
	RecordDecision(ctx context.Context, d models.Decision) error
	// GetDecisionStats returns decision counts per action since the given time
	GetDecisionStats(ctx context.Context, since time.Time) ([]models.DecisionStat, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
