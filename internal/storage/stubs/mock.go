package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"olekmabot/internal/models"
	"olekmabot/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface.
// It is the default backend; entries are lost on restart.
type MockDB struct {
	mu          sync.RWMutex
	submissions map[string]models.Submission
	decisions   []models.Decision
}

// NewMockDB creates a new in-memory database
func NewMockDB() *MockDB {
	return &MockDB{
		submissions: make(map[string]models.Submission),
		decisions:   make([]models.Decision, 0),
	}
}

// Initialize is a no-op for the in-memory backend
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// SaveSubmission stores a submission under its id
func (m *MockDB) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submissions[sub.ID] = cloneSubmission(*sub)
	return nil
}

// GetSubmission returns a copy of the stored submission
func (m *MockDB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.submissions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := cloneSubmission(sub)
	return &out, nil
}

// SetModeratorMessage records which moderator message announced the submission
func (m *MockDB) SetModeratorMessage(ctx context.Context, id string, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.submissions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sub.ModeratorMessageID = messageID
	m.submissions[id] = sub
	return nil
}

// DeleteSubmission removes an entry from the queue
func (m *MockDB) DeleteSubmission(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.submissions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.submissions, id)
	return nil
}

// ListPending returns open entries, oldest first
func (m *MockDB) ListPending(ctx context.Context, limit int) ([]models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]models.Submission, 0, len(m.submissions))
	for _, sub := range m.submissions {
		subs = append(subs, cloneSubmission(sub))
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
	})

	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

// CountPending returns the number of open entries
func (m *MockDB) CountPending(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.submissions), nil
}

// RecordDecision appends a decision to the audit log
func (m *MockDB) RecordDecision(ctx context.Context, d models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decisions = append(m.decisions, d)
	return nil
}

// GetDecisionStats returns decision counts per action since the given time
func (m *MockDB) GetDecisionStats(ctx context.Context, since time.Time) ([]models.DecisionStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.DecisionAction]int)
	for _, d := range m.decisions {
		if d.DecidedAt.Before(since) {
			continue
		}
		counts[d.Action]++
	}

	stats := make([]models.DecisionStat, 0, len(counts))
	for action, count := range counts {
		stats = append(stats, models.DecisionStat{Action: action, Count: count})
	}

	// Sort by count descending, then action name
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Action < stats[j].Action
		}
		return stats[i].Count > stats[j].Count
	})
	return stats, nil
}

// Close is a no-op for the in-memory backend
func (m *MockDB) Close() error {
	return nil
}

func cloneSubmission(sub models.Submission) models.Submission {
	sub.Fields = append([]models.FieldValue(nil), sub.Fields...)
	return sub
}
