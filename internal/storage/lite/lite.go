package lite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"olekmabot/internal/models"
	"olekmabot/internal/storage"
)

// PendingSubmission is the row form of an open moderation entry
type PendingSubmission struct {
	ID                 string `gorm:"primaryKey"`
	Kind               string
	TypeTag            string
	Fields             string
	SubmitterChatID    int64
	SubmitterUsername  string
	SubmitterFirstName string
	SubmittedAt        time.Time `gorm:"index"`
	ModeratorMessageID int
}

// Decision is the row form of an audit record
type Decision struct {
	ID              uint `gorm:"primaryKey;autoIncrement"`
	SubmissionID    string
	Kind            string
	TypeTag         string
	Action          string `gorm:"index"`
	Reason          string
	ModeratorID     int64
	SubmitterChatID int64
	DecidedAt       time.Time `gorm:"index"`
}

// SQLiteDB stores the moderation queue in a local SQLite file
type SQLiteDB struct {
	db *gorm.DB
}

// NewSQLiteDB opens (or creates) the database at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Initialize creates or updates the tables
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&PendingSubmission{}, &Decision{}); err != nil {
		return fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return nil
}

// SaveSubmission inserts or replaces a submission
func (s *SQLiteDB) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	row, err := toRow(sub)
	if err != nil {
		return err
	}
	if res := s.db.WithContext(ctx).Save(&row); res.Error != nil {
		return fmt.Errorf("failed to save submission: %w", res.Error)
	}
	return nil
}

// GetSubmission returns a pending submission by id
func (s *SQLiteDB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var row PendingSubmission
	res := s.db.WithContext(ctx).Where("id = ?", id).First(&row)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get submission: %w", res.Error)
	}
	return fromRow(row)
}

// SetModeratorMessage records which moderator message announced the submission
func (s *SQLiteDB) SetModeratorMessage(ctx context.Context, id string, messageID int) error {
	res := s.db.WithContext(ctx).Model(&PendingSubmission{}).Where("id = ?", id).Update("moderator_message_id", messageID)
	if res.Error != nil {
		return fmt.Errorf("failed to set moderator message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteSubmission removes an entry from the queue
func (s *SQLiteDB) DeleteSubmission(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&PendingSubmission{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete submission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPending returns open entries, oldest first
func (s *SQLiteDB) ListPending(ctx context.Context, limit int) ([]models.Submission, error) {
	q := s.db.WithContext(ctx).Order("submitted_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []PendingSubmission
	if res := q.Find(&rows); res.Error != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", res.Error)
	}

	subs := make([]models.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// CountPending returns the number of open entries
func (s *SQLiteDB) CountPending(ctx context.Context) (int, error) {
	var count int64
	if res := s.db.WithContext(ctx).Model(&PendingSubmission{}).Count(&count); res.Error != nil {
		return 0, fmt.Errorf("failed to count pending submissions: %w", res.Error)
	}
	return int(count), nil
}

// RecordDecision appends a decision to the audit log
func (s *SQLiteDB) RecordDecision(ctx context.Context, d models.Decision) error {
	res := s.db.WithContext(ctx).Create(&Decision{
		SubmissionID:    d.SubmissionID,
		Kind:            d.Kind,
		TypeTag:         d.TypeTag,
		Action:          string(d.Action),
		Reason:          d.Reason,
		ModeratorID:     d.ModeratorID,
		SubmitterChatID: d.SubmitterChatID,
		DecidedAt:       d.DecidedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to record decision: %w", res.Error)
	}
	return nil
}

// GetDecisionStats returns decision counts per action since the given time
func (s *SQLiteDB) GetDecisionStats(ctx context.Context, since time.Time) ([]models.DecisionStat, error) {
	var rows []struct {
		Action string
		Count  int
	}
	res := s.db.WithContext(ctx).Model(&Decision{}).
		Select("action, count(*) AS count").
		Where("decided_at >= ?", since).
		Group("action").
		Order("count DESC, action").
		Scan(&rows)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get decision stats: %w", res.Error)
	}

	stats := make([]models.DecisionStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, models.DecisionStat{Action: models.DecisionAction(r.Action), Count: r.Count})
	}
	return stats, nil
}

// Close closes the underlying connection pool
func (s *SQLiteDB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(sub *models.Submission) (PendingSubmission, error) {
	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return PendingSubmission{}, fmt.Errorf("failed to encode fields: %w", err)
	}
	return PendingSubmission{
		ID:                 sub.ID,
		Kind:               sub.Kind,
		TypeTag:            sub.TypeTag,
		Fields:             string(fields),
		SubmitterChatID:    sub.Submitter.ChatID,
		SubmitterUsername:  sub.Submitter.Username,
		SubmitterFirstName: sub.Submitter.FirstName,
		SubmittedAt:        sub.SubmittedAt,
		ModeratorMessageID: sub.ModeratorMessageID,
	}, nil
}

func fromRow(row PendingSubmission) (*models.Submission, error) {
	sub := &models.Submission{
		ID:      row.ID,
		Kind:    row.Kind,
		TypeTag: row.TypeTag,
		Submitter: models.Submitter{
			ChatID:    row.SubmitterChatID,
			Username:  row.SubmitterUsername,
			FirstName: row.SubmitterFirstName,
		},
		SubmittedAt:        row.SubmittedAt,
		ModeratorMessageID: row.ModeratorMessageID,
	}
	if err := json.Unmarshal([]byte(row.Fields), &sub.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", row.ID, err)
	}
	return sub, nil
}
