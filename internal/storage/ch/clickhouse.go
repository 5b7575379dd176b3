package ch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"olekmabot/internal/models"
	"olekmabot/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseDB struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

const submissionColumns = `id, kind, type_tag, fields, submitter_chat_id, submitter_username, submitter_first_name, submitted_at, moderator_message_id`

// SaveSubmission inserts a new row version for the submission.
// pending_submissions is a ReplacingMergeTree, so the newest version wins on FINAL reads.
func (db *ClickHouseDB) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	fields, err := json.Marshal(sub.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	err = db.conn.Exec(ctx, `INSERT INTO pending_submissions (`+submissionColumns+`, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Kind, sub.TypeTag, string(fields),
		sub.Submitter.ChatID, sub.Submitter.Username, sub.Submitter.FirstName,
		sub.SubmittedAt, int64(sub.ModeratorMessageID), uint64(db.now().UnixNano()))
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// GetSubmission returns the latest version of a pending submission
func (db *ClickHouseDB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+submissionColumns+` FROM pending_submissions FINAL WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	return scanSubmission(rows)
}

// SetModeratorMessage writes a new version carrying the moderator message id
func (db *ClickHouseDB) SetModeratorMessage(ctx context.Context, id string, messageID int) error {
	sub, err := db.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	sub.ModeratorMessageID = messageID
	return db.SaveSubmission(ctx, sub)
}

// DeleteSubmission removes every version of a submission with a lightweight delete
func (db *ClickHouseDB) DeleteSubmission(ctx context.Context, id string) error {
	var count uint64
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM pending_submissions WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check submission: %w", err)
	}
	if count == 0 {
		return storage.ErrNotFound
	}

	if err := db.conn.Exec(ctx, `DELETE FROM pending_submissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return nil
}

// ListPending returns open entries, oldest first
func (db *ClickHouseDB) ListPending(ctx context.Context, limit int) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM pending_submissions FINAL ORDER BY submitted_at, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// CountPending returns the number of open entries
func (db *ClickHouseDB) CountPending(ctx context.Context) (int, error) {
	var count uint64
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM pending_submissions FINAL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending submissions: %w", err)
	}
	return int(count), nil
}

// RecordDecision appends a decision to the audit log
func (db *ClickHouseDB) RecordDecision(ctx context.Context, d models.Decision) error {
	err := db.conn.Exec(ctx, `INSERT INTO decisions (submission_id, kind, type_tag, action, reason, moderator_id, submitter_chat_id, decided_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SubmissionID, d.Kind, d.TypeTag, string(d.Action), d.Reason, d.ModeratorID, d.SubmitterChatID, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// GetDecisionStats returns decision counts per action since the given time
func (db *ClickHouseDB) GetDecisionStats(ctx context.Context, since time.Time) ([]models.DecisionStat, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT action, count() AS c
		FROM decisions
		WHERE decided_at >= ?
		GROUP BY action
		ORDER BY c DESC, action`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DecisionStat
	for rows.Next() {
		var (
			action string
			count  uint64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("failed to scan decision stat: %w", err)
		}
		stats = append(stats, models.DecisionStat{Action: models.DecisionAction(action), Count: int(count)})
	}
	return stats, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(rows scanner) (*models.Submission, error) {
	var (
		sub       models.Submission
		fields    string
		messageID int64
	)
	err := rows.Scan(&sub.ID, &sub.Kind, &sub.TypeTag, &fields,
		&sub.Submitter.ChatID, &sub.Submitter.Username, &sub.Submitter.FirstName,
		&sub.SubmittedAt, &messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &sub.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", sub.ID, err)
	}
	sub.ModeratorMessageID = int(messageID)
	return &sub, nil
}
