package models

import "time"

// Photo is an opaque reference to an uploaded picture
type Photo struct {
	FileID  string `json:"file_id"`
	Caption string `json:"caption,omitempty"`
}

// Value is a collected answer. A nil *Value means the field was skipped.
type Value struct {
	Text  string `json:"text,omitempty"`
	Photo *Photo `json:"photo,omitempty"`
}

// FieldValue is a single named answer, kept in the order the flow declared it
type FieldValue struct {
	Name  string `json:"name"`
	Value *Value `json:"value"`
}

// Submitter identifies the user who sent a submission
type Submitter struct {
	ChatID    int64  `json:"chat_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Submission is a finalized record awaiting moderation
type Submission struct {
	ID                 string
	Kind               string
	TypeTag            string
	Fields             []FieldValue
	Submitter          Submitter
	SubmittedAt        time.Time
	ModeratorMessageID int
}

// Field returns the value stored under name, or nil if absent or skipped
func (s *Submission) Field(name string) *Value {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Text returns the text of a field, or an empty string
func (s *Submission) Text(name string) string {
	if v := s.Field(name); v != nil {
		return v.Text
	}
	return ""
}

// Photo returns the first photo attached to any field
func (s *Submission) Photo() *Photo {
	for _, f := range s.Fields {
		if f.Value != nil && f.Value.Photo != nil {
			return f.Value.Photo
		}
	}
	return nil
}

// DecisionAction is the outcome a moderator chose
type DecisionAction string

const (
	ActionApproved     DecisionAction = "approved"
	ActionRejected     DecisionAction = "rejected"
	ActionAcknowledged DecisionAction = "acknowledged"
)

// Decision is an audit record of a moderation outcome
type Decision struct {
	SubmissionID    string
	Kind            string
	TypeTag         string
	Action          DecisionAction
	Reason          string
	ModeratorID     int64
	SubmitterChatID int64
	DecidedAt       time.Time
}

// DecisionStat represents decision counts per action
type DecisionStat struct {
	Action DecisionAction
	Count  int
}
