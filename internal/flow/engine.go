package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"olekmabot/internal/models"
	"olekmabot/internal/session"
)

var (
	ErrUnknownFlow = errors.New("unknown flow or type")
	ErrNotReady    = errors.New("session is not awaiting confirmation")
)

// Session is the progress of one chat through a flow
type Session struct {
	ChatID    int64                   `json:"chat_id"`
	Kind      Kind                    `json:"kind"`
	TypeTag   string                  `json:"type_tag,omitempty"`
	Step      Field                   `json:"step"`
	Sequence  []Field                 `json:"sequence"`
	Fields    map[Field]*models.Value `json:"fields"`
	MessageID int                     `json:"message_id,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Position returns the 1-based index of the current step, or 0 at confirm
func (s *Session) Position() int {
	for i, f := range s.Sequence {
		if f == s.Step {
			return i + 1
		}
	}
	return 0
}

// Snapshot returns the collected fields in declared order. Skipped fields keep a nil value.
func (s *Session) Snapshot() []models.FieldValue {
	out := make([]models.FieldValue, 0, len(s.Fields))
	for _, f := range s.Sequence {
		v, ok := s.Fields[f]
		if !ok {
			continue
		}
		out = append(out, models.FieldValue{Name: string(f), Value: v})
	}
	return out
}

// Submission freezes the session into a record for moderation
func (s *Session) Submission(id string, from models.Submitter, at time.Time) *models.Submission {
	return &models.Submission{
		ID:          id,
		Kind:        string(s.Kind),
		TypeTag:     s.TypeTag,
		Fields:      s.Snapshot(),
		Submitter:   from,
		SubmittedAt: at,
	}
}

// PhotoSize is one resolution variant of an uploaded photo
type PhotoSize struct {
	FileID   string
	Width    int
	Height   int
	FileSize int
}

// Input is a single user event fed to the engine
type Input struct {
	Text    string
	Photos  []PhotoSize
	Caption string
}

// Status tells the caller what Advance did
type Status int

const (
	StatusNoSession Status = iota
	StatusIgnored
	StatusInvalid
	StatusNext
	StatusConfirm
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusNoSession:
		return "no_session"
	case StatusIgnored:
		return "ignored"
	case StatusInvalid:
		return "invalid"
	case StatusNext:
		return "next"
	case StatusConfirm:
		return "confirm"
	case StatusComplete:
		return "complete"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome is the result of feeding an event to the engine
type Outcome struct {
	Status  Status
	Session *Session
	Reply   string
}

var (
	skipTokens    = []string{"-", "no", "нет", "skip"}
	submitTokens  = []string{"submit", "send", "отправить"}
	restartTokens = []string{"retry", "restart"}
)

// Engine walks sessions through the catalog's field sequences
type Engine struct {
	store   session.Store[*Session]
	catalog *Catalog
	now     func() time.Time
}

// NewEngine creates an engine over the given session repository
func NewEngine(store session.Store[*Session], catalog *Catalog) *Engine {
	return &Engine{
		store:   store,
		catalog: catalog,
		now:     time.Now,
	}
}

// Catalog returns the catalog the engine was built with
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Begin starts a new session at the first field, replacing any prior one
func (e *Engine) Begin(ctx context.Context, chatID int64, kind Kind, tag string) (Outcome, error) {
	t, ok := e.catalog.Type(kind, tag)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s/%s", ErrUnknownFlow, kind, tag)
	}

	s := &Session{
		ChatID:    chatID,
		Kind:      kind,
		TypeTag:   t.Tag,
		Step:      t.Fields[0],
		Sequence:  append([]Field(nil), t.Fields...),
		Fields:    make(map[Field]*models.Value),
		UpdatedAt: e.now(),
	}
	if err := e.store.Set(ctx, chatID, s); err != nil {
		return Outcome{}, fmt.Errorf("failed to save session: %w", err)
	}
	return Outcome{Status: StatusNext, Session: s, Reply: e.question(s)}, nil
}

// Get returns the active session of a chat, or nil
func (e *Engine) Get(ctx context.Context, chatID int64) (*Session, error) {
	s, err := e.store.Get(ctx, chatID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s, nil
}

// End removes the session of a chat
func (e *Engine) End(ctx context.Context, chatID int64) error {
	if err := e.store.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Restart clears collected fields and returns to the first field of the same type
func (e *Engine) Restart(ctx context.Context, chatID int64) (Outcome, error) {
	s, err := e.Get(ctx, chatID)
	if err != nil {
		return Outcome{}, err
	}
	if s == nil {
		return Outcome{Status: StatusNoSession}, nil
	}

	s.Fields = make(map[Field]*models.Value)
	s.Step = s.Sequence[0]
	s.UpdatedAt = e.now()
	if err := e.store.Set(ctx, chatID, s); err != nil {
		return Outcome{}, fmt.Errorf("failed to save session: %w", err)
	}
	return Outcome{
		Status:  StatusNext,
		Session: s,
		Reply:   "🔄 <b>Starting over</b>\n\n" + e.question(s),
	}, nil
}

// Confirm returns the session if it is ready to be handed off
func (e *Engine) Confirm(ctx context.Context, chatID int64) (*Session, error) {
	s, err := e.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Step != StepConfirm {
		return nil, ErrNotReady
	}
	return s, nil
}

// SetMessageID remembers the message the flow edits in place
func (e *Engine) SetMessageID(ctx context.Context, chatID int64, messageID int) error {
	s, err := e.Get(ctx, chatID)
	if err != nil || s == nil {
		return err
	}
	s.MessageID = messageID
	return e.store.Set(ctx, chatID, s)
}

// Advance validates an event against the current step and moves the session on
func (e *Engine) Advance(ctx context.Context, chatID int64, in Input) (Outcome, error) {
	s, err := e.Get(ctx, chatID)
	if err != nil {
		return Outcome{}, err
	}
	if s == nil {
		return Outcome{Status: StatusNoSession}, nil
	}

	if s.Step == StepConfirm {
		return e.confirmStep(ctx, s, in)
	}

	d := e.catalog.Describe(s.Step)
	value, ok, ignored := accept(d, in)
	if ignored {
		return Outcome{Status: StatusIgnored, Session: s}, nil
	}
	if !ok {
		return Outcome{Status: StatusInvalid, Session: s, Reply: d.Retry}, nil
	}

	field := s.Step
	s.Fields[field] = value
	s.UpdatedAt = e.now()
	ack := acknowledgement(d, value)

	next := nextField(s.Sequence, field)
	flow, _ := e.catalog.Flow(s.Kind)

	switch {
	case next != "":
		s.Step = next
		if err := e.store.Set(ctx, chatID, s); err != nil {
			return Outcome{}, fmt.Errorf("failed to save session: %w", err)
		}
		return Outcome{Status: StatusNext, Session: s, Reply: ack + "\n\n" + e.question(s)}, nil

	case flow != nil && flow.Confirm:
		s.Step = StepConfirm
		if err := e.store.Set(ctx, chatID, s); err != nil {
			return Outcome{}, fmt.Errorf("failed to save session: %w", err)
		}
		return Outcome{Status: StatusConfirm, Session: s, Reply: ack + "\n\n" + e.catalog.Summary(s)}, nil

	default:
		s.Step = StepConfirm
		if err := e.store.Set(ctx, chatID, s); err != nil {
			return Outcome{}, fmt.Errorf("failed to save session: %w", err)
		}
		return Outcome{Status: StatusComplete, Session: s, Reply: ack}, nil
	}
}

func (e *Engine) confirmStep(ctx context.Context, s *Session, in Input) (Outcome, error) {
	if len(in.Photos) > 0 {
		return Outcome{Status: StatusIgnored, Session: s}, nil
	}

	text := strings.ToLower(strings.TrimSpace(in.Text))
	switch {
	case oneOf(text, submitTokens):
		return Outcome{Status: StatusComplete, Session: s}, nil
	case oneOf(text, restartTokens):
		return e.Restart(ctx, s.ChatID)
	default:
		return Outcome{Status: StatusConfirm, Session: s, Reply: e.catalog.Summary(s)}, nil
	}
}

// accept applies the field rule to an event.
// It returns the value to store (nil for a skip), whether it passed, and whether the event is ignored entirely.
func accept(d Descriptor, in Input) (*models.Value, bool, bool) {
	if len(in.Photos) > 0 {
		if d.Rule != RulePhoto && d.Rule != RulePhotoOrText {
			return nil, false, true
		}
		best := Largest(in.Photos)
		return &models.Value{Photo: &models.Photo{FileID: best.FileID, Caption: in.Caption}}, true, false
	}

	text := strings.TrimSpace(in.Text)
	switch d.Rule {
	case RuleOptional:
		if text == "" || IsSkip(text) {
			return nil, true, false
		}
		return &models.Value{Text: text}, true, false
	case RulePhoto:
		if IsSkip(text) {
			return nil, true, false
		}
		return nil, false, false
	case RuleMinLength:
		if utf8.RuneCountInString(text) < d.MinLength {
			return nil, false, false
		}
	case RuleHashtag:
		if !strings.Contains(text, "#") {
			return nil, false, false
		}
	default:
		if text == "" {
			return nil, false, false
		}
	}
	return &models.Value{Text: text}, true, false
}

// Largest picks the variant with the most pixels, then the biggest file
func Largest(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		area, bestArea := p.Width*p.Height, best.Width*best.Height
		if area > bestArea || (area == bestArea && p.FileSize > best.FileSize) {
			best = p
		}
	}
	return best
}

// IsSkip reports whether text is a skip token
func IsSkip(text string) bool {
	return oneOf(strings.ToLower(strings.TrimSpace(text)), skipTokens)
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func nextField(seq []Field, current Field) Field {
	for i, f := range seq {
		if f == current && i+1 < len(seq) {
			return seq[i+1]
		}
	}
	return ""
}
