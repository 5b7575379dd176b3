package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/faq"
	"olekmabot/internal/flow"
	"olekmabot/internal/publish"
	"olekmabot/internal/session"
	"olekmabot/internal/storage"
)

// Sender is the part of the Telegram API the handlers talk to.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api    Sender
	client *tgbotapi.BotAPI // nil in tests; used for polling and webhook setup
	token  string

	db        storage.Storage
	engine    *flow.Engine
	catalog   *flow.Catalog
	reviews   session.Store[*Review]
	publisher publish.Publisher
	faq       []faq.Item

	moderatorChatID int64
	moderators      map[int64]bool
	links           Links

	dispatcher *Dispatcher
	janitors   []func(ctx context.Context) error

	newID  func() string
	now    func() time.Time
	logger *zap.Logger
}

// Links are the site pages the bot points users to
type Links struct {
	Site     string
	Register string
	Login    string
}

// Review is a moderator's pending rejection awaiting a reason.
// Reviews are keyed by the moderator's user id, apart from submitter sessions.
type Review struct {
	SubmissionID string    `json:"submission_id"`
	ChatID       int64     `json:"chat_id"`
	MessageID    int       `json:"message_id"`
	StartedAt    time.Time `json:"started_at"`
}

// Settings configures a Bot
type Settings struct {
	ModeratorChatID  int64
	ModeratorUserIDs []int64
	Links            Links
	SessionTTL       time.Duration
	DispatchWorkers  int
	FAQ              []faq.Item
}
