package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
	"olekmabot/internal/publish"
	"olekmabot/internal/session"
	"olekmabot/internal/storage"
)

// NewBot creates a new Telegram bot
func NewBot(token string, db storage.Storage, publisher publish.Publisher, settings Settings, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := NewWithSender(api, db, publisher, settings, logger)
	b.client = api
	b.token = token
	return b, nil
}

// NewWithSender wires a bot around any Sender. Without a client the bot
// cannot poll or register a webhook.
func NewWithSender(api Sender, db storage.Storage, publisher publish.Publisher, settings Settings, logger *zap.Logger) *Bot {
	sessions := session.NewMemory[*flow.Session](settings.SessionTTL)
	reviews := session.NewMemory[*Review](settings.SessionTTL)
	catalog := flow.DefaultCatalog()

	moderators := make(map[int64]bool)
	moderators[settings.ModeratorChatID] = true
	for _, id := range settings.ModeratorUserIDs {
		moderators[id] = true
	}

	b := &Bot{
		api:             api,
		db:              db,
		engine:          flow.NewEngine(sessions, catalog),
		catalog:         catalog,
		reviews:         reviews,
		publisher:       publisher,
		faq:             settings.FAQ,
		moderatorChatID: settings.ModeratorChatID,
		moderators:      moderators,
		links:           settings.Links,
		janitors:        []func(ctx context.Context) error{sessions.Run, reviews.Run},
		newID:           func() string { return uuid.NewString() },
		now:             time.Now,
		logger:          logger,
	}

	workers := settings.DispatchWorkers
	if workers < 1 {
		workers = 1
	}
	b.dispatcher = NewDispatcher(workers, 64, b.HandleUpdate, logger)
	return b
}
