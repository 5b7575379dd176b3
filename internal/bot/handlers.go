package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// HandleUpdate processes a single update. Dispatcher workers call it.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	if update.Message != nil && update.Message.From != nil && update.Message.Chat != nil {
		b.handleMessage(update.Message)
	}

	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Int64("chat_id", message.Chat.ID),
			)
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.", nil)
		}
	}()

	ctx := context.Background()
	userID := message.From.ID

	// A moderator with an open rejection answers with the reason in the same chat.
	// A menu button there drops the rejection instead.
	if !message.IsCommand() && b.isModerator(userID) {
		if review := b.pendingReview(ctx, userID); review != nil && review.ChatID == message.Chat.ID {
			if !isMenuButton(message.Text) {
				b.handleRejectReason(ctx, message, review)
				return
			}
			b.dropReview(ctx, userID)
		}
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if b.handleMenuButton(ctx, message) {
		return
	}

	b.handleConversation(ctx, message)
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery",
				zap.Any("panic", r),
				zap.String("data", query.Data),
			)
		}
	}()

	if query.Message == nil || query.Message.Chat == nil {
		b.answerCallback(query.ID, "", false)
		return
	}

	ctx := context.Background()
	action, arg := splitData(query.Data)

	// Moderation controls answer the callback themselves
	switch action {
	case "approve", "reject", "reject_skip", "ack", "view":
		b.handleModerationCallback(ctx, query, action, arg)
		return
	}

	// Answer the callback query to remove loading state
	b.answerCallback(query.ID, "", false)

	switch action {
	case "add_type":
		b.handleAddTypeCallback(query, arg)
	case "add_method":
		b.handleAddMethodCallback(ctx, query, arg)
	case "add_back":
		b.handleAddBackCallback(query)
	case "add_cancel", "cancel":
		b.handleCancelCallback(ctx, query)
	case "add_confirm":
		b.handleConfirmCallback(ctx, query)
	case "add_restart":
		b.handleRestartCallback(ctx, query, arg)
	case "adv_type", "feedback_type", "report_type":
		b.handlePickedTypeCallback(ctx, query, action, arg)
	case "faq_item", "faq_back", "faq_done":
		b.handleFAQCallback(query, action, arg)
	case "menu":
		b.showMainMenu(query.Message.Chat.ID, "Choose an action 👇")
	default:
		b.logger.Debug("Unknown callback", zap.String("data", query.Data))
	}
}
