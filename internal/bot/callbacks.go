package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
)

// pickerKinds maps a type picker callback prefix back to its flow
var pickerKinds = map[string]flow.Kind{
	"adv_type":      flow.KindAdvertising,
	"feedback_type": flow.KindFeedback,
	"report_type":   flow.KindReport,
}

// handleAddTypeCallback asks how the chosen content type should be added
func (b *Bot) handleAddTypeCallback(query *tgbotapi.CallbackQuery, tag string) {
	t, ok := b.catalog.Type(flow.KindContent, tag)
	if !ok {
		b.logger.Warn("Unknown content type", zap.String("type", tag))
		return
	}

	text := fmt.Sprintf(`%s <b>%s</b>

How do you want to add it?

👤 <b>Yourself</b>: register on the site and publish it from your account
📨 <b>Through the administrator</b>: answer a few questions here and we will publish it`, t.Icon, t.Name)

	keyboard := methodKeyboard(tag)
	b.editMessage(query.Message.Chat.ID, query.Message.MessageID, text, &keyboard)
}

// handleAddMethodCallback handles add_method:<type>:<self|admin>
func (b *Bot) handleAddMethodCallback(ctx context.Context, query *tgbotapi.CallbackQuery, arg string) {
	tag, method, _ := strings.Cut(arg, ":")
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	switch method {
	case "self":
		text := fmt.Sprintf(`👤 <b>Add it yourself</b>

1. Register on <a href="%s">the site</a>
2. Log in to your account
3. Fill in the form and publish

After a quick check your material appears on the site.`, b.links.Site)
		keyboard := selfServiceKeyboard(b.links)
		b.editMessage(chatID, messageID, text, &keyboard)
	case "admin":
		b.startFlow(ctx, chatID, messageID, flow.KindContent, tag)
	default:
		b.logger.Warn("Unknown add method", zap.String("data", query.Data))
	}
}

// handleAddBackCallback returns to the content type picker
func (b *Bot) handleAddBackCallback(query *tgbotapi.CallbackQuery) {
	f, _ := b.catalog.Flow(flow.KindContent)
	keyboard := typePickerKeyboard(f)
	b.editMessage(query.Message.Chat.ID, query.Message.MessageID, pickerIntro[flow.KindContent], &keyboard)
}

func (b *Bot) handleCancelCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	b.endSession(ctx, chatID)
	b.editMessage(chatID, query.Message.MessageID, "❌ Cancelled.", nil)
	b.showMainMenu(chatID, "Choose an action 👇")
}

// handleConfirmCallback submits a session waiting at the summary
func (b *Bot) handleConfirmCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID

	s, err := b.engine.Confirm(ctx, chatID)
	if errors.Is(err, flow.ErrNotReady) {
		b.showMainMenu(chatID, "Nothing to submit. Start again from the menu 👇")
		return
	}
	if err != nil {
		b.logger.Error("Failed to load session for confirm", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendText(chatID, "⚠️ Something went wrong. Please try again.", nil)
		return
	}

	b.complete(ctx, s, query.From)
}

// handleRestartCallback clears the answers and asks the first question again
func (b *Bot) handleRestartCallback(ctx context.Context, query *tgbotapi.CallbackQuery, tag string) {
	chatID := query.Message.Chat.ID

	out, err := b.engine.Begin(ctx, chatID, flow.KindContent, tag)
	if err != nil {
		b.logger.Error("Failed to restart flow", zap.Error(err), zap.String("type", tag))
		b.showMainMenu(chatID, "⚠️ Could not start over. Choose an action 👇")
		return
	}

	b.sendText(chatID, "🔄 <b>Starting over</b>\n\n"+out.Reply, cancelKeyboard(flow.KindContent))
}

// handlePickedTypeCallback starts a flow from its subtype picker
func (b *Bot) handlePickedTypeCallback(ctx context.Context, query *tgbotapi.CallbackQuery, action, tag string) {
	kind, ok := pickerKinds[action]
	if !ok {
		return
	}
	b.startFlow(ctx, query.Message.Chat.ID, query.Message.MessageID, kind, tag)
}

// handleFAQCallback navigates the FAQ in place
func (b *Bot) handleFAQCallback(query *tgbotapi.CallbackQuery, action, arg string) {
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	switch action {
	case "faq_item":
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(b.faq) {
			b.logger.Warn("Unknown FAQ item", zap.String("data", query.Data))
			return
		}
		item := b.faq[i]
		keyboard := faqAnswerKeyboard()
		b.editMessage(chatID, messageID, fmt.Sprintf("❓ <b>%s</b>\n\n%s", escape(item.Question), item.Answer), &keyboard)
	case "faq_back":
		keyboard := faqKeyboard(b.faq)
		b.editMessage(chatID, messageID, "❓ <b>Frequently asked questions</b>\n\nChoose a question:", &keyboard)
	case "faq_done":
		b.editMessage(chatID, messageID, "❓ <b>Frequently asked questions</b>", nil)
		b.showMainMenu(chatID, "Choose an action 👇")
	}
}
