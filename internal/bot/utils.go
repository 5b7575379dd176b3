package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/models"
)

// sendMessage sends an HTML message. Failures are logged, never returned.
func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) (tgbotapi.Message, bool) {
	if b.api == nil {
		return tgbotapi.Message{}, false // For testing
	}

	if msg.ParseMode == "" {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true

	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID),
		)
		return tgbotapi.Message{}, false
	}
	return sent, true
}

// sendText is a shorthand for a message with an optional keyboard
func (b *Bot) sendText(chatID int64, text string, markup interface{}) (tgbotapi.Message, bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return b.sendMessage(msg)
}

// editMessage replaces the text of a message. A nil markup removes the inline keyboard.
func (b *Bot) editMessage(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if b.api == nil {
		return // For testing
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = markup

	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
		)
	}
}

// sendPhoto sends a stored photo by file id
func (b *Bot) sendPhoto(chatID int64, fileID, caption string) {
	if b.api == nil {
		return // For testing
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("Failed to send photo",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

// answerCallback removes the loading state of a button, optionally with a notice
func (b *Bot) answerCallback(queryID, text string, alert bool) {
	if b.api == nil {
		return // For testing
	}

	callback := tgbotapi.NewCallback(queryID, text)
	callback.ShowAlert = alert
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

// splitData splits a callback payload into its action and argument
func splitData(data string) (string, string) {
	action, arg, _ := strings.Cut(data, ":")
	return action, arg
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, text)
}

func (b *Bot) isModerator(userID int64) bool {
	return b.moderators[userID]
}

// endSession drops the chat's session. Failures are logged.
func (b *Bot) endSession(ctx context.Context, chatID int64) {
	if err := b.engine.End(ctx, chatID); err != nil {
		b.logger.Warn("Failed to end session", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) showMainMenu(chatID int64, text string) {
	b.sendText(chatID, text, mainMenuKeyboard())
}

// submissionTitle picks the most recognisable field of a submission
func submissionTitle(sub *models.Submission) string {
	for _, name := range []string{"name", "organization", "topic", "hashtag", "message", "description"} {
		if t := sub.Text(name); t != "" {
			return t
		}
	}
	return sub.Kind
}
