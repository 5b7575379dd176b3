package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
	"olekmabot/internal/models"
)

// handoff freezes a finished session, queues it and notifies the moderator.
// If the queue write fails the session is kept so the user can submit again.
// Once queued, the session ends even if the notification could not be delivered.
func (b *Bot) handoff(ctx context.Context, s *flow.Session, from *tgbotapi.User) {
	f, ok := b.catalog.Flow(s.Kind)
	if !ok {
		b.endSession(ctx, s.ChatID)
		return
	}

	submitter := models.Submitter{ChatID: s.ChatID}
	if from != nil {
		submitter.Username = from.UserName
		submitter.FirstName = from.FirstName
	}
	sub := s.Submission(b.newID(), submitter, b.now())

	if err := b.db.SaveSubmission(ctx, sub); err != nil {
		b.logger.Error("Failed to save submission",
			zap.Error(err),
			zap.Int64("chat_id", s.ChatID),
			zap.String("kind", sub.Kind),
		)
		b.sendText(s.ChatID, "⚠️ Could not send your data right now. Send <code>submit</code> again in a minute.", nil)
		return
	}

	b.logger.Info("Submission queued",
		zap.String("submission_id", sub.ID),
		zap.String("kind", sub.Kind),
		zap.String("type", sub.TypeTag),
		zap.Int64("chat_id", s.ChatID),
	)

	if sent, ok := b.sendText(b.moderatorChatID, b.catalog.Notification(sub), reviewKeyboard(f, sub.ID)); ok {
		if err := b.db.SetModeratorMessage(ctx, sub.ID, sent.MessageID); err != nil {
			b.logger.Warn("Failed to store moderator message id", zap.Error(err), zap.String("submission_id", sub.ID))
		}
	} else {
		b.logger.Warn("Moderator was not notified, submission stays queued", zap.String("submission_id", sub.ID))
	}

	if p := sub.Photo(); p != nil {
		b.sendPhoto(b.moderatorChatID, p.FileID, fmt.Sprintf("📷 Photo from %s", flow.SubmitterHandle(sub.Submitter)))
	}

	b.endSession(ctx, s.ChatID)
	b.sendText(s.ChatID, f.Thanks, mainMenuKeyboard())
}
