package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
	"olekmabot/internal/models"
	"olekmabot/internal/publish"
	"olekmabot/internal/session"
	"olekmabot/internal/storage"
)

const alreadyProcessed = "ℹ️ This submission has already been processed."

// handleModerationCallback checks the moderator identity and routes the decision
func (b *Bot) handleModerationCallback(ctx context.Context, query *tgbotapi.CallbackQuery, action, id string) {
	if !b.isModerator(query.From.ID) {
		b.logger.Warn("Unauthorized moderation attempt",
			zap.Int64("user_id", query.From.ID),
			zap.String("username", query.From.UserName),
			zap.String("callback_data", query.Data),
		)
		b.answerCallback(query.ID, "⛔ Access denied", true)
		return
	}

	switch action {
	case "approve":
		b.handleApprove(ctx, query, id)
	case "reject":
		b.handleReject(ctx, query, id)
	case "reject_skip":
		b.answerCallback(query.ID, "", false)
		review := b.pendingReview(ctx, query.From.ID)
		if review == nil || review.SubmissionID != id {
			review = &Review{SubmissionID: id, ChatID: query.Message.Chat.ID, MessageID: query.Message.MessageID}
		}
		b.finishReject(ctx, query.From.ID, review, "")
	case "ack":
		b.handleAcknowledge(ctx, query, id)
	case "view":
		b.handleView(ctx, query, id)
	}
}

// loadForDecision fetches a queued submission, answering the callback when it is gone
func (b *Bot) loadForDecision(ctx context.Context, query *tgbotapi.CallbackQuery, id string) (*models.Submission, bool) {
	sub, err := b.db.GetSubmission(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.answerCallback(query.ID, alreadyProcessed, true)
		return nil, false
	}
	if err != nil {
		b.logger.Error("Failed to load submission", zap.Error(err), zap.String("submission_id", id))
		b.answerCallback(query.ID, "⚠️ Storage error, try again.", true)
		return nil, false
	}
	return sub, true
}

// handleApprove publishes content or confirms a claim, then closes the entry
func (b *Bot) handleApprove(ctx context.Context, query *tgbotapi.CallbackQuery, id string) {
	sub, ok := b.loadForDecision(ctx, query, id)
	if !ok {
		return
	}

	kind := flow.Kind(sub.Kind)
	f, ok := b.catalog.Flow(kind)
	if !ok {
		b.answerCallback(query.ID, "Unknown submission type", true)
		return
	}

	title := submissionTitle(sub)

	switch f.Review {
	case flow.ReviewPublish:
		b.answerCallback(query.ID, "⏳ Publishing…", false)

		category := ""
		if t, ok := b.catalog.Type(kind, sub.TypeTag); ok {
			category = t.Category
		}

		res, err := b.publisher.Publish(ctx, publish.NewArticle(sub, category))
		if err != nil {
			b.logger.Error("Failed to publish submission",
				zap.Error(err),
				zap.String("submission_id", sub.ID),
				zap.Bool("permanent", errors.Is(err, publish.ErrPermanent)),
			)
			b.sendText(query.Message.Chat.ID, fmt.Sprintf(
				"⚠️ Failed to publish «%s»: %s\n\nThe submission is kept. Press «Approve» to try again.",
				escape(title), escape(err.Error())), nil)
			return
		}

		b.logger.Info("Submission published",
			zap.String("submission_id", sub.ID),
			zap.String("article_id", res.ID),
			zap.String("url", res.URL),
		)

		b.closeNotification(query.Message.Chat.ID, query.Message.MessageID, sub,
			fmt.Sprintf("✅ <b>Approved and published</b>\n🔗 %s", escape(res.URL)))
		b.sendText(sub.Submitter.ChatID, fmt.Sprintf(
			"🎉 <b>Your submission has been published!</b>\n\n«%s»\n\n🔗 %s",
			escape(title), escape(res.URL)), nil)

	default:
		b.answerCallback(query.ID, "✅ Confirmed", false)
		b.closeNotification(query.Message.Chat.ID, query.Message.MessageID, sub, "✅ <b>Confirmed</b>")
		b.sendText(sub.Submitter.ChatID, f.Handled, nil)
	}

	b.finishDecision(ctx, sub, models.ActionApproved, "", query.From.ID)
}

// handleReject opens a review so the moderator can type a reason
func (b *Bot) handleReject(ctx context.Context, query *tgbotapi.CallbackQuery, id string) {
	sub, ok := b.loadForDecision(ctx, query, id)
	if !ok {
		return
	}

	review := &Review{
		SubmissionID: id,
		ChatID:       query.Message.Chat.ID,
		MessageID:    query.Message.MessageID,
		StartedAt:    b.now(),
	}
	if err := b.reviews.Set(ctx, query.From.ID, review); err != nil {
		b.logger.Error("Failed to open review", zap.Error(err), zap.String("submission_id", id))
		b.answerCallback(query.ID, "⚠️ Storage error, try again.", true)
		return
	}

	b.answerCallback(query.ID, "", false)
	b.sendText(query.Message.Chat.ID, fmt.Sprintf(
		"✍️ Enter the reason for rejecting «%s» or press «No comment»:",
		escape(flow.Preview(submissionTitle(sub), flow.AckPreviewLen))), rejectReasonKeyboard(id))
}

// pendingReview returns the moderator's open rejection, or nil
func (b *Bot) pendingReview(ctx context.Context, moderatorID int64) *Review {
	review, err := b.reviews.Get(ctx, moderatorID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			b.logger.Warn("Failed to load review", zap.Error(err))
		}
		return nil
	}
	return review
}

// dropReview abandons the moderator's open rejection; the entry stays queued
func (b *Bot) dropReview(ctx context.Context, moderatorID int64) {
	if err := b.reviews.Delete(ctx, moderatorID); err != nil && !errors.Is(err, session.ErrNotFound) {
		b.logger.Warn("Failed to drop review", zap.Error(err))
		return
	}
	b.logger.Info("Rejection abandoned", zap.Int64("moderator_id", moderatorID))
}

// handleRejectReason takes the moderator's next message as the rejection reason
func (b *Bot) handleRejectReason(ctx context.Context, message *tgbotapi.Message, review *Review) {
	reason := strings.TrimSpace(message.Text)
	if reason == "" {
		b.sendText(message.Chat.ID, "✍️ Send the reason as text or press «No comment».", rejectReasonKeyboard(review.SubmissionID))
		return
	}
	if flow.IsSkip(reason) || strings.EqualFold(reason, "no comment") {
		reason = ""
	}
	b.finishReject(ctx, message.From.ID, review, reason)
}

// finishReject closes the entry, tells the submitter why and ends the review
func (b *Bot) finishReject(ctx context.Context, moderatorID int64, review *Review, reason string) {
	defer func() {
		if err := b.reviews.Delete(ctx, moderatorID); err != nil {
			b.logger.Warn("Failed to close review", zap.Error(err))
		}
	}()

	sub, err := b.db.GetSubmission(ctx, review.SubmissionID)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendText(review.ChatID, alreadyProcessed, nil)
		return
	}
	if err != nil {
		b.logger.Error("Failed to load submission", zap.Error(err), zap.String("submission_id", review.SubmissionID))
		b.sendText(review.ChatID, "⚠️ Storage error, try again.", nil)
		return
	}

	status := "❌ <b>Rejected</b>"
	if reason != "" {
		status += "\n<b>Reason:</b> " + escape(reason)
	}
	b.closeNotification(review.ChatID, review.MessageID, sub, status)

	title := escape(submissionTitle(sub))
	var text string
	if f, ok := b.catalog.Flow(flow.Kind(sub.Kind)); ok && f.Review == flow.ReviewVerdict {
		text = fmt.Sprintf("🔐 Your access request for «%s» has been declined.", title)
	} else {
		text = fmt.Sprintf("😔 Your submission «%s» was not approved.", title)
	}
	if reason != "" {
		text += "\n\n<b>Reason:</b> " + escape(reason)
	}
	b.sendText(sub.Submitter.ChatID, text, nil)

	b.finishDecision(ctx, sub, models.ActionRejected, reason, moderatorID)
	b.sendText(review.ChatID, "✅ The rejection has been sent to the user.", nil)
}

// handleAcknowledge marks a request handled and notifies the submitter
func (b *Bot) handleAcknowledge(ctx context.Context, query *tgbotapi.CallbackQuery, id string) {
	sub, ok := b.loadForDecision(ctx, query, id)
	if !ok {
		return
	}

	f, ok := b.catalog.Flow(flow.Kind(sub.Kind))
	if !ok {
		b.answerCallback(query.ID, "Unknown submission type", true)
		return
	}

	b.answerCallback(query.ID, "✅ Done", false)
	b.closeNotification(query.Message.Chat.ID, query.Message.MessageID, sub, "✅ <b>Handled</b>")
	b.sendText(sub.Submitter.ChatID, f.Handled, nil)
	b.finishDecision(ctx, sub, models.ActionAcknowledged, "", query.From.ID)
}

// handleView shows a submission in full
func (b *Bot) handleView(ctx context.Context, query *tgbotapi.CallbackQuery, id string) {
	sub, ok := b.loadForDecision(ctx, query, id)
	if !ok {
		return
	}

	b.answerCallback(query.ID, "", false)
	b.sendText(query.Message.Chat.ID, b.catalog.Details(sub), nil)
	if p := sub.Photo(); p != nil {
		b.sendPhoto(query.Message.Chat.ID, p.FileID, fmt.Sprintf("📷 Photo from %s", flow.SubmitterHandle(sub.Submitter)))
	}
}

// closeNotification rewrites the moderator notification with its outcome and removes the controls
func (b *Bot) closeNotification(chatID int64, messageID int, sub *models.Submission, status string) {
	if sub.ModeratorMessageID != 0 {
		chatID, messageID = b.moderatorChatID, sub.ModeratorMessageID
	}
	b.editMessage(chatID, messageID, b.catalog.Notification(sub)+"\n\n"+status, nil)
}

// finishDecision removes the entry from the queue and records the outcome
func (b *Bot) finishDecision(ctx context.Context, sub *models.Submission, action models.DecisionAction, reason string, moderatorID int64) {
	if err := b.db.DeleteSubmission(ctx, sub.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.logger.Error("Failed to delete submission", zap.Error(err), zap.String("submission_id", sub.ID))
	}

	decision := models.Decision{
		SubmissionID:    sub.ID,
		Kind:            sub.Kind,
		TypeTag:         sub.TypeTag,
		Action:          action,
		Reason:          reason,
		ModeratorID:     moderatorID,
		SubmitterChatID: sub.Submitter.ChatID,
		DecidedAt:       b.now(),
	}
	if err := b.db.RecordDecision(ctx, decision); err != nil {
		b.logger.Error("Failed to record decision", zap.Error(err), zap.String("submission_id", sub.ID))
	}

	b.logger.Info("Submission decided",
		zap.String("submission_id", sub.ID),
		zap.String("action", string(action)),
		zap.Int64("moderator_id", moderatorID),
	)
}
