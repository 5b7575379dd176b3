package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
	"olekmabot/internal/models"
)

// statsWindow is the period /stats reports decisions for
const statsWindow = 30 * 24 * time.Hour

// pendingListLimit caps the /pending listing
const pendingListLimit = 10

// handleCommand routes a slash command
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "cancel":
		b.handleCancel(ctx, message)
	case "faq":
		b.showFAQ(message.Chat.ID)
	case "admin", "stats", "pending", "reply":
		if !b.isModerator(message.From.ID) {
			b.logger.Warn("Unauthorized admin command",
				zap.Int64("user_id", message.From.ID),
				zap.String("command", message.Command()),
			)
			b.sendText(message.Chat.ID, "⛔ You don't have access to the admin panel.", nil)
			return
		}
		b.handleAdminCommand(ctx, message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /help to see what the bot can do.", nil)
	}
}

func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "admin":
		b.handleAdmin(message)
	case "stats":
		b.handleStats(ctx, message)
	case "pending":
		b.handlePending(ctx, message)
	case "reply":
		b.handleReply(message)
	}
}

// handleStart greets the user and shows the main menu
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	b.endSession(ctx, message.Chat.ID)

	name := message.From.FirstName
	if name == "" {
		name = "friend"
	}

	text := fmt.Sprintf(`👋 Hello, %s!

This bot helps you work with the <a href="%s">city directory</a>:

➕ add an organization, service, ad, news or property
🔍 search the site
📢 order advertising or 🤝 propose a partnership
💬 send feedback or 🚨 report a problem

Choose an action from the menu 👇`, escape(name), b.links.Site)

	b.sendText(message.Chat.ID, text, mainMenuKeyboard())
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	text := `ℹ️ <b>Help</b>

Use the menu buttons to start an action. The bot asks questions one by one.

Send <code>-</code> to skip an optional question.
Before sending content you will see a summary: send <code>submit</code> or press «Submit».

Commands:
/start - main menu
/faq - frequently asked questions
/cancel - cancel the current action
/help - this help`

	b.sendText(message.Chat.ID, text, mainMenuKeyboard())
}

// handleCancel drops the chat's session and any rejection the user was writing
func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) {
	b.endSession(ctx, message.Chat.ID)
	if err := b.reviews.Delete(ctx, message.From.ID); err != nil {
		b.logger.Warn("Failed to clear review", zap.Error(err))
	}
	b.sendText(message.Chat.ID, "❌ Cancelled.", mainMenuKeyboard())
}

func (b *Bot) handleAdmin(message *tgbotapi.Message) {
	text := `🛠 <b>Admin panel</b>

/stats - queue size and decisions over the last 30 days
/pending - open submissions, oldest first
/reply &lt;chat id&gt; &lt;text&gt; - write to a user on behalf of the bot

New submissions arrive in this chat with approve, reject and view buttons.`

	b.sendText(message.Chat.ID, text, nil)
}

// handleStats shows the queue size and the recent decisions
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	pending, err := b.db.CountPending(ctx)
	if err != nil {
		b.logger.Error("Failed to count pending submissions", zap.Error(err))
		b.sendText(message.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())), nil)
		return
	}

	stats, err := b.db.GetDecisionStats(ctx, b.now().Add(-statsWindow))
	if err != nil {
		b.logger.Error("Failed to get decision stats", zap.Error(err))
		b.sendText(message.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())), nil)
		return
	}

	var text strings.Builder
	text.WriteString("📊 <b>Statistics</b>\n\n")
	fmt.Fprintf(&text, "⏳ Awaiting review: <b>%d</b>\n\n", pending)
	text.WriteString("<b>Last 30 days:</b>\n")
	if len(stats) == 0 {
		text.WriteString("No decisions yet.")
	}
	for _, s := range stats {
		fmt.Fprintf(&text, "%s %s: <b>%d</b>\n", actionIcon(s.Action), s.Action, s.Count)
	}

	b.sendText(message.Chat.ID, text.String(), nil)
}

// handlePending lists the oldest open submissions with view buttons
func (b *Bot) handlePending(ctx context.Context, message *tgbotapi.Message) {
	subs, err := b.db.ListPending(ctx, pendingListLimit)
	if err != nil {
		b.logger.Error("Failed to list pending submissions", zap.Error(err))
		b.sendText(message.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())), nil)
		return
	}

	if len(subs) == 0 {
		b.sendText(message.Chat.ID, "✅ The queue is empty.", nil)
		return
	}

	var text strings.Builder
	text.WriteString("⏳ <b>Awaiting review:</b>\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range subs {
		sub := &subs[i]
		fmt.Fprintf(&text, "%d. %s · %s · %s · %s\n",
			i+1,
			b.catalog.TypeLabel(flow.Kind(sub.Kind), sub.TypeTag),
			escape(flow.Preview(submissionTitle(sub), flow.AckPreviewLen)),
			flow.SubmitterHandle(sub.Submitter),
			sub.SubmittedAt.Format("02.01 15:04"),
		)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("👁 %d", i+1), "view:"+sub.ID),
		))
	}

	b.sendText(message.Chat.ID, text.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleReply forwards a moderator's message to a user: /reply <chat id> <text>
func (b *Bot) handleReply(message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())
	rawID, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)

	chatID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || text == "" {
		b.sendText(message.Chat.ID, "Usage: /reply &lt;chat id&gt; &lt;text&gt;", nil)
		return
	}

	if _, ok := b.sendText(chatID, "💬 <b>Message from the administrator:</b>\n\n"+escape(text), nil); !ok {
		b.sendText(message.Chat.ID, "⚠️ Failed to deliver the message.", nil)
		return
	}

	b.logger.Info("Moderator replied to user",
		zap.Int64("moderator_id", message.From.ID),
		zap.Int64("chat_id", chatID),
	)
	b.sendText(message.Chat.ID, "✅ Message sent.", nil)
}

func actionIcon(a models.DecisionAction) string {
	switch a {
	case models.ActionApproved:
		return "✅"
	case models.ActionRejected:
		return "❌"
	default:
		return "📬"
	}
}
