package bot

import (
	"context"
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"olekmabot/internal/flow"
)

// menuFlows maps main menu buttons to the flow they open
var menuFlows = map[string]flow.Kind{
	btnAdd:         flow.KindContent,
	btnSearch:      flow.KindSearch,
	btnShare:       flow.KindShare,
	btnAdvertising: flow.KindAdvertising,
	btnPartnership: flow.KindPartnership,
	btnClaim:       flow.KindClaim,
	btnHashtag:     flow.KindHashtag,
	btnUpdate:      flow.KindUpdate,
	btnFeedback:    flow.KindFeedback,
	btnReport:      flow.KindReport,
}

// pickerIntro is shown above the subtype picker of multi-type flows
var pickerIntro = map[flow.Kind]string{
	flow.KindContent:     "➕ <b>Add to site</b>\n\nWhat do you want to add?",
	flow.KindAdvertising: "📢 <b>Advertising on the site</b>\n\nChoose the advertising format:",
	flow.KindFeedback:    "💬 <b>Feedback</b>\n\nWhat would you like to send?",
	flow.KindReport:      "🚨 <b>Report a problem</b>\n\nWhat is wrong?",
}

func isMenuButton(text string) bool {
	if text == btnMainMenu || text == btnFAQ {
		return true
	}
	_, ok := menuFlows[text]
	return ok
}

// handleMenuButton starts the flow behind a main menu button.
// Pressing a button always replaces the current session.
func (b *Bot) handleMenuButton(ctx context.Context, message *tgbotapi.Message) bool {
	chatID := message.Chat.ID

	switch message.Text {
	case btnMainMenu:
		b.endSession(ctx, chatID)
		b.showMainMenu(chatID, "Choose an action 👇")
		return true
	case btnFAQ:
		b.endSession(ctx, chatID)
		b.showFAQ(chatID)
		return true
	}

	kind, ok := menuFlows[message.Text]
	if !ok {
		return false
	}

	f, ok := b.catalog.Flow(kind)
	if !ok {
		return false
	}

	if len(f.Types) > 1 {
		b.endSession(ctx, chatID)
		b.sendText(chatID, pickerIntro[kind], typePickerKeyboard(f))
		return true
	}

	b.startFlow(ctx, chatID, 0, kind, "")
	return true
}

// startFlow opens a session and asks the first question.
// A non-zero messageID edits that message instead of sending a new one.
func (b *Bot) startFlow(ctx context.Context, chatID int64, messageID int, kind flow.Kind, tag string) {
	out, err := b.engine.Begin(ctx, chatID, kind, tag)
	if err != nil {
		b.logger.Error("Failed to start flow",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("kind", string(kind)),
			zap.String("type", tag),
		)
		b.sendText(chatID, "⚠️ Something went wrong. Please try again.", mainMenuKeyboard())
		return
	}

	b.logger.Debug("Flow started",
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(kind)),
		zap.String("type", out.Session.TypeTag),
	)

	text := fmt.Sprintf("%s\n\n%s", b.flowHeader(out.Session), out.Reply)
	keyboard := cancelKeyboard(kind)

	if messageID != 0 {
		b.editMessage(chatID, messageID, text, &keyboard)
	} else if sent, ok := b.sendText(chatID, text, keyboard); ok {
		messageID = sent.MessageID
	}

	if messageID != 0 {
		if err := b.engine.SetMessageID(ctx, chatID, messageID); err != nil {
			b.logger.Warn("Failed to remember flow message", zap.Error(err))
		}
	}
}

func (b *Bot) flowHeader(s *flow.Session) string {
	f, _ := b.catalog.Flow(s.Kind)
	header := fmt.Sprintf("%s <b>%s</b>", f.Icon, f.Title)
	if t, ok := b.catalog.Type(s.Kind, s.TypeTag); ok && t.Name != "" {
		header += fmt.Sprintf("\n<b>Type:</b> %s %s", t.Icon, t.Name)
	}
	return header
}

// handleConversation feeds a free message to the active flow
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	out, err := b.engine.Advance(ctx, chatID, inputOf(message))
	if err != nil {
		b.logger.Error("Failed to advance flow", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendText(chatID, "⚠️ Something went wrong. Please try again.", nil)
		return
	}

	switch out.Status {
	case flow.StatusNoSession:
		b.showMainMenu(chatID, "Choose an action from the menu 👇")
	case flow.StatusIgnored:
		b.logger.Debug("Ignored input", zap.Int64("chat_id", chatID), zap.String("step", string(out.Session.Step)))
	case flow.StatusInvalid, flow.StatusNext:
		b.sendText(chatID, out.Reply, cancelKeyboard(out.Session.Kind))
	case flow.StatusConfirm:
		b.sendText(chatID, out.Reply, confirmKeyboard(out.Session.TypeTag))
	case flow.StatusComplete:
		if out.Reply != "" {
			b.sendText(chatID, out.Reply, nil)
		}
		b.complete(ctx, out.Session, message.From)
	}
}

// complete routes a finished session to moderation or answers it locally
func (b *Bot) complete(ctx context.Context, s *flow.Session, from *tgbotapi.User) {
	f, ok := b.catalog.Flow(s.Kind)
	if !ok {
		b.endSession(ctx, s.ChatID)
		return
	}

	if f.Handoff == flow.HandoffLocal {
		b.finishLocal(ctx, s)
		return
	}
	b.handoff(ctx, s, from)
}

// finishLocal answers search and share flows without moderation
func (b *Bot) finishLocal(ctx context.Context, s *flow.Session) {
	defer b.endSession(ctx, s.ChatID)

	switch s.Kind {
	case flow.KindSearch:
		query := textOf(s, flow.FieldQuery)
		searchURL := b.searchURL(query)
		text := fmt.Sprintf("🔍 <b>Search:</b> «%s»\n\nOpen the results on the site 👇", escape(query))
		b.sendText(s.ChatID, text, linkKeyboard("🔍 Show results", searchURL))

	case flow.KindShare:
		name := textOf(s, flow.FieldOrganization)
		message := shareMessage(name, b.links.Site)
		b.sendText(s.ChatID, "✅ Done! Here is a message for your friends:", mainMenuKeyboard())
		b.sendText(s.ChatID, escape(message), linkKeyboard("📤 Send to a friend", b.shareURL(message)))
	}
}

func (b *Bot) searchURL(query string) string {
	return fmt.Sprintf("%s/search?query=%s", b.links.Site, url.QueryEscape(query))
}

func shareMessage(name, site string) string {
	return fmt.Sprintf("👋 Take a look at «%s» in the city directory: %s", name, site)
}

func (b *Bot) shareURL(text string) string {
	return fmt.Sprintf("https://t.me/share/url?url=%s&text=%s", url.QueryEscape(b.links.Site), url.QueryEscape(text))
}

// showFAQ lists the questions as buttons
func (b *Bot) showFAQ(chatID int64) {
	if len(b.faq) == 0 {
		b.showMainMenu(chatID, "The FAQ is empty for now. Ask your question in «💬 Feedback».")
		return
	}
	b.sendText(chatID, "❓ <b>Frequently asked questions</b>\n\nChoose a question:", faqKeyboard(b.faq))
}

// inputOf converts a Telegram message into engine input
func inputOf(message *tgbotapi.Message) flow.Input {
	in := flow.Input{
		Text:    message.Text,
		Caption: message.Caption,
	}
	for _, p := range message.Photo {
		in.Photos = append(in.Photos, flow.PhotoSize{
			FileID:   p.FileID,
			Width:    p.Width,
			Height:   p.Height,
			FileSize: p.FileSize,
		})
	}
	return in
}

func textOf(s *flow.Session, field flow.Field) string {
	if v := s.Fields[field]; v != nil {
		return v.Text
	}
	return ""
}
