package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"olekmabot/internal/faq"
	"olekmabot/internal/flow"
)

// Main menu buttons
const (
	btnAdd         = "➕ Add to site"
	btnSearch      = "🔍 Search"
	btnShare       = "📤 Share"
	btnAdvertising = "📢 Advertising"
	btnPartnership = "🤝 Partnership"
	btnClaim       = "🔐 My organization"
	btnHashtag     = "#️⃣ Hashtag"
	btnUpdate      = "🔄 Update data"
	btnFeedback    = "💬 Feedback"
	btnReport      = "🚨 Report a problem"
	btnFAQ         = "❓ FAQ"
	btnMainMenu    = "🏠 Main menu"
)

// typePickerPrefix is the callback prefix of each multi-type flow's picker
var typePickerPrefix = map[flow.Kind]string{
	flow.KindContent:     "add_type",
	flow.KindAdvertising: "adv_type",
	flow.KindFeedback:    "feedback_type",
	flow.KindReport:      "report_type",
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAdd),
			tgbotapi.NewKeyboardButton(btnSearch),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnShare),
			tgbotapi.NewKeyboardButton(btnAdvertising),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnPartnership),
			tgbotapi.NewKeyboardButton(btnClaim),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHashtag),
			tgbotapi.NewKeyboardButton(btnUpdate),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFeedback),
			tgbotapi.NewKeyboardButton(btnReport),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFAQ),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// typePickerKeyboard lists the subtypes of a flow, two per row
func typePickerKeyboard(f *flow.Flow) tgbotapi.InlineKeyboardMarkup {
	prefix := typePickerPrefix[f.Kind]

	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for i, t := range f.Types {
		button := tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %s", t.Icon, t.Name),
			fmt.Sprintf("%s:%s", prefix, t.Tag),
		)
		currentRow = append(currentRow, button)

		// Add row when we have 2 buttons or it's the last type
		if len(currentRow) == 2 || i == len(f.Types)-1 {
			rows = append(rows, currentRow)
			currentRow = []tgbotapi.InlineKeyboardButton{}
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cancelData(f.Kind)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func methodKeyboard(tag string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 I'll add it myself", "add_method:"+tag+":self"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 Send to the administrator", "add_method:"+tag+":admin"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back", "add_back"),
		),
	)
}

func selfServiceKeyboard(links Links) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📝 Register", links.Register),
			tgbotapi.NewInlineKeyboardButtonURL("🔑 Log in", links.Login),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back", "add_back"),
		),
	)
}

func cancelData(kind flow.Kind) string {
	if kind == flow.KindContent {
		return "add_cancel"
	}
	return "cancel"
}

func cancelKeyboard(kind flow.Kind) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cancelData(kind)),
		),
	)
}

func confirmKeyboard(tag string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Submit", "add_confirm"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Start over", "add_restart:"+tag),
		),
	)
}

// reviewKeyboard is the moderator's control surface for a submission
func reviewKeyboard(f *flow.Flow, id string) tgbotapi.InlineKeyboardMarkup {
	switch f.Review {
	case flow.ReviewPublish:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve:"+id),
				tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject:"+id),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👁 View in full", "view:"+id),
			),
		)
	case flow.ReviewVerdict:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "approve:"+id),
				tgbotapi.NewInlineKeyboardButtonData("❌ Decline", "reject:"+id),
			),
		)
	default:
		label := f.ActionLabel
		if label == "" {
			label = "✅ Done"
		}
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, "ack:"+id),
			),
		)
	}
}

func rejectReasonKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🤐 No comment", "reject_skip:"+id),
		),
	)
}

func faqKeyboard(items []faq.Item) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
	for i, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d. %s", i+1, item.Question), fmt.Sprintf("faq_item:%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, "faq_done"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func faqAnswerKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back to questions", "faq_back"),
		),
	)
}

func linkKeyboard(text, url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(text, url),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, "menu"),
		),
	)
}
