package flow

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"olekmabot/internal/models"
)

// Preview caps by context
const (
	AckPreviewLen     = 30
	SummaryPreviewLen = 100
	NotifyPreviewLen  = 200
)

// Preview truncates text to max runes, marking the cut with an ellipsis
func Preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

func escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, text)
}

func (e *Engine) question(s *Session) string {
	t, _ := e.catalog.Type(s.Kind, s.TypeTag)
	prompt := t.Prompt(s.Step, e.catalog.Describe(s.Step))
	if len(s.Sequence) == 1 {
		return prompt
	}
	return fmt.Sprintf("📝 <b>Question %d of %d</b>\n%s", s.Position(), len(s.Sequence), prompt)
}

func acknowledgement(d Descriptor, v *models.Value) string {
	return fmt.Sprintf("✅ <b>%s:</b> %s", d.Label, renderValue(v, AckPreviewLen))
}

func renderValue(v *models.Value, max int) string {
	switch {
	case v == nil:
		return "skipped"
	case v.Photo != nil:
		return "added"
	case max > 0:
		return escape(Preview(v.Text, max))
	default:
		return escape(v.Text)
	}
}

// TypeLabel returns the human label of a flow subtype
func (c *Catalog) TypeLabel(kind Kind, tag string) string {
	f, ok := c.Flow(kind)
	if !ok {
		return string(kind)
	}
	t, ok := c.Type(kind, tag)
	if !ok || t.Name == "" {
		return f.Icon + " " + f.Title
	}
	return t.Icon + " " + t.Name
}

// Summary renders every collected field for the confirmation step
func (c *Catalog) Summary(s *Session) string {
	var b strings.Builder
	b.WriteString("📋 <b>Check your data:</b>\n\n")
	fmt.Fprintf(&b, "<b>Type:</b> %s\n", c.TypeLabel(s.Kind, s.TypeTag))

	for _, fv := range s.Snapshot() {
		if fv.Value == nil {
			continue
		}
		d := c.Describe(Field(fv.Name))
		max := 0
		if d.Long {
			max = SummaryPreviewLen
		}
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", d.Label, renderValue(fv.Value, max))
	}

	b.WriteString("\nIs everything correct? Send <code>submit</code> to send it or <code>retry</code> to start over.")
	return b.String()
}

// Notification renders a submission for the moderator, truncating long text
func (c *Catalog) Notification(sub *models.Submission) string {
	return c.render(sub, NotifyPreviewLen)
}

// Details renders a submission in full
func (c *Catalog) Details(sub *models.Submission) string {
	return c.render(sub, 0)
}

func (c *Catalog) render(sub *models.Submission, max int) string {
	kind := Kind(sub.Kind)
	title := sub.Kind
	if f, ok := c.Flow(kind); ok {
		title = f.Icon + " " + f.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🆕 <b>%s</b>\n\n", title)
	if t, ok := c.Type(kind, sub.TypeTag); ok && t.Name != "" {
		fmt.Fprintf(&b, "<b>Type:</b> %s %s\n", t.Icon, t.Name)
	}

	for _, fv := range sub.Fields {
		if fv.Value == nil {
			continue
		}
		d := c.Describe(Field(fv.Name))
		limit := 0
		if d.Long {
			limit = max
		}
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", d.Label, renderValue(fv.Value, limit))
	}

	fmt.Fprintf(&b, "\n👤 <b>From:</b> %s\n", SubmitterHandle(sub.Submitter))
	fmt.Fprintf(&b, "🆔 <b>Chat ID:</b> <code>%d</code>\n", sub.Submitter.ChatID)
	fmt.Fprintf(&b, "📅 %s", sub.SubmittedAt.Format("02.01.2006 15:04"))
	return b.String()
}

// SubmitterHandle renders @username, or the first name linked to the chat
func SubmitterHandle(s models.Submitter) string {
	if s.Username != "" {
		return "@" + escape(s.Username)
	}
	name := s.FirstName
	if name == "" {
		name = "user"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, s.ChatID, escape(name))
}
