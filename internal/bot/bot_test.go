package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"olekmabot/internal/faq"
	"olekmabot/internal/flow"
	"olekmabot/internal/models"
	"olekmabot/internal/publish"
	"olekmabot/internal/storage"
	"olekmabot/internal/storage/stubs"
)

const (
	moderatorChat = int64(-100500)
	moderatorID   = int64(900)
	userChat      = int64(4242)
)

// fakeSender records everything the bot sends to Telegram
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	failChat map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := c.(tgbotapi.MessageConfig); ok && f.failChat[m.ChatID] {
		return tgbotapi.Message{}, errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messagesTo(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) lastTo(t *testing.T, chatID int64) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messagesTo(chatID)
	require.NotEmpty(t, msgs, "no messages to chat %d", chatID)
	return msgs[len(msgs)-1]
}

func (f *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSender) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

// fakePublisher records published articles
type fakePublisher struct {
	mu       sync.Mutex
	articles []publish.Article
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, a publish.Article) (publish.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return publish.Result{}, p.err
	}
	p.articles = append(p.articles, a)
	return publish.Result{ID: "77", URL: "https://example.org/articles/77"}, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.articles)
}

// failingDB rejects new submissions
type failingDB struct {
	*stubs.MockDB
}

func (d *failingDB) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	return errors.New("disk full")
}

type testBot struct {
	*Bot
	api *fakeSender
	db  *stubs.MockDB
	pub *fakePublisher
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	return newTestBotWithDB(t, nil)
}

func newTestBotWithDB(t *testing.T, db storage.Storage) *testBot {
	t.Helper()

	mock := stubs.NewMockDB()
	if db == nil {
		db = mock
	}
	require.NoError(t, db.Initialize(context.Background()))

	api := &fakeSender{}
	pub := &fakePublisher{}
	b := NewWithSender(api, db, pub, Settings{
		ModeratorChatID:  moderatorChat,
		ModeratorUserIDs: []int64{moderatorID},
		Links: Links{
			Site:     "https://example.org",
			Register: "https://example.org/registration",
			Login:    "https://example.org/login",
		},
		SessionTTL:      time.Hour,
		DispatchWorkers: 2,
		FAQ:             faq.Default(),
	}, zap.NewNop())

	seq := 0
	b.newID = func() string {
		seq++
		return fmt.Sprintf("sub-%d", seq)
	}
	fixed := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	return &testBot{Bot: b, api: api, db: mock, pub: pub}
}

func textMessage(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID, UserName: "baker", FirstName: "Anna"},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}}
}

func userMessage(chatID, userID int64, text string) tgbotapi.Update {
	u := textMessage(chatID, text)
	u.Message.From = &tgbotapi.User{ID: userID, UserName: "moder"}
	return u
}

func commandMessage(chatID, userID int64, text string) tgbotapi.Update {
	u := userMessage(chatID, userID, text)
	cmd, _, _ := strings.Cut(text, " ")
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return u
}

func photoMessage(chatID int64, fileIDs ...string) tgbotapi.Update {
	u := textMessage(chatID, "")
	for i, id := range fileIDs {
		u.Message.Photo = append(u.Message.Photo, tgbotapi.PhotoSize{
			FileID: id, Width: 90 * (i + 1), Height: 90 * (i + 1), FileSize: 1000 * (i + 1),
		})
	}
	return u
}

func callbackUpdate(userID, chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: userID, UserName: "baker", FirstName: "Anna"},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
		Data: data,
	}}
}

func inlineData(t *testing.T, markup interface{}) []string {
	t.Helper()
	kb, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected an inline keyboard, got %T", markup)

	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				data = append(data, *btn.CallbackData)
			}
		}
	}
	return data
}

// submitFreshBakery walks the organization flow through the real handlers up to handoff
func (tb *testBot) submitFreshBakery(t *testing.T) {
	t.Helper()

	tb.HandleUpdate(textMessage(userChat, btnAdd))
	picker := tb.api.lastTo(t, userChat)
	assert.Contains(t, inlineData(t, picker.ReplyMarkup), "add_type:organization")

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 10, "add_type:organization"))
	tb.HandleUpdate(callbackUpdate(userChat, userChat, 10, "add_method:organization:admin"))

	edits := tb.api.edits()
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[len(edits)-1].Text, "Question 1 of 7")

	for _, answer := range []string{
		"Fresh Bakery",
		"We bake bread daily since 1998",
		"89241234567",
		"-",
		"-",
		"-",
	} {
		tb.HandleUpdate(textMessage(userChat, answer))
	}
	tb.HandleUpdate(photoMessage(userChat, "small", "large"))

	summary := tb.api.lastTo(t, userChat)
	assert.Contains(t, summary.Text, "Check your data")
	assert.Contains(t, summary.Text, "Fresh Bakery")
	assert.Equal(t, []string{"add_confirm", "add_restart:organization"}, inlineData(t, summary.ReplyMarkup))

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 20, "add_confirm"))
}

func TestBot_FreshBakeryHandoff(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)

	tb.submitFreshBakery(t)

	sub, err := tb.db.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, string(flow.KindContent), sub.Kind)
	assert.Equal(t, "organization", sub.TypeTag)
	assert.Equal(t, "Fresh Bakery", sub.Text("name"))
	assert.Nil(t, sub.Field("address"))
	require.NotNil(t, sub.Photo())
	assert.Equal(t, "large", sub.Photo().FileID)
	assert.Equal(t, "baker", sub.Submitter.Username)
	assert.NotZero(t, sub.ModeratorMessageID)

	note := tb.api.lastTo(t, moderatorChat)
	assert.Contains(t, note.Text, "<b>Name:</b> Fresh Bakery")
	assert.Contains(t, note.Text, "@baker")
	assert.Contains(t, note.Text, "<code>4242</code>")
	assert.Equal(t, []string{"approve:sub-1", "reject:sub-1", "view:sub-1"}, inlineData(t, note.ReplyMarkup))

	photos := tb.api.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, moderatorChat, photos[0].ChatID)
	assert.Contains(t, photos[0].Caption, "@baker")

	thanks := tb.api.lastTo(t, userChat)
	assert.Contains(t, thanks.Text, "Thank you")

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	assert.Nil(t, s, "session must end after handoff")
}

func TestBot_HandoffKeepsSessionWhenQueueFails(t *testing.T) {
	ctx := context.Background()
	tb := newTestBotWithDB(t, &failingDB{MockDB: stubs.NewMockDB()})

	tb.HandleUpdate(textMessage(userChat, btnHashtag))
	tb.HandleUpdate(textMessage(userChat, "Fresh Bakery"))
	tb.HandleUpdate(textMessage(userChat, "#bakery"))

	assert.Empty(t, tb.api.messagesTo(moderatorChat))
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "Could not send")

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, flow.StepConfirm, s.Step)
}

func TestBot_HandoffEndsSessionWhenModeratorUnreachable(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)
	tb.api.failChat = map[int64]bool{moderatorChat: true}

	tb.HandleUpdate(textMessage(userChat, btnPartnership))
	tb.HandleUpdate(textMessage(userChat, "Joint events for local shops"))
	tb.HandleUpdate(textMessage(userChat, "partner@example.org"))

	n, err := tb.db.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "entry stays queued without a notification")

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "proposal has been sent")
}

func TestBot_NoSessionShowsMenu(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, "hello?"))

	msg := tb.api.lastTo(t, userChat)
	_, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, ok, "expected the main menu")
}

func TestBot_MenuButtonReplacesSession(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, btnHashtag))
	tb.HandleUpdate(textMessage(userChat, "Fresh Bakery"))
	tb.HandleUpdate(textMessage(userChat, btnUpdate))

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, flow.KindUpdate, s.Kind)
	assert.Equal(t, flow.FieldOrganization, s.Step)
	assert.Empty(t, s.Fields)
}

func TestBot_CancelCommand(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, btnSearch))
	tb.HandleUpdate(commandMessage(userChat, userChat, "/cancel"))

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "Cancelled")
}

func TestBot_Search(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, btnSearch))
	tb.HandleUpdate(textMessage(userChat, "e"))
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "too short")

	tb.HandleUpdate(textMessage(userChat, "car service"))

	msg := tb.api.lastTo(t, userChat)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://example.org/search?query=car+service", *kb.InlineKeyboard[0][0].URL)

	n, err := tb.db.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "search never reaches moderation")
}

func TestBot_Share(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, btnShare))
	tb.HandleUpdate(textMessage(userChat, "Fresh Bakery"))

	msg := tb.api.lastTo(t, userChat)
	assert.Contains(t, msg.Text, "Fresh Bakery")
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.True(t, strings.HasPrefix(*kb.InlineKeyboard[0][0].URL, "https://t.me/share/url?url="))
	assert.Empty(t, tb.api.messagesTo(moderatorChat))
}

func TestBot_FAQNavigation(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(textMessage(userChat, btnFAQ))
	list := tb.api.lastTo(t, userChat)
	assert.Contains(t, inlineData(t, list.ReplyMarkup), "faq_item:1")

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 5, "faq_item:1"))
	edits := tb.api.edits()
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[len(edits)-1].Text, faq.Default()[1].Question)

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 5, "faq_item:99"))
	assert.Len(t, tb.api.edits(), len(edits), "unknown item leaves the message alone")
}

func TestBot_AddSelfServiceShowsLinks(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 3, "add_method:service:self"))

	edits := tb.api.edits()
	require.Len(t, edits, 1)
	require.NotNil(t, edits[0].ReplyMarkup)
	assert.Equal(t, "https://example.org/registration", *edits[0].ReplyMarkup.InlineKeyboard[0][0].URL)
}

func TestBot_ConfirmWithoutSession(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 3, "add_confirm"))

	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "Nothing to submit")
	assert.Empty(t, tb.api.messagesTo(moderatorChat))
}

func TestBot_RestartCallback(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)

	tb.HandleUpdate(callbackUpdate(userChat, userChat, 3, "add_method:house:admin"))
	tb.HandleUpdate(textMessage(userChat, "Two-storey house"))
	tb.HandleUpdate(callbackUpdate(userChat, userChat, 3, "add_restart:house"))

	s, err := tb.engine.Get(ctx, userChat)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, flow.FieldName, s.Step)
	assert.Empty(t, s.Fields)
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "Starting over")
}

func TestBot_AdminCommandsRequireModerator(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(commandMessage(userChat, userChat, "/stats"))
	assert.Contains(t, tb.api.lastTo(t, userChat).Text, "don't have access")

	tb.HandleUpdate(commandMessage(moderatorChat, moderatorID, "/stats"))
	assert.Contains(t, tb.api.lastTo(t, moderatorChat).Text, "Awaiting review: <b>0</b>")
}

func TestBot_ReplyCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.HandleUpdate(commandMessage(moderatorChat, moderatorID, "/reply 4242 Your listing is live <3"))

	msg := tb.api.lastTo(t, userChat)
	assert.Contains(t, msg.Text, "Your listing is live &lt;3")
	assert.Contains(t, tb.api.lastTo(t, moderatorChat).Text, "Message sent")

	tb.HandleUpdate(commandMessage(moderatorChat, moderatorID, "/reply nobody"))
	assert.Contains(t, tb.api.lastTo(t, moderatorChat).Text, "Usage")
}

func TestBot_PendingCommand(t *testing.T) {
	tb := newTestBot(t)
	tb.submitFreshBakery(t)

	tb.HandleUpdate(commandMessage(moderatorChat, moderatorID, "/pending"))

	msg := tb.api.lastTo(t, moderatorChat)
	assert.Contains(t, msg.Text, "Fresh Bakery")
	assert.Equal(t, []string{"view:sub-1"}, inlineData(t, msg.ReplyMarkup))
}

func TestBot_EveryContentTypeQueuesOneEntry(t *testing.T) {
	ctx := context.Background()
	catalog := flow.DefaultCatalog()
	f, ok := catalog.Flow(flow.KindContent)
	require.True(t, ok)

	for _, typ := range f.Types {
		t.Run(typ.Tag, func(t *testing.T) {
			tb := newTestBot(t)

			tb.HandleUpdate(textMessage(userChat, btnAdd))
			tb.HandleUpdate(callbackUpdate(userChat, userChat, 10, "add_type:"+typ.Tag))
			tb.HandleUpdate(callbackUpdate(userChat, userChat, 10, "add_method:"+typ.Tag+":admin"))

			skipped := make(map[string]bool)
			for _, field := range typ.Fields {
				answer := "a perfectly valid answer"
				if rule := catalog.Describe(field).Rule; rule == flow.RuleOptional || rule == flow.RulePhoto {
					answer = "-"
					skipped[string(field)] = true
				}
				tb.HandleUpdate(textMessage(userChat, answer))
			}

			summary := tb.api.lastTo(t, userChat)
			assert.Equal(t, []string{"add_confirm", "add_restart:" + typ.Tag}, inlineData(t, summary.ReplyMarkup))

			tb.HandleUpdate(callbackUpdate(userChat, userChat, 20, "add_confirm"))

			pending, err := tb.db.CountPending(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, pending)

			sub, err := tb.db.GetSubmission(ctx, "sub-1")
			require.NoError(t, err)
			assert.Equal(t, typ.Tag, sub.TypeTag)
			require.Len(t, sub.Fields, len(typ.Fields))
			for i, fv := range sub.Fields {
				assert.Equal(t, string(typ.Fields[i]), fv.Name)
				if skipped[fv.Name] {
					assert.Nil(t, fv.Value, fv.Name)
				} else {
					assert.NotNil(t, fv.Value, fv.Name)
				}
			}
		})
	}
}
