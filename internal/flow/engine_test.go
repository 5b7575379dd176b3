package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olekmabot/internal/models"
	"olekmabot/internal/session"
)

func newTestEngine() *Engine {
	e := NewEngine(session.NewMemory[*Session](0), DefaultCatalog())
	e.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return e
}

func text(s string) Input {
	return Input{Text: s}
}

func advance(t *testing.T, e *Engine, chatID int64, in Input) Outcome {
	t.Helper()
	out, err := e.Advance(context.Background(), chatID, in)
	require.NoError(t, err)
	return out
}

func TestDefaultCatalog_EveryFieldDescribed(t *testing.T) {
	c := DefaultCatalog()
	for kind, f := range c.flows {
		for _, typ := range f.Types {
			for _, field := range typ.Fields {
				d := c.Describe(field)
				assert.NotEmpty(t, d.Label, "%s/%s/%s", kind, typ.Tag, field)
				assert.NotEmpty(t, typ.Prompt(field, d), "%s/%s/%s", kind, typ.Tag, field)
				if d.Rule != RuleOptional {
					assert.NotEmpty(t, d.Retry, "%s/%s/%s needs a retry prompt", kind, typ.Tag, field)
				}
			}
		}
	}
}

func TestNewCatalog_RejectsUndescribedField(t *testing.T) {
	_, err := NewCatalog([]Flow{{
		Kind:  KindSearch,
		Types: []Type{{Fields: []Field{FieldQuery}}},
	}}, map[Field]Descriptor{})
	assert.Error(t, err)
}

func TestEngine_FreshBakery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	const chatID = int64(42)

	out, err := e.Begin(ctx, chatID, KindContent, "organization")
	require.NoError(t, err)
	assert.Equal(t, StatusNext, out.Status)
	assert.Contains(t, out.Reply, "Question 1 of 7")
	assert.Equal(t, FieldName, out.Session.Step)

	steps := []string{
		"Fresh Bakery",
		"We bake bread daily since 1998",
		"89241234567",
		"-",
		"-",
		"-",
	}
	for _, s := range steps {
		out = advance(t, e, chatID, text(s))
		require.Equal(t, StatusNext, out.Status, "input %q", s)
	}
	assert.Equal(t, FieldPhoto, out.Session.Step)
	assert.Contains(t, out.Reply, "Question 7 of 7")

	out = advance(t, e, chatID, text("-"))
	require.Equal(t, StatusConfirm, out.Status)
	assert.Equal(t, StepConfirm, out.Session.Step)
	assert.Contains(t, out.Reply, "Fresh Bakery")
	assert.NotContains(t, out.Reply, "<b>Address:</b>")

	out = advance(t, e, chatID, text("submit"))
	require.Equal(t, StatusComplete, out.Status)

	sub := out.Session.Submission("id-1", models.Submitter{ChatID: chatID, Username: "baker"}, e.now())
	assert.Equal(t, []models.FieldValue{
		{Name: "name", Value: &models.Value{Text: "Fresh Bakery"}},
		{Name: "description", Value: &models.Value{Text: "We bake bread daily since 1998"}},
		{Name: "contacts", Value: &models.Value{Text: "89241234567"}},
		{Name: "address", Value: nil},
		{Name: "schedule", Value: nil},
		{Name: "social", Value: nil},
		{Name: "photo", Value: nil},
	}, sub.Fields)

	note := e.Catalog().Notification(sub)
	assert.Contains(t, note, "Organization")
	assert.Contains(t, note, "<b>Name:</b> Fresh Bakery")
	assert.Contains(t, note, "<b>Description:</b> We bake bread daily since 1998")
	assert.Contains(t, note, "<b>Contacts:</b> 89241234567")
	assert.Contains(t, note, "@baker")
	assert.Contains(t, note, "<code>42</code>")
	for _, omitted := range []string{"Address", "Schedule", "Social", "Photo"} {
		assert.NotContains(t, note, "<b>"+omitted+":</b>")
	}
}

func TestEngine_EveryContentTypeCompletes(t *testing.T) {
	ctx := context.Background()
	c := DefaultCatalog()
	f, ok := c.Flow(KindContent)
	require.True(t, ok)

	for _, typ := range f.Types {
		t.Run(typ.Tag, func(t *testing.T) {
			e := newTestEngine()
			_, err := e.Begin(ctx, 1, KindContent, typ.Tag)
			require.NoError(t, err)

			var out Outcome
			for _, field := range typ.Fields {
				d := c.Describe(field)
				in := text("a perfectly valid answer")
				if d.Rule == RuleOptional || d.Rule == RulePhoto {
					in = text("skip")
				}
				out = advance(t, e, 1, in)
			}
			require.Equal(t, StatusConfirm, out.Status)

			out = advance(t, e, 1, text("Отправить"))
			require.Equal(t, StatusComplete, out.Status)

			snap := out.Session.Snapshot()
			require.Len(t, snap, len(typ.Fields))
			for i, fv := range snap {
				assert.Equal(t, string(typ.Fields[i]), fv.Name)
				d := c.Describe(typ.Fields[i])
				if d.Rule == RuleOptional || d.Rule == RulePhoto {
					assert.Nil(t, fv.Value, fv.Name)
				} else {
					require.NotNil(t, fv.Value, fv.Name)
				}
			}
		})
	}
}

func TestEngine_ShortNameDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "service")
	require.NoError(t, err)

	out := advance(t, e, 1, text("  A  "))
	assert.Equal(t, StatusInvalid, out.Status)
	assert.Equal(t, FieldName, out.Session.Step)
	assert.Contains(t, out.Reply, "too short")
	assert.Empty(t, out.Session.Fields)
}

func TestEngine_MinLengthCountsRunes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindFeedback, "question")
	require.NoError(t, err)

	out := advance(t, e, 1, text("абвг"))
	assert.Equal(t, StatusInvalid, out.Status)

	out = advance(t, e, 1, text("абвгд"))
	assert.Equal(t, StatusComplete, out.Status)
}

func TestEngine_SkipTokenStoresNull(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "organization")
	require.NoError(t, err)

	for _, s := range []string{"Bakery", "A long enough description", "phone"} {
		advance(t, e, 1, text(s))
	}

	out := advance(t, e, 1, text("НЕТ"))
	require.Equal(t, StatusNext, out.Status)
	v, ok := out.Session.Fields[FieldAddress]
	assert.True(t, ok)
	assert.Nil(t, v)

	out = advance(t, e, 1, text("Mon-Fri 9-18"))
	assert.Equal(t, "Mon-Fri 9-18", out.Session.Fields[FieldSchedule].Text)
}

func TestEngine_PhotoStep(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "news")
	require.NoError(t, err)

	out := advance(t, e, 1, text("Headline"))
	require.Equal(t, FieldPhoto, out.Session.Step)

	out = advance(t, e, 1, text("here is my photo"))
	assert.Equal(t, StatusInvalid, out.Status)
	assert.Equal(t, FieldPhoto, out.Session.Step)

	out = advance(t, e, 1, Input{
		Caption: "storefront",
		Photos: []PhotoSize{
			{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
			{FileID: "big", Width: 1280, Height: 960, FileSize: 90000},
			{FileID: "medium", Width: 320, Height: 240, FileSize: 9000},
		},
	})
	require.Equal(t, StatusNext, out.Status)
	photo := out.Session.Fields[FieldPhoto].Photo
	require.NotNil(t, photo)
	assert.Equal(t, "big", photo.FileID)
	assert.Equal(t, "storefront", photo.Caption)
	assert.Contains(t, out.Reply, "added")
}

func TestEngine_PhotoOutsidePhotoStepIgnored(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "organization")
	require.NoError(t, err)

	out := advance(t, e, 1, Input{Photos: []PhotoSize{{FileID: "x", Width: 1, Height: 1}}})
	assert.Equal(t, StatusIgnored, out.Status)
	assert.Equal(t, FieldName, out.Session.Step)
	assert.Empty(t, out.Session.Fields)
}

func TestEngine_ProofAcceptsPhotoOrText(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	_, err := e.Begin(ctx, 1, KindClaim, "")
	require.NoError(t, err)
	advance(t, e, 1, text("Fresh Bakery"))
	out := advance(t, e, 1, Input{Photos: []PhotoSize{{FileID: "doc", Width: 10, Height: 10}}})
	require.Equal(t, StatusNext, out.Status)
	assert.Equal(t, "doc", out.Session.Fields[FieldProof].Photo.FileID)

	_, err = e.Begin(ctx, 2, KindClaim, "")
	require.NoError(t, err)
	advance(t, e, 2, text("Fresh Bakery"))
	out = advance(t, e, 2, text("I am the owner, see the register"))
	require.Equal(t, StatusNext, out.Status)
	out = advance(t, e, 2, text("89241234567"))
	assert.Equal(t, StatusComplete, out.Status)
}

func TestEngine_HashtagNeedsHash(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindHashtag, "")
	require.NoError(t, err)
	advance(t, e, 1, text("Plumber Joe"))

	out := advance(t, e, 1, text("plumbing"))
	assert.Equal(t, StatusInvalid, out.Status)

	out = advance(t, e, 1, text("#plumbing"))
	assert.Equal(t, StatusComplete, out.Status)
}

func TestEngine_RetryAfterConfirmRestarts(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "house")
	require.NoError(t, err)

	for _, s := range []string{"Cosy house", "Two floors and a garden", "5 000 000", "-", "phone", "-"} {
		advance(t, e, 1, text(s))
	}
	s, err := e.Confirm(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StepConfirm, s.Step)

	out := advance(t, e, 1, text("retry"))
	assert.Equal(t, StatusNext, out.Status)
	assert.Equal(t, FieldName, out.Session.Step)
	assert.Equal(t, "house", out.Session.TypeTag)
	assert.Empty(t, out.Session.Fields)
	assert.Contains(t, out.Reply, "Question 1 of 6")

	_, err = e.Confirm(ctx, 1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestEngine_ConfirmRerendersOnOtherText(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "organization")
	require.NoError(t, err)
	for _, s := range []string{"Bakery", "A long enough description", "phone", "-", "-", "-", "-"} {
		advance(t, e, 1, text(s))
	}

	out := advance(t, e, 1, text("what now?"))
	assert.Equal(t, StatusConfirm, out.Status)
	assert.Contains(t, out.Reply, "Check your data")

	out = advance(t, e, 1, Input{Photos: []PhotoSize{{FileID: "late"}}})
	assert.Equal(t, StatusIgnored, out.Status)
}

func TestEngine_NoSession(t *testing.T) {
	e := newTestEngine()
	out := advance(t, e, 99, text("hello"))
	assert.Equal(t, StatusNoSession, out.Status)
	assert.Nil(t, out.Session)
}

func TestEngine_BeginOverwrites(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	_, err := e.Begin(ctx, 1, KindContent, "organization")
	require.NoError(t, err)
	advance(t, e, 1, text("Bakery"))

	out, err := e.Begin(ctx, 1, KindSearch, "")
	require.NoError(t, err)
	assert.Equal(t, KindSearch, out.Session.Kind)
	assert.Empty(t, out.Session.Fields)
	assert.NotContains(t, out.Reply, "Question")

	require.NoError(t, e.End(ctx, 1))
	s, err := e.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestEngine_BeginUnknownType(t *testing.T) {
	e := newTestEngine()
	_, err := e.Begin(context.Background(), 1, KindContent, "spaceship")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 30))
	long := strings.Repeat("я", 40)
	got := Preview(long, 30)
	assert.Equal(t, strings.Repeat("я", 30)+"…", got)
}

func TestNotification_TruncatesAndEscapes(t *testing.T) {
	c := DefaultCatalog()
	sub := &models.Submission{
		Kind:    string(KindContent),
		TypeTag: "service",
		Fields: []models.FieldValue{
			{Name: "name", Value: &models.Value{Text: "Pipes <&> Co"}},
			{Name: "description", Value: &models.Value{Text: strings.Repeat("x", 250)}},
		},
		Submitter: models.Submitter{ChatID: 7, FirstName: "Ann"},
	}

	note := c.Notification(sub)
	assert.Contains(t, note, "Pipes &lt;&amp;&gt; Co")
	assert.Contains(t, note, strings.Repeat("x", 200)+"…")
	assert.Contains(t, note, `<a href="tg://user?id=7">Ann</a>`)

	full := c.Details(sub)
	assert.Contains(t, full, strings.Repeat("x", 250))
	assert.NotContains(t, full, "…")
}
