package bot

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_PreservesPerChatOrder(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int64][]int)

	handle := func(u tgbotapi.Update) {
		n, _ := strconv.Atoi(u.Message.Text)
		mu.Lock()
		seen[u.Message.Chat.ID] = append(seen[u.Message.Chat.ID], n)
		mu.Unlock()
	}

	d := NewDispatcher(4, 2, handle, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	chats := []int64{1, 2, 3, -100500}
	const perChat = 50
	for i := 0; i < perChat; i++ {
		for _, chat := range chats {
			u := tgbotapi.Update{Message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: chat},
				Text: strconv.Itoa(i),
			}}
			require.NoError(t, d.Dispatch(ctx, u))
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, v := range seen {
			total += len(v)
		}
		return total == perChat*len(chats)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	for _, chat := range chats {
		got := seen[chat]
		require.Len(t, got, perChat)
		for i, n := range got {
			assert.Equal(t, i, n, "chat %d out of order", chat)
		}
	}
}

func TestDispatcher_StoppedRejectsUpdates(t *testing.T) {
	d := NewDispatcher(1, 0, func(tgbotapi.Update) {}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	err := d.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestChatIDOf(t *testing.T) {
	testCases := []struct {
		name   string
		update tgbotapi.Update
		want   int64
	}{
		{
			name:   "message",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}}},
			want:   7,
		},
		{
			name: "callback with message",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				From:    &tgbotapi.User{ID: 9},
				Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -5}},
			}},
			want: -5,
		},
		{
			name:   "inline callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{From: &tgbotapi.User{ID: 9}}},
			want:   9,
		},
		{
			name:   "empty",
			update: tgbotapi.Update{},
			want:   0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, chatIDOf(tc.update))
		})
	}
}

func TestDispatcher_ShardOfNegativeChat(t *testing.T) {
	d := NewDispatcher(3, 1, func(tgbotapi.Update) {}, zap.NewNop())

	for _, id := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
		u := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: id}}}
		shard := d.shardOf(u)
		assert.GreaterOrEqual(t, shard, 0)
		assert.Less(t, shard, 3)
	}
}
