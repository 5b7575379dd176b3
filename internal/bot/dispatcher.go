package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDispatcherStopped is returned when an update arrives after Run has returned
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher fans updates out to a fixed set of workers.
// Updates of one chat always land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	shards []chan tgbotapi.Update
	handle func(tgbotapi.Update)
	done   chan struct{}
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher with the given number of workers and per-worker queue size
func NewDispatcher(workers, buffer int, handle func(tgbotapi.Update), logger *zap.Logger) *Dispatcher {
	shards := make([]chan tgbotapi.Update, workers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, buffer)
	}
	return &Dispatcher{
		shards: shards,
		handle: handle,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Dispatch queues an update for its chat's worker.
// It blocks while that worker's queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) error {
	shard := d.shards[d.shardOf(update)]
	select {
	case shard <- update:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range d.shards {
		g.Go(func() error {
			d.logger.Debug("Dispatcher worker started", zap.Int("worker", i))
			for {
				select {
				case <-ctx.Done():
					return nil
				case update := <-shard:
					d.handle(update)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) shardOf(update tgbotapi.Update) int {
	return int(uint64(chatIDOf(update)) % uint64(len(d.shards)))
}

func chatIDOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}
