// Package runner drives one complete pass of the bot: drain pending
// updates, apply registrations and commands, welcome fresh chats,
// reconcile every known chat, persist the map, and acknowledge the batch.
// One invocation is one pass; scheduling lives outside the process.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/command"
	"github.com/ivan200424/graphenko/internal/reconcile"
	"github.com/ivan200424/graphenko/internal/registry"
	"github.com/ivan200424/graphenko/internal/telegram"
)

const welcomeText = "✅ Бот успішно додано!\n\n" +
	"Налаштуйте канал командами:\n" +
	"/graphenko_image <url> — зображення графіка\n" +
	"/graphenko_caption <текст> — підпис (-default повертає стандартний)"

// Runner wires the engines into one sequential pass.
type Runner struct {
	state        *chatstore.State
	client       *telegram.Client
	commands     *command.Processor
	engine       *reconcile.Engine
	chatsFile    string
	welcomeDelay time.Duration
	logger       *slog.Logger

	sleep func(time.Duration)
}

// New creates a Runner. chatsFile is where the map is persisted when the
// pass left it dirty.
func New(state *chatstore.State, client *telegram.Client, commands *command.Processor,
	engine *reconcile.Engine, chatsFile string, welcomeDelay time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		state:        state,
		client:       client,
		commands:     commands,
		engine:       engine,
		chatsFile:    chatsFile,
		welcomeDelay: welcomeDelay,
		logger:       logger,
		sleep:        time.Sleep,
	}
}

// Run executes one pass. The returned Summary is always valid; a non-nil
// error means the pass itself could not complete (persistence failure),
// not that some chat failed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	logger := r.logger.With("run_id", uuid.NewString())
	logger.Info("run started", "chats", r.state.Len())

	// Identity is informational only: a run proceeds even when getMe is
	// unavailable, since every later call fails on its own terms.
	if me, err := r.client.GetMe(ctx); err != nil {
		logger.Warn("bot identity unavailable", "error", err)
	} else {
		logger.Info("bot identity", "username", me.Username, "id", me.ID)
	}

	updates, err := r.client.GetUpdates(ctx, telegram.GetUpdatesRequest{
		AllowedUpdates: []string{"message", "channel_post", "my_chat_member"},
	})
	if err != nil {
		logger.Warn("update fetch failed, reconciling without a batch", "error", err)
		updates = nil
	}

	registered := registry.Apply(r.state, updates, logger)
	r.commands.Apply(ctx, updates)
	r.welcome(ctx, registered, logger)

	outcomes := r.engine.Run(ctx)

	if r.state.Dirty() {
		if err := r.state.Save(r.chatsFile); err != nil {
			return Summary{}, fmt.Errorf("runner: persist chat map: %w", err)
		}
		logger.Info("chat map saved", "path", r.chatsFile, "chats", r.state.Len())
	}

	r.acknowledge(ctx, updates, logger)

	summary := Summarize(outcomes)
	summary.Registered = len(registered)
	logger.Info("run finished", "summary", summary)
	return summary, nil
}

// welcome sends the one-time greeting to each freshly registered chat and
// retains its message id so a later image command can retire it.
func (r *Runner) welcome(ctx context.Context, registered []string, logger *slog.Logger) {
	for _, chatID := range registered {
		msg, err := r.client.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: chatID,
			Text:   welcomeText,
		})
		if err != nil {
			logger.Warn("welcome send failed", "chat_id", chatID, "error", err)
		} else if rec, ok := r.state.Get(chatID); ok {
			rec.WelcomeMessageID = msg.MessageID
			r.state.MarkDirty()
		}
		r.sleep(r.welcomeDelay)
	}
}

// acknowledge advances the remote offset past the processed batch, so the
// next run starts clean. Only called when a batch was actually fetched.
func (r *Runner) acknowledge(ctx context.Context, updates []telegram.Update, logger *slog.Logger) {
	if len(updates) == 0 {
		return
	}
	last := updates[len(updates)-1].UpdateID
	_, err := r.client.GetUpdates(ctx, telegram.GetUpdatesRequest{
		Offset: last + 1,
		Limit:  1,
	})
	if err != nil {
		logger.Warn("batch acknowledge failed", "last_update_id", last, "error", err)
	}
}
