package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/kyivtime"
	"github.com/ivan200424/graphenko/internal/telegram"
)

// Effective is the merged view of a chat's stored fields and process-wide
// defaults, computed fresh each run.
type Effective struct {
	ChatID   string
	Image    chatstore.ImageRef
	Caption  string
	ThreadID int
}

// Engine reconciles every chat in the map, one at a time.
type Engine struct {
	state          *chatstore.State
	client         *telegram.Client
	defaultCaption string
	chatDelay      time.Duration
	logger         *slog.Logger

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates an Engine over the given state.
func New(state *chatstore.State, client *telegram.Client, defaultCaption string, chatDelay time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		state:          state,
		client:         client,
		defaultCaption: defaultCaption,
		chatDelay:      chatDelay,
		logger:         logger,
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// Run reconciles every chat known at the start of the run, in key order,
// with a throttling pause after each chat. A failing chat never stops the
// loop; its outcome is recorded and the next chat proceeds.
func (e *Engine) Run(ctx context.Context) []Outcome {
	ids := e.state.ChatIDs()
	outcomes := make([]Outcome, 0, len(ids))

	for _, chatID := range ids {
		outcome := e.reconcileChat(ctx, chatID)
		outcomes = append(outcomes, outcome)

		if outcome.Err != nil {
			e.logger.Error("chat reconciliation",
				"chat_id", chatID,
				"status", string(outcome.Status),
				"error", outcome.Err,
			)
		} else {
			e.logger.Info("chat reconciliation",
				"chat_id", chatID,
				"status", string(outcome.Status),
				"reason", outcome.Reason,
			)
		}

		e.sleep(e.chatDelay)
	}
	return outcomes
}

// reconcileChat runs the decision table for one chat and executes it.
func (e *Engine) reconcileChat(ctx context.Context, chatID string) Outcome {
	if chatID == "" {
		return Outcome{ChatID: chatID, Status: StatusInvalid, Reason: "missing chat id"}
	}
	rec, ok := e.state.Get(chatID)
	if !ok {
		return Outcome{ChatID: chatID, Status: StatusInvalid, Reason: "no record"}
	}

	eff := e.effective(chatID, rec)
	if eff.Image.IsZero() {
		return Outcome{ChatID: chatID, Status: StatusSkipped, Reason: "no-image"}
	}

	urls := eff.Image.URLs()
	decision := Decide(rec, eff.Image.IsAlbum(), len(urls))

	// A representation switch retires the old messages first.
	for _, id := range decision.DeleteIDs {
		err := e.client.DeleteMessage(ctx, telegram.DeleteMessageRequest{
			ChatID:    chatID,
			MessageID: id,
		})
		if err == nil {
			continue
		}
		if telegram.Classify(err) == telegram.KindRemoved {
			return e.unregister(chatID, err)
		}
		// Deleting an already-gone message is as good as deleting it.
		e.logger.Warn("stale message delete failed",
			"chat_id", chatID,
			"message_id", id,
			"error", err,
		)
	}

	switch decision.Action {
	case ActionSendSingle:
		return e.sendSingle(ctx, rec, eff, urls[0], false)
	case ActionSendAlbum:
		return e.sendAlbum(ctx, rec, eff, urls)
	case ActionEditSingle:
		return e.editSingle(ctx, rec, eff, urls[0])
	default:
		return e.editAlbum(ctx, rec, eff, urls)
	}
}

// effective merges the stored record with process-wide defaults. The
// substituted default caption is for outbound traffic only and is never
// written back: an absent override stays absent, so later changes to the
// configured default keep reaching the chat.
func (e *Engine) effective(chatID string, rec *chatstore.Record) Effective {
	caption := rec.Caption
	if caption == "" {
		caption = e.defaultCaption
	}
	return Effective{
		ChatID:   chatID,
		Image:    rec.Image,
		Caption:  caption,
		ThreadID: rec.MessageThreadID,
	}
}

// sendSingle sends one photo, pins it, and records the new id.
// replaced marks the send as the recovery tail of a failed edit.
func (e *Engine) sendSingle(ctx context.Context, rec *chatstore.Record, eff Effective, url string, replaced bool) Outcome {
	msg, err := e.client.SendPhoto(ctx, telegram.SendPhotoRequest{
		ChatID:          eff.ChatID,
		Photo:           e.cacheBust(url),
		Caption:         e.stampedCaption(eff.Caption),
		MessageThreadID: eff.ThreadID,
	})
	if err != nil {
		switch telegram.Classify(err) {
		case telegram.KindRemoved:
			return e.unregister(eff.ChatID, err)
		case telegram.KindTopicClosed:
			return Outcome{ChatID: eff.ChatID, Status: StatusTopicClosed, Reason: "topic closed"}
		}
		return Outcome{ChatID: eff.ChatID, Status: StatusFailed, Err: fmt.Errorf("send photo: %w", err)}
	}

	e.pin(ctx, eff.ChatID, msg.MessageID)
	rec.SetSingleMessage(msg.MessageID)
	e.state.MarkDirty()

	status := StatusSent
	if replaced {
		status = StatusReplaced
	}
	return Outcome{ChatID: eff.ChatID, Status: status}
}

// sendAlbum sends all photos in one media group, pins the first, and
// records the new ids. The caption rides on the first item only.
func (e *Engine) sendAlbum(ctx context.Context, rec *chatstore.Record, eff Effective, urls []string) Outcome {
	msgs, err := e.client.SendMediaGroup(ctx, telegram.SendMediaGroupRequest{
		ChatID:          eff.ChatID,
		Media:           e.album(urls, eff.Caption),
		MessageThreadID: eff.ThreadID,
	})
	if err != nil {
		switch telegram.Classify(err) {
		case telegram.KindRemoved:
			return e.unregister(eff.ChatID, err)
		case telegram.KindTopicClosed:
			return Outcome{ChatID: eff.ChatID, Status: StatusTopicClosed, Reason: "topic closed"}
		}
		return Outcome{ChatID: eff.ChatID, Status: StatusFailed, Err: fmt.Errorf("send album: %w", err)}
	}
	if len(msgs) == 0 {
		return Outcome{ChatID: eff.ChatID, Status: StatusFailed, Err: fmt.Errorf("send album: empty result")}
	}

	ids := make([]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}

	e.pin(ctx, eff.ChatID, ids[0])
	rec.SetAlbumMessages(ids)
	e.state.MarkDirty()
	return Outcome{ChatID: eff.ChatID, Status: StatusSent}
}

// editSingle refreshes the stored single message in place. An unreachable
// message (an unrecognized 400) is dropped and replaced with a fresh send.
func (e *Engine) editSingle(ctx context.Context, rec *chatstore.Record, eff Effective, url string) Outcome {
	_, err := e.client.EditMessageMedia(ctx, telegram.EditMessageMediaRequest{
		ChatID:    eff.ChatID,
		MessageID: rec.MessageID,
		Media: telegram.InputMediaPhoto{
			Type:    "photo",
			Media:   e.cacheBust(url),
			Caption: e.stampedCaption(eff.Caption),
		},
	})

	status := StatusEdited
	if err != nil {
		switch telegram.Classify(err) {
		case telegram.KindNotModified:
			status = StatusUnchanged
		case telegram.KindRemoved:
			return e.unregister(eff.ChatID, err)
		case telegram.KindTopicClosed:
			return Outcome{ChatID: eff.ChatID, Status: StatusTopicClosed, Reason: "topic closed"}
		case telegram.KindBadRequest:
			// The message is gone or not editable: retire what we can
			// and start over with a fresh send.
			e.logger.Warn("edit target unreachable, replacing",
				"chat_id", eff.ChatID,
				"message_id", rec.MessageID,
				"error", err,
			)
			delErr := e.client.DeleteMessage(ctx, telegram.DeleteMessageRequest{
				ChatID:    eff.ChatID,
				MessageID: rec.MessageID,
			})
			if delErr != nil && telegram.Classify(delErr) != telegram.KindDeleteGone {
				e.logger.Warn("stale message delete failed",
					"chat_id", eff.ChatID,
					"message_id", rec.MessageID,
					"error", delErr,
				)
			}
			return e.sendSingle(ctx, rec, eff, url, true)
		default:
			return Outcome{ChatID: eff.ChatID, Status: StatusFailed, Err: fmt.Errorf("edit photo: %w", err)}
		}
	}

	// An in-place edit leaves the stored id as it was: nothing to persist.
	e.pin(ctx, eff.ChatID, rec.MessageID)
	return Outcome{ChatID: eff.ChatID, Status: status}
}

// editAlbum refreshes each stored album message by position. Per-item
// failures are counted but never abort the loop: partial staleness beats
// destroying a working album. The first id is re-pinned at the end.
func (e *Engine) editAlbum(ctx context.Context, rec *chatstore.Record, eff Effective, urls []string) Outcome {
	unchanged := 0
	failures := 0

	for i, id := range rec.MessageIDs {
		caption := ""
		if i == 0 {
			caption = e.stampedCaption(eff.Caption)
		}
		_, err := e.client.EditMessageMedia(ctx, telegram.EditMessageMediaRequest{
			ChatID:    eff.ChatID,
			MessageID: id,
			Media: telegram.InputMediaPhoto{
				Type:    "photo",
				Media:   e.cacheBust(urls[i]),
				Caption: caption,
			},
		})
		if err == nil {
			continue
		}
		switch telegram.Classify(err) {
		case telegram.KindNotModified:
			unchanged++
		case telegram.KindRemoved:
			return e.unregister(eff.ChatID, err)
		default:
			failures++
			e.logger.Warn("album item edit failed",
				"chat_id", eff.ChatID,
				"message_id", id,
				"position", i,
				"error", err,
			)
		}
	}

	if failures > 0 {
		e.logger.Warn("album edited with failures",
			"chat_id", eff.ChatID,
			"failed_items", failures,
			"total_items", len(rec.MessageIDs),
		)
	}

	e.pin(ctx, eff.ChatID, rec.MessageIDs[0])

	if unchanged == len(rec.MessageIDs) {
		return Outcome{ChatID: eff.ChatID, Status: StatusUnchanged}
	}
	return Outcome{ChatID: eff.ChatID, Status: StatusEdited}
}

// unregister drops the chat after an authoritative removal error.
func (e *Engine) unregister(chatID string, err error) Outcome {
	e.state.Delete(chatID)
	e.logger.Info("chat unregistered by gateway", "chat_id", chatID, "error", err)
	return Outcome{ChatID: chatID, Status: StatusUnregistered, Reason: "bot removed"}
}

// pin keeps the schedule at the top of the chat. Pinning is best-effort:
// a chat that forbids pinning still gets its updates.
func (e *Engine) pin(ctx context.Context, chatID string, messageID int) {
	err := e.client.PinChatMessage(ctx, telegram.PinChatMessageRequest{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		e.logger.Warn("pin failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

// album builds the media-group payload. Telegram shows an album caption
// only when exactly one item carries it, so the stamped caption goes on
// the first photo alone.
func (e *Engine) album(urls []string, caption string) []telegram.InputMediaPhoto {
	media := make([]telegram.InputMediaPhoto, len(urls))
	for i, url := range urls {
		media[i] = telegram.InputMediaPhoto{
			Type:  "photo",
			Media: e.cacheBust(url),
		}
		if i == 0 {
			media[i].Caption = e.stampedCaption(caption)
		}
	}
	return media
}

// stampedCaption appends the Kyiv-local update timestamp.
func (e *Engine) stampedCaption(caption string) string {
	return caption + "\n\n🕓 Оновлено: " + kyivtime.Stamp(e.now())
}

// cacheBust appends a fresh query value so clients never serve a stale
// cached image for the same URL.
func (e *Engine) cacheBust(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%scb=%d", url, sep, e.now().UnixMilli())
}
