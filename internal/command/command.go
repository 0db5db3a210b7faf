// Package command processes the two text commands that configure a chat's
// image URL and caption override.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/telegram"
)

const (
	captionCommand = "/graphenko_caption"
	imageCommand   = "/graphenko_image"
)

// Processor matches inbound text against the command grammars and mutates
// the chat map accordingly. Replies and trigger-message cleanup go through
// the gateway; all reply sends and deletes are best-effort.
type Processor struct {
	state      *chatstore.State
	client     *telegram.Client
	verifier   *Verifier
	imagesBase string
	logger     *slog.Logger
}

// New creates a Processor over the given state.
func New(state *chatstore.State, client *telegram.Client, verifier *Verifier, imagesBase string, logger *slog.Logger) *Processor {
	return &Processor{
		state:      state,
		client:     client,
		verifier:   verifier,
		imagesBase: imagesBase,
		logger:     logger,
	}
}

// Apply processes every text-bearing update in arrival order. A chat may
// match several times across the batch; each match is handled. Unmatched
// text is ignored.
func (p *Processor) Apply(ctx context.Context, updates []telegram.Update) {
	for _, upd := range updates {
		msg := upd.Post()
		if msg == nil || msg.Text == "" {
			continue
		}

		cmd, arg, ok := parse(msg.Text)
		if !ok {
			continue
		}

		chatID := strconv.FormatInt(msg.Chat.ID, 10)
		switch cmd {
		case captionCommand:
			p.applyCaption(ctx, chatID, msg, arg)
		case imageCommand:
			p.applyImage(ctx, chatID, msg, arg)
		}
	}
}

// parse splits a message into a recognized command word and its argument.
// The command word is case-insensitive and tolerates a @mention suffix.
func parse(text string) (cmd, arg string, ok bool) {
	head, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		head = head[:at]
	}
	head = strings.ToLower(head)
	if head != captionCommand && head != imageCommand {
		return "", "", false
	}
	return head, strings.TrimSpace(rest), true
}

func (p *Processor) applyCaption(ctx context.Context, chatID string, msg *telegram.Message, arg string) {
	if arg == "" {
		p.reply(ctx, chatID, msg, "⚠️ Вкажіть текст підпису після команди, або -default щоб скинути.")
		return
	}

	rec, _ := p.state.Ensure(chatID)
	if strings.EqualFold(arg, "-default") {
		rec.Caption = ""
		p.state.MarkDirty()
		p.logger.Info("caption reset", "chat_id", chatID)
		p.reply(ctx, chatID, msg, "✅ Підпис скинуто до стандартного.")
	} else {
		rec.Caption = arg
		p.state.MarkDirty()
		p.logger.Info("caption updated", "chat_id", chatID)
		p.reply(ctx, chatID, msg, "✅ Підпис оновлено.")
	}

	p.deleteTrigger(ctx, chatID, msg)
}

func (p *Processor) applyImage(ctx context.Context, chatID string, msg *telegram.Message, arg string) {
	if !p.validImageURL(arg) {
		p.reply(ctx, chatID, msg, fmt.Sprintf(
			"⚠️ Посилання має починатися з %s і закінчуватися на .png.\nПриклад: %skyiv/gpv-3-1-emergency.png",
			p.imagesBase, p.imagesBase,
		))
		return
	}

	if err := p.verifier.VerifyPNG(ctx, arg); err != nil {
		p.logger.Warn("image verification failed", "chat_id", chatID, "url", arg, "error", err)
		p.reply(ctx, chatID, msg, "❌ Не вдалося завантажити зображення, або це не PNG.")
		return
	}

	rec, _ := p.state.Ensure(chatID)
	rec.Image = chatstore.SingleImage(arg)
	p.state.MarkDirty()
	p.logger.Info("image updated", "chat_id", chatID, "url", arg)

	p.clearWelcome(ctx, chatID, rec)
	p.reply(ctx, chatID, msg, "✅ Зображення оновлено. Графік буде закріплено при наступному запуску.")
	p.deleteTrigger(ctx, chatID, msg)
}

// validImageURL gates the URL syntactically: the configured outage-images
// base prefix, a .png suffix, a single token, and a parseable URL.
func (p *Processor) validImageURL(arg string) bool {
	if arg == "" || strings.ContainsAny(arg, " \t\n") {
		return false
	}
	if !strings.HasPrefix(arg, p.imagesBase) {
		return false
	}
	if !strings.HasSuffix(strings.ToLower(arg), ".png") {
		return false
	}
	u, err := url.Parse(arg)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// clearWelcome deletes a pending welcome message once an image is first
// configured. The field is cleared only when the remote delete succeeded
// (a message that is already gone counts as success).
func (p *Processor) clearWelcome(ctx context.Context, chatID string, rec *chatstore.Record) {
	if rec.WelcomeMessageID == 0 {
		return
	}
	err := p.client.DeleteMessage(ctx, telegram.DeleteMessageRequest{
		ChatID:    chatID,
		MessageID: rec.WelcomeMessageID,
	})
	if err != nil && telegram.Classify(err) != telegram.KindDeleteGone {
		p.logger.Warn("welcome message delete failed",
			"chat_id", chatID,
			"message_id", rec.WelcomeMessageID,
			"error", err,
		)
		return
	}
	rec.WelcomeMessageID = 0
	p.state.MarkDirty()
}

func (p *Processor) reply(ctx context.Context, chatID string, msg *telegram.Message, text string) {
	_, err := p.client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:          chatID,
		Text:            text,
		MessageThreadID: msg.MessageThreadID,
	})
	if err != nil {
		p.logger.Warn("command reply failed", "chat_id", chatID, "error", err)
	}
}

func (p *Processor) deleteTrigger(ctx context.Context, chatID string, msg *telegram.Message) {
	err := p.client.DeleteMessage(ctx, telegram.DeleteMessageRequest{
		ChatID:    chatID,
		MessageID: msg.MessageID,
	})
	if err != nil && telegram.Classify(err) != telegram.KindDeleteGone {
		p.logger.Debug("command message delete failed",
			"chat_id", chatID,
			"message_id", msg.MessageID,
			"error", err,
		)
	}
}
