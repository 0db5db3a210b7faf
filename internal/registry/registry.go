// Package registry maintains chat existence in the persisted map from
// membership-change updates. It never touches message content: registration
// alone must not activate notifications.
package registry

import (
	"log/slog"
	"strconv"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/telegram"
)

// chatTypes the bot registers in. Private chats are ignored.
var chatTypes = map[string]bool{
	"channel":    true,
	"supergroup": true,
	"group":      true,
}

// Apply processes membership-change events from an update batch, creating
// and deleting chat records in state. It returns the ids of chats that were
// newly registered, in arrival order, so the caller can welcome each
// exactly once.
func Apply(state *chatstore.State, updates []telegram.Update, logger *slog.Logger) []string {
	var registered []string

	for _, upd := range updates {
		mcm := upd.MyChatMember
		if mcm == nil || !chatTypes[mcm.Chat.Type] {
			continue
		}

		chatID := strconv.FormatInt(mcm.Chat.ID, 10)
		status := mcm.NewChatMember.Status

		switch status {
		case "left", "kicked", "restricted":
			if state.Delete(chatID) {
				logger.Info("chat unregistered",
					"chat_id", chatID,
					"title", mcm.Chat.Title,
					"status", status,
				)
			}
		case "administrator", "creator", "member":
			if _, created := state.Ensure(chatID); created {
				registered = append(registered, chatID)
				logger.Info("chat registered",
					"chat_id", chatID,
					"title", mcm.Chat.Title,
					"status", status,
				)
			}
		}
	}

	return registered
}
