package reconcile

import "github.com/ivan200424/graphenko/internal/chatstore"

// Action is what the engine does for one chat.
type Action int

const (
	// ActionSendSingle sends a fresh single photo.
	ActionSendSingle Action = iota
	// ActionSendAlbum sends a fresh photo album.
	ActionSendAlbum
	// ActionEditSingle edits the stored single message in place.
	ActionEditSingle
	// ActionEditAlbum edits the stored album messages in place, by position.
	ActionEditAlbum
)

// Decision pairs the chosen action with the stored messages that must be
// deleted first. DeleteIDs is non-empty only for representation switches
// and album size mismatches, which always force a fresh send.
type Decision struct {
	Action    Action
	DeleteIDs []int
}

// Decide maps the stored message state and the effective mode to an action.
// It is a pure function of its inputs: no ordering tricks, one row per
// (stored, effective) combination.
//
//	stored single, effective album        -> delete single, send album
//	stored album,  effective single       -> delete album,  send single
//	stored album,  count mismatch         -> delete album,  send album
//	stored album,  count match            -> edit album
//	stored single, effective single       -> edit single
//	nothing stored                        -> send
func Decide(rec *chatstore.Record, album bool, imageCount int) Decision {
	switch {
	case rec.MessageID != 0:
		if album {
			return Decision{Action: ActionSendAlbum, DeleteIDs: []int{rec.MessageID}}
		}
		return Decision{Action: ActionEditSingle}

	case len(rec.MessageIDs) > 0:
		switch {
		case !album:
			return Decision{Action: ActionSendSingle, DeleteIDs: rec.MessageIDs}
		case len(rec.MessageIDs) != imageCount:
			return Decision{Action: ActionSendAlbum, DeleteIDs: rec.MessageIDs}
		}
		return Decision{Action: ActionEditAlbum}

	default:
		if album {
			return Decision{Action: ActionSendAlbum}
		}
		return Decision{Action: ActionSendSingle}
	}
}
