// Package chatstore persists the per-chat configuration map as a JSON file.
// The file is shared with the companion availability monitor, so fields this
// bot does not own must survive load/save round trips byte for byte.
package chatstore

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ImageRef is either a single image URL or an ordered album of URLs.
// The on-disk representation is preserved: a one-element list loads and
// saves as a list, a bare string stays a string.
type ImageRef struct {
	urls []string
	list bool
}

// SingleImage returns an ImageRef holding one URL stored in scalar form.
func SingleImage(url string) ImageRef {
	return ImageRef{urls: []string{url}}
}

// AlbumImage returns an ImageRef holding an ordered list of URLs.
func AlbumImage(urls []string) ImageRef {
	return ImageRef{urls: slices.Clone(urls), list: true}
}

// IsZero reports whether no image is configured. A chat without an image is
// known but dormant: retained in the map, no outbound traffic.
func (r ImageRef) IsZero() bool { return len(r.urls) == 0 }

// IsAlbum reports whether the reference describes an album, i.e. a list
// with more than one entry. A one-element list is treated as a single.
func (r ImageRef) IsAlbum() bool { return r.list && len(r.urls) > 1 }

// URLs returns the image URLs in order.
func (r ImageRef) URLs() []string { return slices.Clone(r.urls) }

// Equal reports whether two references hold the same URLs in the same form.
func (r ImageRef) Equal(o ImageRef) bool {
	return r.list == o.list && slices.Equal(r.urls, o.urls)
}

// MarshalJSON writes a bare string for a scalar reference and a JSON array
// for a list reference.
func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r.list {
		return json.Marshal(r.urls)
	}
	if len(r.urls) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(r.urls[0])
}

// UnmarshalJSON accepts either a string or an array of strings.
func (r *ImageRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ImageRef{urls: []string{s}}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = ImageRef{urls: list, list: true}
		return nil
	}
	return fmt.Errorf("chatstore: image_url must be a string or a list of strings")
}

// Record is the stored configuration and message state of one chat.
//
// Exactly one of MessageID / MessageIDs is set at any time; use the
// SetSingleMessage / SetAlbumMessages helpers to keep the exclusion.
// Fields owned by the monitor travel in extra and are never interpreted.
type Record struct {
	Image            ImageRef
	Caption          string
	MessageThreadID  int
	MessageID        int
	MessageIDs       []int
	WelcomeMessageID int

	extra map[string]json.RawMessage
}

// knownKeys are the JSON keys this bot owns inside a record.
var knownKeys = map[string]bool{
	"image_url":          true,
	"caption":            true,
	"message_thread_id":  true,
	"message_id":         true,
	"message_ids":        true,
	"welcome_message_id": true,
}

// SetSingleMessage records a single pinned message, clearing any album ids.
func (r *Record) SetSingleMessage(id int) {
	r.MessageID = id
	r.MessageIDs = nil
}

// SetAlbumMessages records the album message ids, clearing any single id.
func (r *Record) SetAlbumMessages(ids []int) {
	r.MessageIDs = slices.Clone(ids)
	r.MessageID = 0
}

// ClearMessages forgets all stored message ids.
func (r *Record) ClearMessages() {
	r.MessageID = 0
	r.MessageIDs = nil
}

// RawField returns a field not owned by this bot (monitor state and the
// like) exactly as it appears on disk.
func (r *Record) RawField(key string) (json.RawMessage, bool) {
	raw, ok := r.extra[key]
	return raw, ok
}

// SetRawField stores a field not owned by this bot verbatim.
func (r *Record) SetRawField(key string, raw json.RawMessage) {
	if knownKeys[key] {
		panic(fmt.Sprintf("chatstore: %q is not a raw field", key))
	}
	if r.extra == nil {
		r.extra = make(map[string]json.RawMessage)
	}
	r.extra[key] = raw
}

// MarshalJSON writes the record as a flat object. encoding/json sorts map
// keys, which gives the canonical lexicographic key order the save format
// requires.
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.extra)+6)
	for k, v := range r.extra {
		fields[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("chatstore: marshal %s: %w", key, err)
		}
		fields[key] = raw
		return nil
	}

	if !r.Image.IsZero() {
		if err := put("image_url", r.Image); err != nil {
			return nil, err
		}
	}
	if r.Caption != "" {
		if err := put("caption", r.Caption); err != nil {
			return nil, err
		}
	}
	if r.MessageThreadID != 0 {
		if err := put("message_thread_id", r.MessageThreadID); err != nil {
			return nil, err
		}
	}
	if r.MessageID != 0 {
		if err := put("message_id", r.MessageID); err != nil {
			return nil, err
		}
	}
	if len(r.MessageIDs) > 0 {
		if err := put("message_ids", r.MessageIDs); err != nil {
			return nil, err
		}
	}
	if r.WelcomeMessageID != 0 {
		if err := put("welcome_message_id", r.WelcomeMessageID); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

// UnmarshalJSON reads a flat record object, splitting owned fields from
// verbatim pass-through fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("chatstore: record is not an object: %w", err)
	}

	*r = Record{}
	for key, raw := range fields {
		var err error
		switch key {
		case "image_url":
			err = json.Unmarshal(raw, &r.Image)
		case "caption":
			err = json.Unmarshal(raw, &r.Caption)
		case "message_thread_id":
			err = json.Unmarshal(raw, &r.MessageThreadID)
		case "message_id":
			err = json.Unmarshal(raw, &r.MessageID)
		case "message_ids":
			err = json.Unmarshal(raw, &r.MessageIDs)
		case "welcome_message_id":
			err = json.Unmarshal(raw, &r.WelcomeMessageID)
		default:
			if r.extra == nil {
				r.extra = make(map[string]json.RawMessage)
			}
			r.extra[key] = raw
		}
		if err != nil {
			return fmt.Errorf("chatstore: field %s: %w", key, err)
		}
	}
	return nil
}
