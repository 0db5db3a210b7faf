package chatstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

// State is the in-memory chat map plus the dirty flag shared by all
// processing phases. It is passed by reference through the registration,
// command, and reconciliation engines; the run driver saves it at most once
// per run, and only when dirty.
type State struct {
	records map[string]*Record
	dirty   bool
}

// NewState returns an empty, clean state.
func NewState() *State {
	return &State{records: make(map[string]*Record)}
}

// Load reads the chat map from path. A missing file yields an empty clean
// state. Both on-disk record shapes are accepted: the canonical single-key
// wrapper and a flat record carrying its own chat_id field; a legacy
// top-level object map is tolerated as well. Records marked deleted are
// dropped. Any normalization performed during load marks the state dirty so
// the canonical shape is written back at the end of the run.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatstore: reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewState(), nil
	}

	s := NewState()

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err == nil {
		for _, entry := range entries {
			if err := s.loadEntry(entry); err != nil {
				return nil, err
			}
		}
		return s, nil
	}

	// Legacy shape: one object mapping chat id to record.
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("chatstore: %s is neither an array nor an object: %w", path, err)
	}
	for id, raw := range legacy {
		if err := s.loadRecord(id, raw); err != nil {
			return nil, err
		}
	}
	s.dirty = true
	return s, nil
}

// loadEntry parses one array element in either record shape.
func (s *State) loadEntry(entry json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return fmt.Errorf("chatstore: entry is not an object: %w", err)
	}

	if rawID, ok := fields["chat_id"]; ok {
		id, err := chatID(rawID)
		if err != nil {
			return err
		}
		s.dirty = true // flat shape normalizes to the wrapper shape
		return s.loadRecord(id, entry)
	}

	if len(fields) != 1 {
		s.dirty = true // unrecognized entry, dropped
		return nil
	}
	for id, raw := range fields {
		return s.loadRecord(id, raw)
	}
	return nil
}

// loadRecord parses a record body and stores it under id.
func (s *State) loadRecord(id string, raw json.RawMessage) error {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("chatstore: chat %s: %w", id, err)
	}

	// chat_id travels in the map key; deleted records are dropped on load.
	if _, ok := rec.extra["chat_id"]; ok {
		delete(rec.extra, "chat_id")
	}
	if rawDel, ok := rec.extra["deleted"]; ok {
		var deleted bool
		_ = json.Unmarshal(rawDel, &deleted)
		s.dirty = true
		if deleted {
			return nil
		}
		delete(rec.extra, "deleted")
	}

	s.records[id] = &rec
	return nil
}

// chatID canonicalizes a chat identifier to string form.
func chatID(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var num int64
	if err := json.Unmarshal(raw, &num); err == nil {
		return strconv.FormatInt(num, 10), nil
	}
	return "", fmt.Errorf("chatstore: chat_id must be a string or an integer")
}

// Save writes the full map in canonical form: a JSON array of single-key
// objects, chat ids sorted lexicographically, two-space indent, trailing
// newline. The write is atomic (temp file plus rename).
func (s *State) Save(path string) error {
	entries := make([]map[string]*Record, 0, len(s.records))
	for _, id := range s.ChatIDs() {
		entries = append(entries, map[string]*Record{id: s.records[id]})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("chatstore: encoding: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("chatstore: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chatstore: writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chatstore: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chatstore: replacing %s: %w", path, err)
	}
	return nil
}

// Get returns the record for a chat id, if present.
func (s *State) Get(id string) (*Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Ensure returns the record for a chat id, creating an empty one if absent.
// The second result reports whether a record was created; creation marks
// the state dirty.
func (s *State) Ensure(id string) (*Record, bool) {
	if rec, ok := s.records[id]; ok {
		return rec, false
	}
	rec := &Record{}
	s.records[id] = rec
	s.dirty = true
	return rec, true
}

// Delete removes a chat's record. It reports whether a record was removed;
// removal marks the state dirty.
func (s *State) Delete(id string) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.dirty = true
	return true
}

// ChatIDs returns every known chat id in lexicographic order.
func (s *State) ChatIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of known chats.
func (s *State) Len() int { return len(s.records) }

// Dirty reports whether the in-memory map differs from its on-disk copy.
func (s *State) Dirty() bool { return s.dirty }

// MarkDirty records that a mutation happened and the map must be rewritten.
func (s *State) MarkDirty() { s.dirty = true }
