package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/telegram"
)

// fixedNow is a winter instant: Kyiv is UTC+2, so the stamp reads 12:30.
var fixedNow = time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

const stamp = "\n\n🕓 Оновлено: 12:30, 15.01.2025"

func bust(url string) string {
	return fmt.Sprintf("%s?cb=%d", url, fixedNow.UnixMilli())
}

type apiCall struct {
	method string
	body   map[string]any
}

func (c apiCall) str(key string) string {
	s, _ := c.body[key].(string)
	return s
}

func (c apiCall) num(key string) int {
	n, _ := c.body[key].(float64)
	return int(n)
}

// fakeAPI is a scriptable Bot API server. Message ids are handed out
// sequentially starting from 1.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []apiCall
	nextID int

	sendErr   func() (int, string)
	editErr   func(messageID int) (int, string)
	deleteErr func(messageID int) (int, string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	json.Unmarshal(data, &body)

	method := path.Base(r.URL.Path)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{method: method, body: body})

	fail := func(code int, desc string) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": code, "description": desc,
		})
	}
	ok := func(result any) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}

	switch method {
	case "sendPhoto":
		if f.sendErr != nil {
			if code, desc := f.sendErr(); code != 0 {
				fail(code, desc)
				return
			}
		}
		f.nextID++
		ok(map[string]any{"message_id": f.nextID})
	case "sendMediaGroup":
		if f.sendErr != nil {
			if code, desc := f.sendErr(); code != 0 {
				fail(code, desc)
				return
			}
		}
		media, _ := body["media"].([]any)
		msgs := make([]map[string]any, len(media))
		for i := range media {
			f.nextID++
			msgs[i] = map[string]any{"message_id": f.nextID}
		}
		ok(msgs)
	case "editMessageMedia":
		id := int(body["message_id"].(float64))
		if f.editErr != nil {
			if code, desc := f.editErr(id); code != 0 {
				fail(code, desc)
				return
			}
		}
		ok(map[string]any{"message_id": id})
	case "deleteMessage":
		id := int(body["message_id"].(float64))
		if f.deleteErr != nil {
			if code, desc := f.deleteErr(id); code != 0 {
				fail(code, desc)
				return
			}
		}
		ok(true)
	default:
		ok(true)
	}
}

// methods returns the sequence of Bot API methods called so far.
func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeAPI) call(i int) apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// loadState builds a state from a canonical on-disk map, so the dirty
// flag starts false and dirty-tracking assertions are meaningful.
func loadState(t *testing.T, content string) *chatstore.State {
	t.Helper()
	file := filepath.Join(t.TempDir(), "chats.json")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	state, err := chatstore.Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if state.Dirty() {
		t.Fatal("fixture state loaded dirty")
	}
	return state
}

func newTestEngine(t *testing.T, state *chatstore.State, api *fakeAPI) *Engine {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	e := New(state, telegram.NewClient("TEST:token", srv.URL),
		"Default caption", 0,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return fixedNow }
	e.sleep = func(time.Duration) {}
	return e
}

func assertMethods(t *testing.T, api *fakeAPI, want ...string) {
	t.Helper()
	got := api.methods()
	if len(got) != len(want) {
		t.Fatalf("methods = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("methods = %v, want %v", got, want)
		}
	}
}

func TestRunFreshSingleSend(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100111")
	rec.Image = chatstore.SingleImage("https://img.example/group1.png")

	api := &fakeAPI{}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if len(outcomes) != 1 || outcomes[0].Status != StatusSent {
		t.Fatalf("outcomes = %+v, want one sent", outcomes)
	}
	assertMethods(t, api, "sendPhoto", "pinChatMessage")

	send := api.call(0)
	if got := send.str("chat_id"); got != "-100111" {
		t.Errorf("chat_id = %q", got)
	}
	if got := send.str("photo"); got != bust("https://img.example/group1.png") {
		t.Errorf("photo = %q", got)
	}
	if got := send.str("caption"); got != "Default caption"+stamp {
		t.Errorf("caption = %q", got)
	}

	pin := api.call(1)
	if pin.num("message_id") != 1 || pin.body["disable_notification"] != true {
		t.Errorf("pin call = %+v", pin.body)
	}
	if rec.MessageID != 1 {
		t.Errorf("MessageID = %d, want 1", rec.MessageID)
	}
	if rec.Caption != "" {
		t.Errorf("default caption materialized into the record: %q", rec.Caption)
	}
	if !state.Dirty() {
		t.Error("state not marked dirty")
	}
}

// A steady-state pass (stored values already match, edit answers "not
// modified") must leave the map clean so the chats file is not rewritten
// on every invocation.
func TestRunSteadyStateLeavesMapClean(t *testing.T) {
	state := loadState(t, `[
  {
    "-100555": {
      "image_url": "https://img.example/x.png",
      "message_id": 42
    }
  }
]
`)

	api := &fakeAPI{
		editErr: func(int) (int, string) {
			return 400, "Bad Request: message is not modified"
		},
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusUnchanged {
		t.Fatalf("status = %v, want unchanged", outcomes[0].Status)
	}
	if state.Dirty() {
		t.Error("steady-state run marked the map dirty")
	}
	rec, _ := state.Get("-100555")
	if rec.Caption != "" {
		t.Errorf("caption override materialized: %q", rec.Caption)
	}
	if rec.MessageID != 42 {
		t.Errorf("MessageID = %d, want 42", rec.MessageID)
	}
}

func TestRunAlbumEditInPlace(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100222")
	rec.Image = chatstore.AlbumImage([]string{
		"https://img.example/a.png",
		"https://img.example/b.png",
	})
	rec.MessageIDs = []int{10, 11}
	rec.Caption = "Чернігів"

	api := &fakeAPI{}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusEdited {
		t.Fatalf("status = %v, want edited", outcomes[0].Status)
	}
	assertMethods(t, api, "editMessageMedia", "editMessageMedia", "pinChatMessage")

	first := api.call(0)
	if first.num("message_id") != 10 {
		t.Errorf("first edit message_id = %d, want 10", first.num("message_id"))
	}
	media, _ := first.body["media"].(map[string]any)
	if got, _ := media["caption"].(string); got != "Чернігів"+stamp {
		t.Errorf("first item caption = %q", got)
	}
	if got, _ := media["media"].(string); got != bust("https://img.example/a.png") {
		t.Errorf("first item media = %q", got)
	}

	second := api.call(1)
	media2, _ := second.body["media"].(map[string]any)
	if got, has := media2["caption"]; has && got != "" {
		t.Errorf("second item carries caption %q", got)
	}

	if api.call(2).num("message_id") != 10 {
		t.Errorf("re-pin target = %d, want 10", api.call(2).num("message_id"))
	}
}

// One failing album item must not abort the loop or fail the chat: the
// remaining items are still edited and the first id is re-pinned.
func TestRunAlbumEditItemFailureKeepsGoing(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100222")
	rec.Image = chatstore.AlbumImage([]string{
		"https://img.example/a.png",
		"https://img.example/b.png",
		"https://img.example/c.png",
	})
	rec.MessageIDs = []int{10, 11, 12}

	api := &fakeAPI{
		editErr: func(messageID int) (int, string) {
			if messageID == 11 {
				return 500, "Internal Server Error"
			}
			return 0, ""
		},
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusEdited {
		t.Fatalf("status = %v, want edited", outcomes[0].Status)
	}
	if outcomes[0].Failed() {
		t.Error("a partial album edit must not count as a failure")
	}
	assertMethods(t, api, "editMessageMedia", "editMessageMedia", "editMessageMedia", "pinChatMessage")
	for i, want := range []int{10, 11, 12} {
		if got := api.call(i).num("message_id"); got != want {
			t.Errorf("edit %d targeted message %d, want %d", i, got, want)
		}
	}
	if api.call(3).num("message_id") != 10 {
		t.Errorf("re-pin target = %d, want 10", api.call(3).num("message_id"))
	}
	if got := rec.MessageIDs; len(got) != 3 || got[0] != 10 || got[2] != 12 {
		t.Errorf("MessageIDs = %v, want unchanged [10 11 12]", got)
	}
}

func TestRunAlbumCountMismatchResends(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100333")
	rec.Image = chatstore.AlbumImage([]string{
		"https://img.example/a.png",
		"https://img.example/b.png",
		"https://img.example/c.png",
	})
	rec.MessageIDs = []int{10, 11}

	api := &fakeAPI{}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusSent {
		t.Fatalf("status = %v, want sent", outcomes[0].Status)
	}
	assertMethods(t, api, "deleteMessage", "deleteMessage", "sendMediaGroup", "pinChatMessage")

	if api.call(0).num("message_id") != 10 || api.call(1).num("message_id") != 11 {
		t.Error("stale album messages not deleted in order")
	}
	media, _ := api.call(2).body["media"].([]any)
	if len(media) != 3 {
		t.Fatalf("media group size = %d, want 3", len(media))
	}
	firstItem, _ := media[0].(map[string]any)
	if got, _ := firstItem["caption"].(string); got == "" {
		t.Error("first album item missing caption")
	}
	for i, item := range media[1:] {
		m, _ := item.(map[string]any)
		if got, has := m["caption"]; has && got != "" {
			t.Errorf("item %d carries caption %q", i+1, got)
		}
	}

	if got := rec.MessageIDs; len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("MessageIDs = %v, want [1 2 3]", got)
	}
	if api.call(3).num("message_id") != 1 {
		t.Errorf("pin target = %d, want 1", api.call(3).num("message_id"))
	}
}

func TestRunRemovedChatUnregisters(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100444")
	rec.Image = chatstore.SingleImage("https://img.example/x.png")

	api := &fakeAPI{
		sendErr: func() (int, string) {
			return 403, "Forbidden: bot is not a member of the channel chat"
		},
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusUnregistered {
		t.Fatalf("status = %v, want unregistered", outcomes[0].Status)
	}
	if _, ok := state.Get("-100444"); ok {
		t.Error("record survived removal")
	}
	if !state.Dirty() {
		t.Error("state not marked dirty")
	}
}

func TestRunEditNotModified(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100555")
	rec.Image = chatstore.SingleImage("https://img.example/x.png")
	rec.MessageID = 42

	api := &fakeAPI{
		editErr: func(int) (int, string) {
			return 400, "Bad Request: message is not modified"
		},
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusUnchanged {
		t.Fatalf("status = %v, want unchanged", outcomes[0].Status)
	}
	// The pin is refreshed even when the content did not change.
	assertMethods(t, api, "editMessageMedia", "pinChatMessage")
	if rec.MessageID != 42 {
		t.Errorf("MessageID = %d, want 42", rec.MessageID)
	}
}

func TestRunEditUnreachableReplaces(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100666")
	rec.Image = chatstore.SingleImage("https://img.example/x.png")
	rec.MessageID = 42

	api := &fakeAPI{
		editErr: func(int) (int, string) {
			return 400, "Bad Request: message to edit not found"
		},
		deleteErr: func(int) (int, string) {
			return 400, "Bad Request: message to delete not found"
		},
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusReplaced {
		t.Fatalf("status = %v, want replaced", outcomes[0].Status)
	}
	assertMethods(t, api, "editMessageMedia", "deleteMessage", "sendPhoto", "pinChatMessage")
	if rec.MessageID != 1 {
		t.Errorf("MessageID = %d, want fresh id 1", rec.MessageID)
	}
}

func TestRunTopicClosedKeepsRecord(t *testing.T) {
	state := chatstore.NewState()
	rec, _ := state.Ensure("-100777")
	rec.Image = chatstore.SingleImage("https://img.example/x.png")
	rec.MessageThreadID = 7

	api := &fakeAPI{
		sendErr: func() (int, string) { return 400, "Bad Request: TOPIC_CLOSED" },
	}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusTopicClosed {
		t.Fatalf("status = %v, want topic-closed", outcomes[0].Status)
	}
	if _, ok := state.Get("-100777"); !ok {
		t.Error("record dropped for a non-fatal skip")
	}
}

func TestRunNoImageSkips(t *testing.T) {
	state := chatstore.NewState()
	state.Ensure("-100888")

	api := &fakeAPI{}
	outcomes := newTestEngine(t, state, api).Run(context.Background())

	if outcomes[0].Status != StatusSkipped || outcomes[0].Reason != "no-image" {
		t.Fatalf("outcome = %+v, want skipped/no-image", outcomes[0])
	}
	assertMethods(t, api)
}

func TestRunFailureDoesNotStopLoop(t *testing.T) {
	state := chatstore.NewState()
	a, _ := state.Ensure("-100111")
	a.Image = chatstore.SingleImage("https://img.example/a.png")
	b, _ := state.Ensure("-100222")
	b.Image = chatstore.SingleImage("https://img.example/b.png")

	// The first sendPhoto fails hard, the second chat must still be served.
	calls := 0
	api := &fakeAPI{}
	api.sendErr = func() (int, string) {
		calls++
		if calls == 1 {
			return 500, "Internal Server Error"
		}
		return 0, ""
	}

	outcomes := newTestEngine(t, state, api).Run(context.Background())
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Failed() {
		t.Errorf("first outcome = %+v, want failed", outcomes[0])
	}
	if outcomes[1].Status != StatusSent {
		t.Errorf("second outcome = %+v, want sent", outcomes[1])
	}
}
