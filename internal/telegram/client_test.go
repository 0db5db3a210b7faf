package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTEST_TOKEN/getMe" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		writeJSON(t, w, APIResponse[User]{
			OK: true,
			Result: User{
				ID:        123,
				IsBot:     true,
				FirstName: "Graphenko",
				Username:  "graphenko_bot",
			},
		})
	}))
	defer srv.Close()

	client := NewClient("TEST_TOKEN", srv.URL)
	user, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if user.ID != 123 {
		t.Errorf("ID = %d, want 123", user.ID)
	}
	if !user.IsBot {
		t.Error("IsBot = false, want true")
	}
	if user.Username != "graphenko_bot" {
		t.Errorf("Username = %q, want %q", user.Username, "graphenko_bot")
	}
}

func TestSendPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendPhoto" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		var req SendPhotoRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if req.ChatID != "-100111" {
			t.Errorf("ChatID = %q, want %q", req.ChatID, "-100111")
		}
		if req.Photo != "https://host/a.png?cb=1" {
			t.Errorf("Photo = %q, want %q", req.Photo, "https://host/a.png?cb=1")
		}
		if req.Caption != "caption" {
			t.Errorf("Caption = %q, want %q", req.Caption, "caption")
		}

		writeJSON(t, w, APIResponse[Message]{
			OK: true,
			Result: Message{
				MessageID: 77,
				Chat:      Chat{ID: -100111, Type: "channel"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	msg, err := client.SendPhoto(context.Background(), SendPhotoRequest{
		ChatID:  "-100111",
		Photo:   "https://host/a.png?cb=1",
		Caption: "caption",
	})
	if err != nil {
		t.Fatalf("SendPhoto() error: %v", err)
	}
	if msg.MessageID != 77 {
		t.Errorf("MessageID = %d, want 77", msg.MessageID)
	}
}

func TestSendMediaGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMediaGroup" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		var req SendMediaGroupRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if len(req.Media) != 2 {
			t.Fatalf("len(Media) = %d, want 2", len(req.Media))
		}
		if req.Media[0].Caption == "" {
			t.Error("Media[0].Caption is empty, want caption on first item")
		}
		if req.Media[1].Caption != "" {
			t.Errorf("Media[1].Caption = %q, want empty", req.Media[1].Caption)
		}

		writeJSON(t, w, APIResponse[[]Message]{
			OK: true,
			Result: []Message{
				{MessageID: 10},
				{MessageID: 11},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	msgs, err := client.SendMediaGroup(context.Background(), SendMediaGroupRequest{
		ChatID: "-100222",
		Media: []InputMediaPhoto{
			{Type: "photo", Media: "https://host/u1.png", Caption: "caption"},
			{Type: "photo", Media: "https://host/u2.png"},
		},
	})
	if err != nil {
		t.Fatalf("SendMediaGroup() error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].MessageID != 10 || msgs[1].MessageID != 11 {
		t.Errorf("unexpected result: %+v", msgs)
	}
}

func TestGetUpdatesDecodesMyChatMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, APIResponse[[]Update]{
			OK: true,
			Result: []Update{
				{
					UpdateID: 5,
					MyChatMember: &ChatMemberUpdated{
						Chat:          Chat{ID: -100333, Type: "channel", Title: "Світло"},
						OldChatMember: ChatMember{Status: "left"},
						NewChatMember: ChatMember{Status: "administrator"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	updates, err := client.GetUpdates(context.Background(), GetUpdatesRequest{})
	if err != nil {
		t.Fatalf("GetUpdates() error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("len(updates) = %d, want 1", len(updates))
	}
	mcm := updates[0].MyChatMember
	if mcm == nil {
		t.Fatal("MyChatMember is nil")
	}
	if mcm.NewChatMember.Status != "administrator" {
		t.Errorf("NewChatMember.Status = %q, want %q", mcm.NewChatMember.Status, "administrator")
	}
}

func TestAPIErrorReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(t, w, APIResponse[Message]{
			OK:          false,
			ErrorCode:   403,
			Description: "Forbidden: bot is not a member of the channel chat",
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	_, err := client.SendPhoto(context.Background(), SendPhotoRequest{ChatID: "-1", Photo: "u"})
	if err == nil {
		t.Fatal("SendPhoto() error = nil, want APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Code != 403 {
		t.Errorf("Code = %d, want 403", apiErr.Code)
	}
}

func TestDeleteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/deleteMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	if err := client.DeleteMessage(context.Background(), DeleteMessageRequest{ChatID: "-1", MessageID: 9}); err != nil {
		t.Fatalf("DeleteMessage() error: %v", err)
	}
}
