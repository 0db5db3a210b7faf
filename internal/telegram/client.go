// Package telegram is a thin HTTP wrapper around the Telegram Bot API,
// covering the handful of methods the bot needs: fetching updates, sending
// and editing photo messages, pinning, and deleting.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes prevents unbounded reads from API responses.
const maxResponseBytes = 10 << 20 // 10 MiB

// Client is a thin HTTP wrapper around the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Telegram Bot API client.
func NewClient(token, baseURL string) *Client {
	return &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// do sends a JSON POST request to the given Bot API method and decodes the
// response. Each call is a single attempt: a failed chat is picked up by the
// next scheduled invocation, never retried within the current run.
func do[T any](ctx context.Context, c *Client, method string, payload any) (*T, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Wrap without the raw URL to avoid leaking the token-bearing URL
		// in error messages. The original error is still available via Unwrap.
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var apiResp APIResponse[T]
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
	}

	if !apiResp.OK {
		return nil, &APIError{
			Code:        apiResp.ErrorCode,
			Description: apiResp.Description,
		}
	}

	return &apiResp.Result, nil
}

// GetUpdatesRequest is the request body for the getUpdates method.
type GetUpdatesRequest struct {
	Offset         int      `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SendMessageRequest is the request body for the sendMessage method.
type SendMessageRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	MessageThreadID     int    `json:"message_thread_id,omitempty"`
}

// SendPhotoRequest is the request body for the sendPhoto method.
type SendPhotoRequest struct {
	ChatID              string `json:"chat_id"`
	Photo               string `json:"photo"`
	Caption             string `json:"caption,omitempty"`
	ParseMode           string `json:"parse_mode,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	MessageThreadID     int    `json:"message_thread_id,omitempty"`
}

// InputMediaPhoto describes one photo in a media group or an edit.
type InputMediaPhoto struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// SendMediaGroupRequest is the request body for the sendMediaGroup method.
type SendMediaGroupRequest struct {
	ChatID              string            `json:"chat_id"`
	Media               []InputMediaPhoto `json:"media"`
	DisableNotification bool              `json:"disable_notification,omitempty"`
	MessageThreadID     int               `json:"message_thread_id,omitempty"`
}

// EditMessageMediaRequest is the request body for the editMessageMedia method.
type EditMessageMediaRequest struct {
	ChatID    string          `json:"chat_id"`
	MessageID int             `json:"message_id"`
	Media     InputMediaPhoto `json:"media"`
}

// DeleteMessageRequest is the request body for the deleteMessage method.
type DeleteMessageRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int    `json:"message_id"`
}

// PinChatMessageRequest is the request body for the pinChatMessage method.
type PinChatMessageRequest struct {
	ChatID              string `json:"chat_id"`
	MessageID           int    `json:"message_id"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// GetMe returns the bot's user information.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return do[User](ctx, c, "getMe", nil)
}

// GetUpdates fetches incoming updates. With a zero Timeout this returns the
// currently pending batch without blocking.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error) {
	result, err := do[[]Update](ctx, c, "getUpdates", req)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// SendMessage sends a text message to the specified chat.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	return do[Message](ctx, c, "sendMessage", req)
}

// SendPhoto sends a photo to the specified chat.
func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) (*Message, error) {
	return do[Message](ctx, c, "sendPhoto", req)
}

// SendMediaGroup sends an album of photos in one call. The API returns the
// created messages in album order.
func (c *Client) SendMediaGroup(ctx context.Context, req SendMediaGroupRequest) ([]Message, error) {
	result, err := do[[]Message](ctx, c, "sendMediaGroup", req)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// EditMessageMedia replaces the media (and caption) of an existing message.
func (c *Client) EditMessageMedia(ctx context.Context, req EditMessageMediaRequest) (*Message, error) {
	return do[Message](ctx, c, "editMessageMedia", req)
}

// DeleteMessage deletes a message the bot previously sent.
func (c *Client) DeleteMessage(ctx context.Context, req DeleteMessageRequest) error {
	_, err := do[bool](ctx, c, "deleteMessage", req)
	return err
}

// PinChatMessage pins a message in the chat without notifying members.
func (c *Client) PinChatMessage(ctx context.Context, req PinChatMessageRequest) error {
	_, err := do[bool](ctx, c, "pinChatMessage", req)
	return err
}
