package telegram

import (
	"errors"
	"strings"
)

// Kind classifies the outcome of a Bot API call into the closed set of
// conditions the engines act on. The Bot API does not expose structured
// error kinds for these cases, so classification matches code plus a
// substring of the free-text description. All substring rules live here;
// callers never inspect raw descriptions.
type Kind int

const (
	// KindTransport means the request never produced an API response.
	KindTransport Kind = iota
	// KindAPI is an API failure with no special meaning for the engines.
	KindAPI
	// KindBadRequest is a 400 response not matching a recognized pattern.
	// On edit calls it signals an unreachable message (replace and resend).
	KindBadRequest
	// KindRemoved means the bot is no longer a member of the chat.
	KindRemoved
	// KindTopicClosed means the target forum topic no longer accepts posts.
	KindTopicClosed
	// KindNotModified means the requested edit left the message unchanged.
	KindNotModified
	// KindDeleteGone means the message to delete is already gone.
	KindDeleteGone
)

// Classify maps an error from a Client call to its Kind.
func Classify(err error) Kind {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return KindTransport
	}

	switch apiErr.Code {
	case 403:
		if strings.Contains(strings.ToLower(apiErr.Description), "not a member") {
			return KindRemoved
		}
	case 400:
		desc := strings.ToLower(apiErr.Description)
		switch {
		case strings.Contains(apiErr.Description, "TOPIC_CLOSED"):
			return KindTopicClosed
		case strings.Contains(desc, "message is not modified"):
			return KindNotModified
		case strings.Contains(desc, "message to delete not found"):
			return KindDeleteGone
		}
		return KindBadRequest
	}
	return KindAPI
}

// String returns a short label for logging.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindBadRequest:
		return "bad-request"
	case KindRemoved:
		return "removed"
	case KindTopicClosed:
		return "topic-closed"
	case KindNotModified:
		return "not-modified"
	case KindDeleteGone:
		return "delete-gone"
	}
	return "unknown"
}
