// Package reconcile brings the remote pinned-message state of every known
// chat into agreement with its effective configuration: it decides between
// sending, editing, and switching the single/album representation, executes
// the decision through the Bot API, and records the result back into the
// chat map.
package reconcile

// Status is the terminal state of one chat's reconciliation.
type Status string

const (
	// StatusSent means a fresh message (or album) was sent and pinned.
	StatusSent Status = "sent"
	// StatusReplaced means an edit target was unreachable, so the old
	// message was dropped and a fresh one sent in its place.
	StatusReplaced Status = "replaced"
	// StatusEdited means the existing message(s) were edited in place.
	StatusEdited Status = "edited"
	// StatusUnchanged means the edit found nothing to change.
	StatusUnchanged Status = "unchanged"
	// StatusSkipped means the chat produced no traffic (see Reason).
	StatusSkipped Status = "skipped"
	// StatusUnregistered means the gateway reported the bot removed, and
	// the chat's record was deleted.
	StatusUnregistered Status = "unregistered"
	// StatusTopicClosed means the target forum topic no longer accepts
	// posts. Non-fatal; the chat keeps its record.
	StatusTopicClosed Status = "topic-closed"
	// StatusInvalid marks a data-integrity problem in the configuration.
	// Reported but excluded from the failure count.
	StatusInvalid Status = "invalid"
	// StatusFailed is a genuine operational failure for this chat.
	StatusFailed Status = "failed"
)

// Outcome is the per-chat result of a reconciliation pass.
type Outcome struct {
	ChatID string
	Status Status
	Reason string
	Err    error
}

// Failed reports whether the outcome counts toward the run's failure total.
// Invalid configurations are data issues, not operational failures.
func (o Outcome) Failed() bool { return o.Status == StatusFailed }
