package runner

import (
	"log/slog"

	"github.com/ivan200424/graphenko/internal/reconcile"
)

// Summary aggregates one run's per-chat outcomes.
type Summary struct {
	Registered   int
	Sent         int
	Replaced     int
	Edited       int
	Unchanged    int
	Skipped      int
	Unregistered int
	TopicClosed  int
	Invalid      int
	Failed       int
}

// Summarize counts outcomes by status.
func Summarize(outcomes []reconcile.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case reconcile.StatusSent:
			s.Sent++
		case reconcile.StatusReplaced:
			s.Replaced++
		case reconcile.StatusEdited:
			s.Edited++
		case reconcile.StatusUnchanged:
			s.Unchanged++
		case reconcile.StatusSkipped:
			s.Skipped++
		case reconcile.StatusUnregistered:
			s.Unregistered++
		case reconcile.StatusTopicClosed:
			s.TopicClosed++
		case reconcile.StatusInvalid:
			s.Invalid++
		case reconcile.StatusFailed:
			s.Failed++
		}
	}
	return s
}

// HasFailures reports whether any chat ended in a genuine operational
// failure. Invalid configurations do not count.
func (s Summary) HasFailures() bool { return s.Failed > 0 }

// LogValue renders the summary as structured fields.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("registered", s.Registered),
		slog.Int("sent", s.Sent),
		slog.Int("replaced", s.Replaced),
		slog.Int("edited", s.Edited),
		slog.Int("unchanged", s.Unchanged),
		slog.Int("skipped", s.Skipped),
		slog.Int("unregistered", s.Unregistered),
		slog.Int("topic_closed", s.TopicClosed),
		slog.Int("invalid", s.Invalid),
		slog.Int("failed", s.Failed),
	)
}
