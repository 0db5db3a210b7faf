// Package monitor probes the household host behind each chat over TCP and
// keeps the per-chat monitor state fields current. It shares the chats file
// with the bot but owns a disjoint set of record fields, read and written
// through the raw-field accessors so the stored bytes stay untouched when
// nothing changed.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/ivan200424/graphenko/internal/chatstore"
)

const (
	defaultHost = "93.127.118.86"
	defaultPort = 443

	statusOnline  = "online"
	statusOffline = "offline"
)

// Result is the per-chat outcome of one monitor pass.
type Result struct {
	ChatID string
	Host   string
	Port   int
	Status string
	// Initialized marks the first check of a chat, which records the
	// status without counting as a transition.
	Initialized bool
	// Changed marks an online/offline transition since the last pass.
	Changed bool
}

// Checker runs liveness probes over every monitored chat.
type Checker struct {
	state   *chatstore.State
	timeout time.Duration
	logger  *slog.Logger

	// dial and now are injectable for tests.
	dial func(addr string, timeout time.Duration) (net.Conn, error)
	now  func() time.Time
}

// New creates a Checker over the given state.
func New(state *chatstore.State, timeout time.Duration, logger *slog.Logger) *Checker {
	return &Checker{
		state:   state,
		timeout: timeout,
		logger:  logger,
		dial: func(addr string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		},
		now: time.Now,
	}
}

// Run probes every enabled chat once. State transitions and first checks
// are written back into the records; an unchanged status writes nothing,
// so the caller can save only when the state reports dirty.
func (c *Checker) Run() []Result {
	var results []Result

	for _, chatID := range c.state.ChatIDs() {
		rec, ok := c.state.Get(chatID)
		if !ok {
			continue
		}
		if !rawBool(rec, "monitor_enabled") || rawBool(rec, "light_paused") {
			continue
		}

		host := rawString(rec, "monitor_host", defaultHost)
		port := rawInt(rec, "monitor_port", defaultPort)

		status := statusOffline
		if c.probe(host, port) {
			status = statusOnline
		}

		result := Result{ChatID: chatID, Host: host, Port: port, Status: status}
		prev := rawString(rec, "monitor_last_status", "")
		switch {
		case prev == "":
			c.record(rec, status)
			result.Initialized = true
		case prev != status:
			c.record(rec, status)
			result.Changed = true
			c.logger.Info("monitor status changed",
				"chat_id", chatID,
				"host", host,
				"port", port,
				"from", prev,
				"to", status,
			)
		}
		results = append(results, result)
	}
	return results
}

// probe reports whether a TCP connection to host:port succeeds.
func (c *Checker) probe(host string, port int) bool {
	conn, err := c.dial(net.JoinHostPort(host, strconv.Itoa(port)), c.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// record writes the new status and the change instant (unix milliseconds)
// into the monitor-owned fields.
func (c *Checker) record(rec *chatstore.Record, status string) {
	rec.SetRawField("monitor_last_status", json.RawMessage(strconv.Quote(status)))
	rec.SetRawField("monitor_last_change",
		json.RawMessage(strconv.FormatInt(c.now().UnixMilli(), 10)))
	c.state.MarkDirty()
}

func rawBool(rec *chatstore.Record, key string) bool {
	raw, ok := rec.RawField(key)
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v
}

func rawString(rec *chatstore.Record, key, fallback string) string {
	raw, ok := rec.RawField(key)
	if !ok {
		return fallback
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return v
}

func rawInt(rec *chatstore.Record, key string, fallback int) int {
	raw, ok := rec.RawField(key)
	if !ok {
		return fallback
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return v
}

// Report renders a short human-readable pass summary.
func Report(results []Result) string {
	online, offline, changed := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusOnline:
			online++
		case statusOffline:
			offline++
		}
		if r.Changed {
			changed++
		}
	}
	return fmt.Sprintf("checked %d, online %d, offline %d, changed %d",
		len(results), online, offline, changed)
}
