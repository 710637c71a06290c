// Package eventlog writes conversation events (messages, state transitions,
// tool calls) as NDJSON, one file per session plus an optional global file.
package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one line in a conversation log.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction,omitempty"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger accepts events without blocking the caller.
type Logger interface {
	Log(e Event)
	Close() error
}

// Config controls where events are written.
type Config struct {
	Enabled bool
	// Dir holds one <user>/<session>.ndjson file per session.
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	// QueueSize bounds buffered events; events beyond it are dropped.
	QueueSize int
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Log(Event)    {}
func (nopLogger) Close() error { return nil }

// fileLogger writes events from a single background goroutine.
type fileLogger struct {
	cfg     Config
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	closing sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	global  *os.File
}

// New starts a file logger. It returns Nop when neither per-session nor
// global logging is enabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return Nop(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	if cfg.Enabled {
		if cfg.Dir == "" {
			return nil, errors.New("conversation log dir is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation log dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if cfg.GlobalPath == "" {
			return nil, errors.New("global conversation log path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		l.global = f
	}

	go l.run()
	return l, nil
}

// Log enqueues e. Content is derived from ContentRaw when empty and
// Timestamp defaults to now.
func (l *fileLogger) Log(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.Content == "" && e.ContentRaw != "" {
		e.Content = cleanForReadability(e.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Close drains the queue and closes the files.
func (l *fileLogger) Close() error {
	var err error
	l.closing.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
		if l.global != nil {
			err = l.global.Close()
		}
	})
	return err
}

func (l *fileLogger) run() {
	defer close(l.done)
	for e := range l.queue {
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Warn("Failed to encode conversation event", "event_type", e.EventType, "error", err)
			continue
		}
		line = append(line, '\n')

		if l.cfg.Enabled {
			if err := l.appendSession(e, line); err != nil {
				l.logger.Warn("Failed to write conversation log", "session_id", e.SessionID, "error", err)
			}
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("Failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *fileLogger) appendSession(e Event, line []byte) error {
	dir := filepath.Join(l.cfg.Dir, pathComponent(e.UserID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, pathComponent(e.SessionID)+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// pathComponent makes id safe to use as a single file name.
func pathComponent(id string) string {
	id = unsafePathChars.ReplaceAllString(id, "_")
	id = strings.Trim(id, ".")
	if id == "" {
		return "unknown"
	}
	return id
}

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// cleanForReadability strips terminal escapes and control characters.
func cleanForReadability(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = controlChars.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
