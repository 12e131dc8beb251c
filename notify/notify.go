// Package notify carries user-visible status notices from the engine to
// whatever surface presents them.
package notify

import (
	"sync"

	"github.com/slighter12/vault-mcp-go/logger"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is one rendered status message. Key is the catalog key it was
// rendered from.
type Notice struct {
	Level   Level  `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type Sink interface {
	Notify(Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notice)

func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = SinkFunc(func(Notice) {})

// LogSink writes notices to the package logger.
type LogSink struct{}

func (LogSink) Notify(n Notice) {
	switch n.Level {
	case LevelError:
		logger.Error(n.Message, "notice", n.Key)
	case LevelWarn:
		logger.Warn(n.Message, "notice", n.Key)
	default:
		logger.Info(n.Message, "notice", n.Key)
	}
}

// Multi fans a notice out to every sink.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(n Notice) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(n)
			}
		}
	})
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Keys returns the catalog keys of recorded notices in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		keys = append(keys, n.Key)
	}
	return keys
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
