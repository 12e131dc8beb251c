package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

var ErrStreamClosed = errors.New("stream is closed")

// Stream writes server-sent events to one GET /mcp response.
type Stream struct {
	writer  io.Writer
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	onClose func()
	once    sync.Once
}

// NewStream wraps an SSE response. onClose runs once, on the first Close.
func NewStream(w io.Writer, f http.Flusher, onClose func()) *Stream {
	return &Stream{
		writer:  w,
		flusher: f,
		onClose: onClose,
	}
}

// SendSSE writes one event with data encoded as JSON.
func (s *Stream) SendSSE(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.writeLocked(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)); err != nil {
		return fmt.Errorf("write SSE message: %w", err)
	}
	return nil
}

// SendComment writes one SSE comment frame.
func (s *Stream) SendComment(comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	comment = strings.ReplaceAll(comment, "\r\n", "\n")
	comment = strings.ReplaceAll(comment, "\r", "\n")
	comment = strings.ReplaceAll(comment, "\n", "\n: ")
	if err := s.writeLocked(": " + comment + "\n\n"); err != nil {
		return fmt.Errorf("write SSE comment: %w", err)
	}
	return nil
}

func (s *Stream) writeLocked(frame string) error {
	if _, err := io.WriteString(s.writer, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Stream) Close() {
	s.mu.Lock()
	wasOpen := !s.closed
	s.closed = true
	s.mu.Unlock()

	if wasOpen && s.onClose != nil {
		s.once.Do(s.onClose)
	}
}

func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
