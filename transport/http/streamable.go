package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

var errTransportClosed = errors.New("transport is closed")

// StreamableHTTPTransport writes SSE frames to one HTTP response. Every
// event gets a monotonically increasing id.
type StreamableHTTPTransport struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	nextID  uint64
	onClose func()
	once    sync.Once
}

// NewStreamableHTTPTransport creates a new Streamable HTTP transport
func NewStreamableHTTPTransport(w http.ResponseWriter, f http.Flusher, onClose ...func()) *StreamableHTTPTransport {
	var closeHook func()
	if len(onClose) > 0 {
		closeHook = onClose[0]
	}
	return &StreamableHTTPTransport{
		writer:  w,
		flusher: f,
		onClose: closeHook,
	}
}

// openEventStream writes SSE response headers and wraps the response.
func openEventStream(c echo.Context, sessionID string, onClose ...func()) (*StreamableHTTPTransport, error) {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	if sessionID != "" {
		header.Set(headerSessionID, sessionID)
	}
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	return NewStreamableHTTPTransport(c.Response().Writer, flusher, onClose...), nil
}

// SendSSE sends one JSON-encoded SSE event.
func (t *StreamableHTTPTransport) SendSSE(event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errTransportClosed
	}

	t.nextID++
	var frame strings.Builder
	frame.WriteString("id: ")
	frame.WriteString(strconv.FormatUint(t.nextID, 10))
	frame.WriteString("\nevent: ")
	frame.WriteString(event)
	frame.WriteString("\ndata: ")
	frame.Write(dataJSON)
	frame.WriteString("\n\n")

	if err := t.writeLocked(frame.String()); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	return nil
}

// SendMessage sends a JSON-RPC message as a "message" event.
func (t *StreamableHTTPTransport) SendMessage(message any) error {
	return t.SendSSE("message", message)
}

// SendComment writes one SSE comment frame (":" prefixed lines).
func (t *StreamableHTTPTransport) SendComment(comment string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errTransportClosed
	}

	comment = strings.ReplaceAll(comment, "\r\n", "\n")
	comment = strings.ReplaceAll(comment, "\r", "\n")
	comment = strings.ReplaceAll(comment, "\n", "\n: ")
	if err := t.writeLocked(": " + comment + "\n\n"); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	return nil
}

func (t *StreamableHTTPTransport) writeLocked(payload string) error {
	if _, err := t.writer.Write([]byte(payload)); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// EventsSent returns how many events have been written.
func (t *StreamableHTTPTransport) EventsSent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextID
}

// Close closes the Streamable HTTP transport
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	wasOpen := !t.closed
	t.closed = true
	t.mu.Unlock()

	if wasOpen && t.onClose != nil {
		t.once.Do(t.onClose)
	}
	return nil
}

// IsClosed returns true if the transport is closed
func (t *StreamableHTTPTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
