package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/calc-mcp-go/transport/shared"
)

const maxFrameBytes = 1 << 20

// StdioServer handles MCP communication over newline-delimited JSON on a
// reader/writer pair.
type StdioServer struct {
	host         shared.ToolHost
	info         mcp.Implementation
	instructions string

	mu          sync.Mutex
	initialized bool
	version     string
}

// NewStdioServer creates a new stdio server
func NewStdioServer(host shared.ToolHost, info mcp.Implementation, instructions string) *StdioServer {
	return &StdioServer{
		host:         host,
		info:         info,
		instructions: instructions,
	}
}

var errFrameTooLong = errors.New("frame exceeds size limit")

// inbound is one line read from the peer. oversized lines carry no bytes.
type inbound struct {
	frame    []byte
	oversize bool
}

// Serve reads frames from r and writes responses to w until r is exhausted or
// ctx is done. A line longer than maxFrameBytes is answered with an invalid
// request error and skipped.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	encoder := json.NewEncoder(w)

	frames := make(chan inbound)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			frame, err := readFrame(reader)
			next := inbound{frame: frame}
			switch {
			case errors.Is(err, errFrameTooLong):
				next = inbound{oversize: true}
			case err != nil:
				readErr <- err
				return
			}
			select {
			case frames <- next:
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Debug("Stdio server started and waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-frames:
			if !ok {
				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				logger.Debug("Stdio EOF received, terminating server")
				return nil
			}

			var responses []any
			if in.oversize {
				logger.Warn("Stdio frame discarded", "limit_bytes", maxFrameBytes)
				responses = []any{jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), "Invalid request", map[string]any{
					"reason": errFrameTooLong.Error(),
				})}
			} else {
				responses = s.HandleFrame(ctx, in.frame)
			}
			for _, response := range responses {
				if err := encoder.Encode(response); err != nil {
					logger.Error("Error encoding response", "error", err)
					return err
				}
			}
		}
	}
}

// readFrame returns the next newline-terminated line. A line over
// maxFrameBytes is consumed through its newline and reported as
// errFrameTooLong, leaving the reader at the following line.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(frame)+len(chunk) > maxFrameBytes {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, errFrameTooLong
		}
		frame = append(frame, chunk...)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(frame) > 0:
			return frame, nil
		case err != nil:
			return nil, err
		}
		return frame, nil
	}
}

// HandleFrame processes one frame and returns the responses to write.
func (s *StdioServer) HandleFrame(ctx context.Context, frame []byte) []any {
	requests, prebuilt, _, err := shared.ParseJSONRPCFrame(frame)
	if err != nil {
		// Blank lines are ignored.
		return nil
	}

	responses := append([]any(nil), prebuilt...)
	for _, msg := range requests {
		logger.Debug("Stdio message received", "method", msg.Method, "id", msg.ID)
		response := s.handleMessage(ctx, msg)
		if response != nil && !msg.IsNotification() {
			responses = append(responses, response)
		}
	}
	return responses
}

func (s *StdioServer) handleMessage(ctx context.Context, msg jsonrpc.Request) any {
	switch {
	case msg.Method == mcp.MethodInitialize:
		return s.handleInit(msg)
	case mcp.IsInitializedNotification(msg.Method):
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil)
		}
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		return nil
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.host)
	}
}

func (s *StdioServer) handleInit(msg jsonrpc.Request) *jsonrpc.Response {
	version := shared.NegotiateProtocolVersion(msg.Params)

	s.mu.Lock()
	s.version = version
	s.mu.Unlock()

	logger.Debug("Handling init message", "request_id", msg.ID, "protocol_version", version)
	return jsonrpc.NewResponse(msg.ID, shared.BuildInitializeResult(s.info, version, s.instructions, "", false))
}

// Initialized reports whether the client sent notifications/initialized.
func (s *StdioServer) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
