// Package stdio serves MCP over newline-delimited JSON on a reader/writer
// pair. It has no lifecycle of its own and is meant for local debugging.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/vault-mcp-go/tools"
	"github.com/slighter12/vault-mcp-go/transport/shared"
)

const maxFrameBytes = 4 << 20

type Server struct {
	snap       *tools.Snapshot
	dispatcher *dispatch.Dispatcher
}

func NewServer(snap *tools.Snapshot, d *dispatch.Dispatcher) *Server {
	return &Server{snap: snap, dispatcher: d}
}

// Serve answers frames read from r until r reaches EOF or ctx is done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	encoder := json.NewEncoder(w)

	logger.Debug("Stdio server started and waiting for messages")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp := s.handleFrame(ctx, scanner.Bytes())
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("frame exceeds %d bytes: %w", maxFrameBytes, err)
		}
		return err
	}
	logger.Debug("Stdio EOF received, terminating server")
	return nil
}

func (s *Server) handleFrame(ctx context.Context, line []byte) *jsonrpc.Response {
	frame, err := shared.ParseFrame(line)
	if errors.Is(err, shared.ErrEmptyFrame) {
		return nil
	}
	if err != nil {
		logger.Error("Error decoding message", "error", err)
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil)
	}
	if frame.Reject != nil {
		return frame.Reject
	}
	if frame.OneWay {
		return nil
	}
	return s.handleMessage(ctx, *frame.Request)
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request) *jsonrpc.Response {
	logger.Debug("Stdio message received", "method", msg.Method, "id", msg.ID)
	switch msg.Method {
	case "initialize":
		resp, version := shared.BuildInitializeResponse(msg)
		logger.Info("Stdio session initialized", "protocol_version", version)
		return resp
	case "notifications/initialized":
		return nil
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.snap, s.dispatcher)
	}
}
