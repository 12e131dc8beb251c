package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
)

var ErrEmptyFrame = errors.New("empty message")

// Frame is one parsed JSON-RPC message. Exactly one of Request, Reject or
// OneWay is set.
type Frame struct {
	Request *jsonrpc.Request
	// Reject is the error response for a malformed message.
	Reject *jsonrpc.Response
	// OneWay marks a well-formed client response to a server request.
	OneWay bool
}

// ParseFrame validates one JSON-RPC message. Batches are rejected; both
// transports carry a single message per frame.
func ParseFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if trimmed[0] == '[' {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Batch requests are not supported"), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return reject(nil, jsonrpc.ErrParseError, "Parse error"), nil
	}

	id, hasID, validID := parseID(envelope)
	if !validID {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	var msg jsonrpc.Request
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	msg.ID = id

	if msg.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		if (hasResult || hasErr) && msg.JSONRPC == jsonrpc.Version && hasID && hasResult != hasErr {
			return Frame{OneWay: true}, nil
		}
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	if msg.JSONRPC != jsonrpc.Version {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	if raw, ok := envelope["params"]; ok && !isObject(raw) {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	if msg.Method == "initialize" && msg.ID == nil {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	return Frame{Request: &msg}, nil
}

func reject(id any, code jsonrpc.ErrorCode, message string) Frame {
	return Frame{Reject: jsonrpc.NewErrorResponse(id, code, message, nil)}
}

// parseID returns the request ID, whether the member was present, and
// whether it is a string or integer.
func parseID(envelope map[string]json.RawMessage) (any, bool, bool) {
	raw, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	var id any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	switch v := id.(type) {
	case string:
		return v, true, true
	case json.Number:
		return v, true, isInteger(v.String())
	default:
		return nil, true, false
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}
