// Package shared holds the JSON-RPC method handling both transports use.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/vault-mcp-go/tools"
)

// PageSize is the number of tools returned per tools/list page.
const PageSize = 50

// ServerCapabilities advertises what the server supports.
func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{
			"listChanged": false,
		},
		"logging": map[string]any{},
	}
}

// NegotiateProtocolVersion picks the client's requested revision when
// supported, else the preferred one.
func NegotiateProtocolVersion(params json.RawMessage) string {
	var p mcp.InitializeParams
	if len(params) == 0 || json.Unmarshal(params, &p) != nil {
		return mcp.ProtocolVersion
	}
	if mcp.IsSupportedProtocolVersion(p.ProtocolVersion) {
		return p.ProtocolVersion
	}
	return mcp.ProtocolVersion
}

// BuildInitializeResponse answers initialize with the negotiated version.
func BuildInitializeResponse(msg jsonrpc.Request) (*jsonrpc.Response, string) {
	version := NegotiateProtocolVersion(msg.Params)
	return jsonrpc.NewResponse(msg.ID, mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities(),
		ServerInfo: mcp.Implementation{
			Name:    mcp.ServerName,
			Version: mcp.ServerVersion,
		},
		Instructions: "Tools operate on the open vault. Paths are vault-relative.",
	}), version
}

// ParseCursor decodes a tools/list cursor. An empty cursor is offset 0.
func ParseCursor(cursor string) (int, bool) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, true
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

func invalidParams(message string) error {
	return jsonrpc.NewProtocolError(jsonrpc.ErrInvalidParams, message, nil)
}

// ListTools returns one page of the enabled tools of snap.
func ListTools(params json.RawMessage, snap *tools.Snapshot) (map[string]any, error) {
	var p struct {
		Cursor string `json:"cursor"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("Invalid params")
		}
	}
	offset, ok := ParseCursor(p.Cursor)
	all := snap.Tools()
	if !ok || offset > len(all) {
		return nil, invalidParams("Invalid cursor")
	}
	end := min(offset+PageSize, len(all))

	result := map[string]any{"tools": all[offset:end]}
	if end < len(all) {
		result["nextCursor"] = strconv.Itoa(end)
	}
	return result, nil
}

// CallTool runs tools/call through d. Tool failures are results with
// isError set; only a malformed request is a protocol error.
func CallTool(ctx context.Context, params json.RawMessage, snap *tools.Snapshot, d *dispatch.Dispatcher) (*mcp.CallToolResult, error) {
	var p mcp.CallToolParams
	if len(params) == 0 || json.Unmarshal(params, &p) != nil {
		return nil, invalidParams("Invalid params")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, invalidParams("Tool name is required")
	}

	out := d.Dispatch(ctx, snap, dispatch.Envelope{ToolName: name, Arguments: p.Arguments})
	if out.Failed() {
		logger.Debug("Tool call failed", "tool", name, "error", out.Message())
		return mcp.NewCallToolResult(out.Error, true), nil
	}
	return mcp.NewCallToolResult(out.Result, false), nil
}

func setLogLevel(params json.RawMessage) (map[string]any, error) {
	var p struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(params, &p); err != nil || strings.TrimSpace(p.Level) == "" {
		return nil, invalidParams("Invalid params")
	}
	logger.Default().SetLevel(logger.GetLevelFromString(p.Level))
	return map[string]any{}, nil
}

// DispatchStandardMethod answers every method other than initialize.
// Notifications return nil.
func DispatchStandardMethod(ctx context.Context, msg jsonrpc.Request, snap *tools.Snapshot, d *dispatch.Dispatcher) *jsonrpc.Response {
	if msg.IsNotification() {
		logger.Debug("Ignoring notification", "method", msg.Method)
		return nil
	}

	var (
		result any
		err    error
	)
	switch msg.Method {
	case "ping":
		result = map[string]any{}
	case "tools/list":
		result, err = ListTools(msg.Params, snap)
	case "tools/call":
		result, err = CallTool(ctx, msg.Params, snap, d)
	case "logging/setLevel":
		result, err = setLogLevel(msg.Params)
	default:
		err = jsonrpc.NewProtocolError(jsonrpc.ErrMethodNotFound, "Method not found: "+msg.Method, nil)
	}
	if err == nil {
		return jsonrpc.NewResponse(msg.ID, result)
	}

	var perr *jsonrpc.ProtocolError
	if errors.As(err, &perr) {
		return perr.ToResponse(msg.ID)
	}
	logger.Error("Method handler failed", "method", msg.Method, "error", err)
	return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInternalError, "Internal error", nil)
}
