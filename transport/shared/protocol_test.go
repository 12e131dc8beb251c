package shared

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/vault-mcp-go/tools"
	"github.com/slighter12/vault-mcp-go/vault"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON, "logs/shared_test.log"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func mustRequest(t *testing.T, raw string) jsonrpc.Request {
	t.Helper()
	frame, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	if frame.Request == nil {
		t.Fatalf("expected request, got %+v", frame)
	}
	return *frame.Request
}

// mustResultMap round-trips a response result through JSON.
func mustResultMap(t *testing.T, resp *jsonrpc.Response) map[string]any {
	t.Helper()
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return out
}

func fixture(t *testing.T, toggles map[string]bool) (*tools.Snapshot, *dispatch.Dispatcher) {
	t.Helper()
	snap, err := tools.BuildSnapshot(tools.All(), toggles)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	v := vault.New(vault.NewMemoryStore().Seed(map[string]string{
		"Index.md": "# Index\nhello",
	}))
	return snap, dispatch.New(v)
}

func TestParseFrameRejectsMalformedMessages(t *testing.T) {
	cases := map[string]jsonrpc.ErrorCode{
		`{`: jsonrpc.ErrParseError,
		`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`:            jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`:              jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"2.0","id":1.5,"method":"ping"}`:            jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"2.0","id":true,"method":"ping"}`:           jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"2.0","id":1,"method":"ping","params":[1]}`: jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"2.0","method":"initialize"}`:               jsonrpc.ErrInvalidRequest,
		`{"jsonrpc":"2.0","id":1}`:                              jsonrpc.ErrInvalidRequest,
	}
	for raw, code := range cases {
		frame, err := ParseFrame([]byte(raw))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if frame.Reject == nil || frame.Reject.Error == nil {
			t.Fatalf("%s: expected reject, got %+v", raw, frame)
		}
		if frame.Reject.Error.Code != code {
			t.Fatalf("%s: code = %d, want %d", raw, frame.Reject.Error.Code, code)
		}
	}
}

func TestParseFrameAcceptsRequestsAndResponses(t *testing.T) {
	if _, err := ParseFrame([]byte("   ")); err != ErrEmptyFrame {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}

	msg := mustRequest(t, `{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`)
	if msg.ID != "abc" || msg.Method != "tools/list" {
		t.Fatalf("unexpected request %+v", msg)
	}

	notification := mustRequest(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if !notification.IsNotification() {
		t.Fatal("expected notification")
	}

	frame, err := ParseFrame([]byte(`{"jsonrpc":"2.0","id":7,"result":{}}`))
	if err != nil || !frame.OneWay {
		t.Fatalf("expected one-way client response, got %+v err=%v", frame, err)
	}
}

func TestInitializeNegotiatesProtocolVersion(t *testing.T) {
	resp, version := BuildInitializeResponse(mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`))
	if version != "2025-03-26" {
		t.Fatalf("version = %q", version)
	}
	result := mustResultMap(t, resp)
	if result["protocolVersion"] != "2025-03-26" {
		t.Fatalf("unexpected result %v", result)
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != mcp.ServerName {
		t.Fatalf("unexpected server info %v", info)
	}

	_, version = BuildInitializeResponse(mustRequest(t, `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`))
	if version != mcp.ProtocolVersion {
		t.Fatalf("unsupported version should fall back, got %q", version)
	}
}

func TestToolsListHidesDisabledTools(t *testing.T) {
	snap, d := fixture(t, map[string]bool{"delete_file": false})
	resp := DispatchStandardMethod(context.Background(), mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`), snap, d)
	result := mustResultMap(t, resp)

	listed, _ := result["tools"].([]any)
	if len(listed) != snap.Len() {
		t.Fatalf("listed %d tools, snapshot has %d", len(listed), snap.Len())
	}
	for _, item := range listed {
		tool, _ := item.(map[string]any)
		if tool["name"] == "delete_file" {
			t.Fatal("disabled tool was listed")
		}
		schema, _ := tool["inputSchema"].(map[string]any)
		if schema["type"] != "object" {
			t.Fatalf("tool %v has schema %v", tool["name"], schema)
		}
	}
	if _, ok := result["nextCursor"]; ok {
		t.Fatal("single page should not carry nextCursor")
	}
}

func TestToolsListCursor(t *testing.T) {
	snap, d := fixture(t, nil)
	resp := DispatchStandardMethod(context.Background(), mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"cursor":"10"}}`), snap, d)
	listed, _ := mustResultMap(t, resp)["tools"].([]any)
	if len(listed) != snap.Len()-10 {
		t.Fatalf("listed %d tools from offset 10", len(listed))
	}

	for _, cursor := range []string{"abc", "-1", "999"} {
		raw := `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{"cursor":"` + cursor + `"}}`
		resp := DispatchStandardMethod(context.Background(), mustRequest(t, raw), snap, d)
		if resp.Error == nil || resp.Error.Code != jsonrpc.ErrInvalidParams {
			t.Fatalf("cursor %q: expected invalid params, got %+v", cursor, resp)
		}
	}

	if _, err := ListTools(json.RawMessage(`{"cursor":"abc"}`), snap); !jsonrpc.IsInvalidParams(err) {
		t.Fatalf("expected invalid params error, got %v", err)
	}
	if offset, ok := ParseCursor(""); !ok || offset != 0 {
		t.Fatalf("empty cursor = %d, %v", offset, ok)
	}
}

func TestToolsCallReturnsResultContent(t *testing.T) {
	snap, d := fixture(t, nil)
	resp := DispatchStandardMethod(context.Background(), mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"read_file","arguments":{"path":"Index.md"}}}`), snap, d)
	result := mustResultMap(t, resp)
	if result["isError"] != false {
		t.Fatalf("unexpected error result %v", result)
	}
	structured, _ := result["structuredContent"].(map[string]any)
	if structured["content"] != "# Index\nhello" {
		t.Fatalf("unexpected structured content %v", structured)
	}
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("expected one content block, got %v", content)
	}
}

func TestToolsCallFailuresAreToolResults(t *testing.T) {
	snap, d := fixture(t, map[string]bool{"delete_file": false})

	resp := DispatchStandardMethod(context.Background(), mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_file","arguments":{"path":"Index.md"}}}`), snap, d)
	result := mustResultMap(t, resp)
	if result["isError"] != true {
		t.Fatalf("disabled tool should fail, got %v", result)
	}
	structured, _ := result["structuredContent"].(map[string]any)
	if structured["error"] != "Tool not found: delete_file" {
		t.Fatalf("unexpected error payload %v", structured)
	}

	resp = DispatchStandardMethod(context.Background(), mustRequest(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"read_file","arguments":{}}}`), snap, d)
	result = mustResultMap(t, resp)
	if result["isError"] != true {
		t.Fatalf("missing argument should fail, got %v", result)
	}
}

func TestToolsCallRejectsMalformedParams(t *testing.T) {
	snap, d := fixture(t, nil)
	for _, raw := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"  "}}`,
	} {
		resp := DispatchStandardMethod(context.Background(), mustRequest(t, raw), snap, d)
		if resp.Error == nil || resp.Error.Code != jsonrpc.ErrInvalidParams {
			t.Fatalf("%s: expected invalid params, got %+v", raw, resp)
		}
	}
}

func TestDispatchStandardMethodMisc(t *testing.T) {
	snap, d := fixture(t, nil)
	ctx := context.Background()

	if resp := DispatchStandardMethod(ctx, mustRequest(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`), snap, d); resp == nil || resp.Error != nil {
		t.Fatalf("ping failed: %+v", resp)
	}
	if resp := DispatchStandardMethod(ctx, mustRequest(t, `{"jsonrpc":"2.0","method":"notifications/cancelled"}`), snap, d); resp != nil {
		t.Fatalf("notifications get no response, got %+v", resp)
	}
	if resp := DispatchStandardMethod(ctx, mustRequest(t, `{"jsonrpc":"2.0","id":2,"method":"logging/setLevel","params":{"level":"debug"}}`), snap, d); resp == nil || resp.Error != nil {
		t.Fatalf("logging/setLevel failed: %+v", resp)
	}
	resp := DispatchStandardMethod(ctx, mustRequest(t, `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`), snap, d)
	if resp.Error == nil || resp.Error.Code != jsonrpc.ErrMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
}
