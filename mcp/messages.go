package mcp

import "encoding/json"

// Tool is the advertised form of one tool in tools/list.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON schema describing a tool's arguments.
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
	Title      string         `json:"title,omitempty"`
}

// Implementation identifies a client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the subset of the initialize request the server reads.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult answers an initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult answers a tools/call request.
type CallToolResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError"`
}

// NewCallToolResult renders payload as JSON text content. Object payloads are
// also exposed as structuredContent.
func NewCallToolResult(payload any, isError bool) *CallToolResult {
	result := &CallToolResult{IsError: isError}
	data, err := json.Marshal(payload)
	if err != nil {
		result.Content = []Content{{Type: "text", Text: "tool call completed"}}
		return result
	}
	result.Content = []Content{{Type: "text", Text: string(data)}}
	if len(data) > 0 && data[0] == '{' {
		result.StructuredContent = json.RawMessage(data)
	}
	return result
}
