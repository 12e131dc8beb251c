package mcp

const (
	// ProtocolVersion is the preferred MCP revision negotiated with clients.
	ProtocolVersion = "2025-06-18"

	ServerName    = "vault-mcp-go"
	ServerVersion = "0.1.0"

	// Endpoint is the fixed path the streamable HTTP transport serves.
	Endpoint = "/mcp"
)

// SupportedProtocolVersions lists every revision a client may request.
var SupportedProtocolVersions = []string{
	"2024-11-05",
	"2025-03-26",
	ProtocolVersion,
}

// IsSupportedProtocolVersion reports whether version may be negotiated.
func IsSupportedProtocolVersion(version string) bool {
	for _, candidate := range SupportedProtocolVersions {
		if candidate == version {
			return true
		}
	}
	return false
}
