package vault

import (
	"strings"

	"github.com/slighter12/vault-mcp-go/host"
)

// offset converts a line/column position to a byte offset in content.
func offset(content string, pos host.Position) int {
	pos = clamp(content, pos)
	off := 0
	for i := 0; i < pos.Line; i++ {
		next := strings.IndexByte(content[off:], '\n')
		off += next + 1
	}
	return off + pos.Ch
}

// position converts a byte offset in content to a line/column position.
func position(content string, off int) host.Position {
	off = min(max(off, 0), len(content))
	before := content[:off]
	line := strings.Count(before, "\n")
	ch := off - (strings.LastIndexByte(before, '\n') + 1)
	return host.Position{Line: line, Ch: ch}
}

func clamp(content string, pos host.Position) host.Position {
	lines := strings.Split(content, "\n")
	pos.Line = min(max(pos.Line, 0), len(lines)-1)
	pos.Ch = min(max(pos.Ch, 0), len(lines[pos.Line]))
	return pos
}

func less(a, b host.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Ch < b.Ch)
}

func textBetween(content string, from, to host.Position) string {
	start, end := offset(content, from), offset(content, to)
	if end < start {
		start, end = end, start
	}
	return content[start:end]
}
