package host

import "time"

// File is a document with its content.
type File struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Content  string    `json:"content"`
	Size     int       `json:"size"`
	Modified time.Time `json:"modified"`
}

// Entry is one item of a folder listing.
type Entry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	IsFolder bool   `json:"isFolder"`
	Size     int    `json:"size,omitempty"`
}

// Position is a 0-based line/column cursor location.
type Position struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

// Selection is the active editor's selected text.
type Selection struct {
	Path  string   `json:"path"`
	Text  string   `json:"text"`
	From  Position `json:"from"`
	To    Position `json:"to"`
	Empty bool     `json:"empty"`
}

// OpenOptions controls how a document is opened.
type OpenOptions struct {
	// Line is 1-based; nil leaves the cursor at the start.
	Line    *int
	NewLeaf bool
}

// Heading is a markdown heading.
type Heading struct {
	Text  string `json:"heading"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

// Link is an inline link or embed target.
type Link struct {
	Target      string `json:"link"`
	DisplayText string `json:"displayText,omitempty"`
	Line        int    `json:"line"`
}

// Metadata is the cached structure of one document.
type Metadata struct {
	Path        string         `json:"path"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Tags        []string       `json:"tags"`
	Headings    []Heading      `json:"headings"`
	Links       []Link         `json:"links"`
	Embeds      []Link         `json:"embeds"`
}

// LinkInfo lists link relationships of a document. Outgoing targets are
// resolved vault paths where possible.
type LinkInfo struct {
	Path       string   `json:"path"`
	Outgoing   []string `json:"outgoing"`
	Incoming   []string `json:"incoming"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Command is a registered host command.
type Command struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RenameResult reports a rename and the references it rewrote.
type RenameResult struct {
	From              string `json:"oldPath"`
	To                string `json:"newPath"`
	UpdatedReferences int    `json:"updatedReferences"`
}

// VaultInfo summarizes the vault.
type VaultInfo struct {
	Name          string `json:"name"`
	DocumentCount int    `json:"documentCount"`
	FileCount     int    `json:"fileCount"`
	ConfigDir     string `json:"configDir"`
}
