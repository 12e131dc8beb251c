package host

import (
	"errors"
	"testing"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"/":                "",
		"./":               "",
		"notes/a.md":       "notes/a.md",
		"/notes/a.md":      "notes/a.md",
		"notes\\b.md":      "notes/b.md",
		"notes/../c.md":    "c.md",
		" notes//d.md/ ":   "notes/d.md",
		"./notes/./e.md":   "notes/e.md",
		"daily/2024-01.md": "daily/2024-01.md",
	}
	for input, want := range cases {
		got, err := CleanPath(input)
		if err != nil {
			t.Fatalf("CleanPath(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("CleanPath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCleanPathRejectsEscapes(t *testing.T) {
	for _, input := range []string{"..", "../x.md", "notes/../../x.md", "C:\\notes\\a.md"} {
		if _, err := CleanPath(input); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", input, err)
		}
	}
}

func TestCleanFilePathRequiresPath(t *testing.T) {
	if _, err := CleanFilePath("/"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	got, err := CleanFilePath("a.md")
	if err != nil || got != "a.md" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}
