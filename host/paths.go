package host

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalizes a vault-relative path to slash form without leading or
// trailing separators. The vault root normalizes to "". Paths that escape the
// vault or carry a volume name are rejected with ErrInvalidPath.
func CleanPath(input string) (string, error) {
	rel := strings.TrimSpace(input)
	rel = strings.ReplaceAll(rel, "\\", "/")
	if len(rel) >= 2 && rel[1] == ':' {
		return "", fmt.Errorf("%w: volume paths are not allowed: %s", ErrInvalidPath, input)
	}
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		return "", nil
	}

	clean := path.Clean(rel)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path escapes vault root: %s", ErrInvalidPath, input)
	}
	return clean, nil
}

// CleanFilePath is CleanPath for operations that need a non-root path.
func CleanFilePath(input string) (string, error) {
	clean, err := CleanPath(input)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidPath)
	}
	return clean, nil
}

// IsMarkdown reports whether p names a markdown document.
func IsMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}
