package types

import (
	"errors"
	"fmt"

	"github.com/slighter12/vault-mcp-go/host"
)

const (
	KindNotFound        = "not_found"
	KindExists          = "already_exists"
	KindNoActiveFile    = "no_active_file"
	KindNoActiveEditor  = "no_active_editor"
	KindCommandNotFound = "command_not_found"
	KindInvalidRange    = "invalid_range"
	KindInvalidPath     = "invalid_path"
	KindIsFolder        = "is_folder"
	KindNotFolder       = "not_folder"
)

// ToolError marks tool failures that carry structured data into the error
// result, such as {"active": false}.
type ToolError struct {
	Kind    string
	Message string
	Data    map[string]any
	Err     error
}

func (e *ToolError) Error() string {
	if e == nil {
		return "tool error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return fmt.Sprintf("tool error: %s", e.Kind)
	}
	return "tool error"
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewToolError(kind, message string, data map[string]any) *ToolError {
	return &ToolError{Kind: kind, Message: message, Data: data}
}

func AsToolError(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr != nil {
		return toolErr, true
	}
	return nil, false
}

var hostKinds = []struct {
	sentinel error
	kind     string
}{
	{host.ErrNotFound, KindNotFound},
	{host.ErrExists, KindExists},
	{host.ErrNoActiveFile, KindNoActiveFile},
	{host.ErrNoActiveEditor, KindNoActiveEditor},
	{host.ErrCommandNotFound, KindCommandNotFound},
	{host.ErrInvalidRange, KindInvalidRange},
	{host.ErrInvalidPath, KindInvalidPath},
	{host.ErrIsFolder, KindIsFolder},
	{host.ErrNotFolder, KindNotFolder},
}

// FromError normalizes err into a ToolError. Capability errors keep their
// wrapped detail as the message; the workspace ones use fixed messages and
// report the missing state.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	if toolErr, ok := AsToolError(err); ok {
		return toolErr
	}
	switch {
	case errors.Is(err, host.ErrNoActiveFile):
		return &ToolError{Kind: KindNoActiveFile, Message: "No active file", Data: map[string]any{"active": false}, Err: err}
	case errors.Is(err, host.ErrNoActiveEditor):
		return &ToolError{Kind: KindNoActiveEditor, Message: "No active editor", Data: map[string]any{"active": false}, Err: err}
	}
	for _, hk := range hostKinds {
		if errors.Is(err, hk.sentinel) {
			return &ToolError{Kind: hk.kind, Message: capitalize(err.Error()), Err: err}
		}
	}
	return &ToolError{Message: err.Error(), Err: err}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
