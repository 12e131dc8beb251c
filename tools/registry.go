package tools

import (
	"errors"
	"fmt"
	"sort"

	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/tools/types"
)

var (
	ErrDuplicateTool     = errors.New("duplicate tool name")
	ErrInvalidDefinition = errors.New("invalid tool definition")
)

// Snapshot is the immutable set of tools active for one server run.
type Snapshot struct {
	byName map[string]types.Definition
	names  []string
}

// BuildSnapshot keeps the definitions whose toggle is true or absent. Every
// definition is checked, enabled or not, so catalog mistakes surface at build
// time.
func BuildSnapshot(all []types.Definition, toggles map[string]bool) (*Snapshot, error) {
	seen := make(map[string]struct{}, len(all))
	snap := &Snapshot{byName: make(map[string]types.Definition, len(all))}

	for _, def := range all {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: tool name cannot be empty", ErrInvalidDefinition)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.Handler == nil {
			return nil, fmt.Errorf("%w: %s has no handler", ErrInvalidDefinition, def.Name)
		}
		if err := def.Schema.Check(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, def.Name, err)
		}

		if enabled, ok := toggles[def.Name]; ok && !enabled {
			logger.Debug("Tool disabled by configuration", "name", def.Name)
			continue
		}
		snap.byName[def.Name] = def
		snap.names = append(snap.names, def.Name)
	}
	sort.Strings(snap.names)
	return snap, nil
}

// Lookup returns the active definition for name.
func (s *Snapshot) Lookup(name string) (types.Definition, bool) {
	if s == nil {
		return types.Definition{}, false
	}
	def, ok := s.byName[name]
	return def, ok
}

// Names lists active tool names, sorted.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Tools lists the advertised form of every active tool, sorted by name.
func (s *Snapshot) Tools() []mcp.Tool {
	if s == nil {
		return []mcp.Tool{}
	}
	out := make([]mcp.Tool, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.byName[name].Advertised())
	}
	return out
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
