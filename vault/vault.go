package vault

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/markdown"
)

const DefaultConfigDir = ".obsidian"

// CommandFunc runs a registered command.
type CommandFunc func(ctx context.Context) error

type command struct {
	info host.Command
	run  CommandFunc
}

// Vault implements host.Provider over a Store. All operations are serialized
// by a single mutex.
type Vault struct {
	mu        sync.Mutex
	store     Store
	name      string
	configDir string

	cache map[string]markdown.Document

	active    string
	selFrom   host.Position
	selTo     host.Position
	openFiles []string

	commands map[string]command
}

var _ host.Provider = (*Vault)(nil)

type Option func(*Vault)

func WithName(name string) Option {
	return func(v *Vault) { v.name = name }
}

func WithConfigDir(dir string) Option {
	return func(v *Vault) {
		if strings.TrimSpace(dir) != "" {
			v.configDir = dir
		}
	}
}

// New builds a vault over store with the built-in commands registered.
func New(store Store, opts ...Option) *Vault {
	v := &Vault{
		store:     store,
		name:      "vault",
		configDir: DefaultConfigDir,
		cache:     make(map[string]markdown.Document),
		commands:  make(map[string]command),
	}
	if disk, ok := store.(*DiskStore); ok {
		v.name = path.Base(strings.ReplaceAll(disk.Root(), "\\", "/"))
	}
	for _, opt := range opts {
		opt(v)
	}
	v.registerBuiltins()
	return v
}

// Register adds or replaces a command.
func (v *Vault) Register(id, name string, run CommandFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands[id] = command{info: host.Command{ID: id, Name: name}, run: run}
}

// Invalidate drops cached metadata for p, or all cached metadata when p is "".
func (v *Vault) Invalidate(p string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.invalidateLocked(p)
}

func (v *Vault) invalidateLocked(p string) {
	if p == "" {
		clear(v.cache)
		return
	}
	for cached := range v.cache {
		if under(cached, p) {
			delete(v.cache, cached)
		}
	}
}

// Watch invalidates cached metadata as the backing store changes. It returns
// immediately when the store has no change feed.
func (v *Vault) Watch(ctx context.Context) error {
	feed, ok := v.store.(ChangeFeed)
	if !ok {
		return nil
	}
	return feed.Watch(ctx, v.Invalidate, func(err error) {
		logger.Warn("Vault watcher error", "error", err)
	})
}

// Documents

func (v *Vault) ReadFile(_ context.Context, p string) (host.File, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.File{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readLocked(clean)
}

func (v *Vault) readLocked(p string) (host.File, error) {
	entry, err := v.store.Stat(p)
	if err != nil {
		return host.File{}, err
	}
	if entry.IsFolder {
		return host.File{}, fmt.Errorf("%w: %s", host.ErrIsFolder, p)
	}
	data, err := v.store.Read(p)
	if err != nil {
		return host.File{}, err
	}
	return host.File{
		Path:     p,
		Name:     path.Base(p),
		Content:  string(data),
		Size:     len(data),
		Modified: entry.Modified,
	}, nil
}

func (v *Vault) WriteFile(_ context.Context, p, content string) (host.File, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.File{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writeLocked(clean, content)
}

func (v *Vault) writeLocked(p, content string) (host.File, error) {
	if err := v.store.Write(p, []byte(content)); err != nil {
		return host.File{}, err
	}
	v.invalidateLocked(p)
	return v.readLocked(p)
}

func (v *Vault) ListFiles(_ context.Context, dir string, recursive bool) ([]host.Entry, error) {
	clean, err := host.CleanPath(dir)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	root, err := v.store.Stat(clean)
	if err != nil {
		return nil, err
	}
	if !root.IsFolder {
		return nil, fmt.Errorf("%w: %s", host.ErrNotFolder, clean)
	}
	all, err := v.store.Walk()
	if err != nil {
		return nil, err
	}
	out := make([]host.Entry, 0)
	for _, entry := range all {
		if entry.Path == clean || !under(entry.Path, clean) || hidden(entry.Path) {
			continue
		}
		if !recursive && path.Dir(entry.Path) != orDot(clean) {
			continue
		}
		out = append(out, host.Entry{
			Path:     entry.Path,
			Name:     path.Base(entry.Path),
			IsFolder: entry.IsFolder,
			Size:     entry.Size,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsFolder != out[j].IsFolder {
			return out[i].IsFolder
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func orDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func (v *Vault) CreateFile(_ context.Context, p, content string) (host.File, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.File{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.store.Stat(clean); err == nil {
		return host.File{}, fmt.Errorf("%w: %s", host.ErrExists, clean)
	}
	return v.writeLocked(clean, content)
}

func (v *Vault) CreateFolder(_ context.Context, p string) (host.Entry, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.Entry{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.store.Stat(clean); err == nil {
		return host.Entry{}, fmt.Errorf("%w: %s", host.ErrExists, clean)
	}
	if err := v.store.Mkdir(clean); err != nil {
		return host.Entry{}, err
	}
	return host.Entry{Path: clean, Name: path.Base(clean), IsFolder: true}, nil
}

func (v *Vault) Delete(_ context.Context, p string) error {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Remove(clean); err != nil {
		return err
	}
	v.invalidateLocked(clean)
	v.openFiles = slices.DeleteFunc(v.openFiles, func(open string) bool { return under(open, clean) })
	if v.active != "" && under(v.active, clean) {
		v.setActiveLocked(lastOrEmpty(v.openFiles))
	}
	return nil
}

func lastOrEmpty(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[len(items)-1]
}

func (v *Vault) EditLines(_ context.Context, p string, start, end int, content string) (host.File, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.File{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.readLocked(clean)
	if err != nil {
		return host.File{}, err
	}
	lines := strings.Split(file.Content, "\n")
	if start < 1 || end < start || end > len(lines) {
		return host.File{}, fmt.Errorf("%w: lines %d-%d of %d in %s", host.ErrInvalidRange, start, end, len(lines), clean)
	}
	replacement := strings.Split(content, "\n")
	edited := slices.Concat(lines[:start-1], replacement, lines[end:])
	return v.writeLocked(clean, strings.Join(edited, "\n"))
}

// Workspace

func (v *Vault) ActiveFile(_ context.Context) (host.File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == "" {
		return host.File{}, host.ErrNoActiveFile
	}
	return v.readLocked(v.active)
}

func (v *Vault) Selection(_ context.Context) (host.Selection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == "" {
		return host.Selection{}, host.ErrNoActiveEditor
	}
	file, err := v.readLocked(v.active)
	if err != nil {
		return host.Selection{}, err
	}
	from, to := v.selFrom, v.selTo
	text := textBetween(file.Content, from, to)
	return host.Selection{Path: v.active, Text: text, From: from, To: to, Empty: text == ""}, nil
}

// Select sets the active editor's selection. Positions are clamped to the
// document.
func (v *Vault) Select(from, to host.Position) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == "" {
		return host.ErrNoActiveEditor
	}
	file, err := v.readLocked(v.active)
	if err != nil {
		return err
	}
	from, to = clamp(file.Content, from), clamp(file.Content, to)
	if less(to, from) {
		from, to = to, from
	}
	v.selFrom, v.selTo = from, to
	return nil
}

func (v *Vault) InsertText(_ context.Context, text string, at *host.Position) (host.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active == "" {
		return host.Position{}, host.ErrNoActiveEditor
	}
	file, err := v.readLocked(v.active)
	if err != nil {
		return host.Position{}, err
	}

	from, to := v.selFrom, v.selTo
	if at != nil {
		pos := clamp(file.Content, *at)
		from, to = pos, pos
	}
	start, end := offset(file.Content, from), offset(file.Content, to)
	updated := file.Content[:start] + text + file.Content[end:]
	if _, err := v.writeLocked(v.active, updated); err != nil {
		return host.Position{}, err
	}
	cursor := position(updated, start+len(text))
	v.selFrom, v.selTo = cursor, cursor
	return cursor, nil
}

func (v *Vault) OpenFiles(_ context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.openFiles), nil
}

func (v *Vault) OpenFile(_ context.Context, p string, opts host.OpenOptions) error {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.readLocked(clean)
	if err != nil {
		return err
	}
	if opts.NewLeaf || !slices.Contains(v.openFiles, clean) {
		v.openFiles = append(v.openFiles, clean)
	}
	v.setActiveLocked(clean)
	if opts.Line != nil {
		pos := clamp(file.Content, host.Position{Line: *opts.Line - 1})
		v.selFrom, v.selTo = pos, pos
	}
	return nil
}

func (v *Vault) setActiveLocked(p string) {
	v.active = p
	v.selFrom, v.selTo = host.Position{}, host.Position{}
}

// Metadata

func (v *Vault) Metadata(_ context.Context, p string) (host.Metadata, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.Metadata{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	doc, err := v.documentLocked(clean)
	if err != nil {
		return host.Metadata{}, err
	}
	meta := host.Metadata{
		Path:        clean,
		Frontmatter: doc.Frontmatter,
		Tags:        doc.Tags,
		Headings:    make([]host.Heading, 0, len(doc.Headings)),
		Links:       convertLinks(doc.Links),
		Embeds:      convertLinks(doc.Embeds),
	}
	for _, h := range doc.Headings {
		meta.Headings = append(meta.Headings, host.Heading{Text: h.Text, Level: h.Level, Line: h.Line})
	}
	return meta, nil
}

func convertLinks(links []markdown.Link) []host.Link {
	out := make([]host.Link, 0, len(links))
	for _, l := range links {
		target := l.Target
		if l.Subpath != "" {
			target += "#" + l.Subpath
		}
		out = append(out, host.Link{Target: target, DisplayText: l.DisplayText, Line: l.Line})
	}
	return out
}

// documentLocked returns parsed metadata for p. Non-markdown files yield an
// empty document.
func (v *Vault) documentLocked(p string) (markdown.Document, error) {
	if doc, ok := v.cache[p]; ok {
		return doc, nil
	}
	file, err := v.readLocked(p)
	if err != nil {
		return markdown.Document{}, err
	}
	if !host.IsMarkdown(p) {
		doc, _ := markdown.Parse("")
		return doc, nil
	}
	doc, err := markdown.Parse(file.Content)
	if err != nil {
		logger.Warn("Invalid frontmatter", "path", p, "error", err)
	}
	v.cache[p] = doc
	return doc, nil
}

func (v *Vault) filePathsLocked() ([]string, error) {
	entries, err := v.store.Walk()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsFolder && !hidden(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

func (v *Vault) Links(_ context.Context, p string) (host.LinkInfo, error) {
	clean, err := host.CleanFilePath(p)
	if err != nil {
		return host.LinkInfo{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	doc, err := v.documentLocked(clean)
	if err != nil {
		return host.LinkInfo{}, err
	}
	paths, err := v.filePathsLocked()
	if err != nil {
		return host.LinkInfo{}, err
	}

	info := host.LinkInfo{Path: clean, Outgoing: []string{}, Incoming: []string{}}
	for _, link := range slices.Concat(doc.Links, doc.Embeds) {
		if link.Target == "" {
			continue
		}
		if resolved, ok := markdown.ResolveLink(link.Target, clean, paths); ok {
			info.Outgoing = appendUnique(info.Outgoing, resolved)
		} else {
			info.Unresolved = appendUnique(info.Unresolved, link.Target)
		}
	}

	for _, other := range paths {
		if other == clean || !host.IsMarkdown(other) {
			continue
		}
		otherDoc, err := v.documentLocked(other)
		if err != nil {
			return host.LinkInfo{}, err
		}
		for _, link := range slices.Concat(otherDoc.Links, otherDoc.Embeds) {
			if resolved, ok := markdown.ResolveLink(link.Target, other, paths); ok && resolved == clean {
				info.Incoming = append(info.Incoming, other)
				break
			}
		}
	}
	return info, nil
}

func appendUnique(items []string, item string) []string {
	if slices.Contains(items, item) {
		return items
	}
	return append(items, item)
}

// Commands

func (v *Vault) ListCommands(_ context.Context, filter string) ([]host.Command, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(filter))
	out := make([]host.Command, 0, len(v.commands))
	for _, cmd := range v.commands {
		if needle != "" &&
			!strings.Contains(strings.ToLower(cmd.info.ID), needle) &&
			!strings.Contains(strings.ToLower(cmd.info.Name), needle) {
			continue
		}
		out = append(out, cmd.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *Vault) ExecuteCommand(ctx context.Context, id string) error {
	v.mu.Lock()
	cmd, ok := v.commands[id]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", host.ErrCommandNotFound, id)
	}
	if err := cmd.run(ctx); err != nil {
		return fmt.Errorf("command %s: %w", id, err)
	}
	return nil
}

func (v *Vault) registerBuiltins() {
	v.commands["editor:select-all"] = command{
		info: host.Command{ID: "editor:select-all", Name: "Select all"},
		run: func(context.Context) error {
			v.mu.Lock()
			defer v.mu.Unlock()
			if v.active == "" {
				return host.ErrNoActiveEditor
			}
			file, err := v.readLocked(v.active)
			if err != nil {
				return err
			}
			v.selFrom, v.selTo = host.Position{}, position(file.Content, len(file.Content))
			return nil
		},
	}
	v.commands["workspace:close"] = command{
		info: host.Command{ID: "workspace:close", Name: "Close current tab"},
		run: func(context.Context) error {
			v.mu.Lock()
			defer v.mu.Unlock()
			if v.active == "" {
				return host.ErrNoActiveFile
			}
			if i := slices.Index(v.openFiles, v.active); i >= 0 {
				v.openFiles = slices.Delete(v.openFiles, i, i+1)
			}
			v.setActiveLocked(lastOrEmpty(v.openFiles))
			return nil
		},
	}
	v.commands["workspace:close-others"] = command{
		info: host.Command{ID: "workspace:close-others", Name: "Close all other tabs"},
		run: func(context.Context) error {
			v.mu.Lock()
			defer v.mu.Unlock()
			if v.active == "" {
				return host.ErrNoActiveFile
			}
			v.openFiles = []string{v.active}
			return nil
		},
	}
	v.commands["app:reload-metadata"] = command{
		info: host.Command{ID: "app:reload-metadata", Name: "Rebuild metadata cache"},
		run: func(context.Context) error {
			v.Invalidate("")
			return nil
		},
	}
}

// Vault

func (v *Vault) Rename(_ context.Context, from, to string) (host.RenameResult, error) {
	src, err := host.CleanFilePath(from)
	if err != nil {
		return host.RenameResult{}, err
	}
	dst, err := host.CleanFilePath(to)
	if err != nil {
		return host.RenameResult{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.store.Stat(src); err != nil {
		return host.RenameResult{}, err
	}
	if _, err := v.store.Stat(dst); err == nil {
		return host.RenameResult{}, fmt.Errorf("%w: %s", host.ErrExists, dst)
	}
	oldPaths, err := v.filePathsLocked()
	if err != nil {
		return host.RenameResult{}, err
	}
	if err := v.store.Rename(src, dst); err != nil {
		return host.RenameResult{}, err
	}
	v.invalidateLocked(src)

	moved := make(map[string]string)
	previous := make(map[string]string)
	for _, p := range oldPaths {
		if under(p, src) {
			np := dst + p[len(src):]
			moved[p] = np
			previous[np] = p
		}
	}
	newPaths, err := v.filePathsLocked()
	if err != nil {
		return host.RenameResult{}, err
	}

	updated := 0
	for _, p := range newPaths {
		if !host.IsMarkdown(p) {
			continue
		}
		file, err := v.readLocked(p)
		if err != nil {
			return host.RenameResult{}, err
		}
		origin := p
		if old, ok := previous[p]; ok {
			origin = old
		}
		rewritten, count := markdown.RewriteLinks(file.Content, func(target string, wiki bool) (string, bool) {
			resolved, ok := markdown.ResolveLink(target, origin, oldPaths)
			if !ok {
				return "", false
			}
			np, ok := moved[resolved]
			if !ok {
				return "", false
			}
			if wiki {
				text := markdown.LinkText(np, newPaths)
				if path.Ext(target) != "" && host.IsMarkdown(np) {
					text += ".md"
				}
				return text, true
			}
			return np, true
		})
		if count == 0 {
			continue
		}
		if _, err := v.writeLocked(p, rewritten); err != nil {
			return host.RenameResult{}, err
		}
		updated++
	}

	for i, open := range v.openFiles {
		if np, ok := moved[open]; ok {
			v.openFiles[i] = np
		}
	}
	if np, ok := moved[v.active]; ok {
		v.active = np
	}
	logger.Debug("Renamed vault path", "from", src, "to", dst, "updatedReferences", updated)
	return host.RenameResult{From: src, To: dst, UpdatedReferences: updated}, nil
}

func (v *Vault) Info(_ context.Context) (host.VaultInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	paths, err := v.filePathsLocked()
	if err != nil {
		return host.VaultInfo{}, err
	}
	docs := 0
	for _, p := range paths {
		if host.IsMarkdown(p) {
			docs++
		}
	}
	return host.VaultInfo{
		Name:          v.name,
		DocumentCount: docs,
		FileCount:     len(paths),
		ConfigDir:     v.configDir,
	}, nil
}
