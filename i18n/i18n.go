// Package i18n renders user-facing status messages from embedded YAML
// catalogs. Lookups fall back from the requested locale to the primary
// locale and finally to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	ServerStarted        = "server.started"
	ServerStopped        = "server.stopped"
	ServerAlreadyRunning = "server.alreadyRunning"
	ServerAlreadyStopped = "server.alreadyStopped"
	ServerRestarting     = "server.restarting"
	ServerPortInUse      = "server.portInUse"
	ServerStartFailed    = "server.startFailed"
	ServerStopFailed     = "server.stopFailed"
	ServerInvalidPort    = "server.invalidPort"
	ServerTransportError = "server.transportError"
	ConfigReloaded       = "config.reloaded"
	ConfigInvalid        = "config.invalid"
	ToolFailed           = "tools.failed"
)

const PrimaryLocale = "en"

// Lookup renders the message for key with params substituted.
type Lookup func(key string, params map[string]any) string

//go:embed locales/*.yaml
var embedded embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Catalog holds flattened messages per locale.
type Catalog struct {
	primary  string
	messages map[string]map[string]string
}

// Load reads every locales/<locale>.yaml file from fsys.
func Load(fsys fs.FS, primary string) (*Catalog, error) {
	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, err
	}
	c := &Catalog{primary: primary, messages: make(map[string]map[string]string)}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		locale := strings.TrimSuffix(path.Base(file), path.Ext(file))
		flat := make(map[string]string)
		flatten("", tree, flat)
		c.messages[normalizeLocale(locale)] = flat
	}
	if _, ok := c.messages[primary]; !ok {
		return nil, fmt.Errorf("primary locale %q has no catalog", primary)
	}
	return c, nil
}

var defaultCatalog = mustLoadDefault()

func mustLoadDefault() *Catalog {
	c, err := Load(embedded, PrimaryLocale)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the catalog built from the embedded locales.
func Default() *Catalog {
	return defaultCatalog
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	locale = strings.ReplaceAll(locale, "_", "-")
	return locale
}

// Locales lists available locales.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Translate renders key for locale. Regional locales such as "zh-TW" fall
// back to their base language before the primary catalog.
func (c *Catalog) Translate(locale, key string, params map[string]any) string {
	return render(c.template(locale, key), params)
}

func (c *Catalog) template(locale, key string) string {
	locale = normalizeLocale(locale)
	candidates := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		candidates = append(candidates, base)
	}
	candidates = append(candidates, c.primary)
	for _, candidate := range candidates {
		if msg, ok := c.messages[candidate][key]; ok {
			return msg
		}
	}
	return key
}

// Lookup binds the catalog to one locale.
func (c *Catalog) Lookup(locale string) Lookup {
	return func(key string, params map[string]any) string {
		return c.Translate(locale, key, params)
	}
}

// render substitutes {{name}} placeholders. Unknown placeholders are kept.
func render(template string, params map[string]any) string {
	if len(params) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := params[name]
		if !ok {
			return match
		}
		return fmt.Sprint(value)
	})
}

// Static returns a Lookup that ignores locales, rendering key with params.
// Used where no catalog is configured.
func Static() Lookup {
	return func(key string, params map[string]any) string {
		return Default().Translate(PrimaryLocale, key, params)
	}
}
