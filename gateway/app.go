// Package gateway assembles the vault, dispatcher, lifecycle manager,
// telemetry and watchers into one running application.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/dispatch"
	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/i18n"
	"github.com/slighter12/vault-mcp-go/lifecycle"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/notify"
	"github.com/slighter12/vault-mcp-go/telemetry"
	"github.com/slighter12/vault-mcp-go/tools"
	httptransport "github.com/slighter12/vault-mcp-go/transport/http"
	"github.com/slighter12/vault-mcp-go/vault"
)

var ErrNoConfig = errors.New("gateway: config is required")

type Options struct {
	Config *config.Config
	// ConfigPath enables reloading when the file changes and WatchConfig is
	// set.
	ConfigPath string
	// Provider overrides the vault built from Config.Vault.
	Provider host.Provider
	// Sink receives every notice in addition to the log and SSE clients.
	Sink notify.Sink
}

type App struct {
	cfg        atomic.Pointer[config.Config]
	configPath string

	catalog    *i18n.Catalog
	provider   host.Provider
	tel        *telemetry.Telemetry
	sink       notify.Sink
	dispatcher *dispatch.Dispatcher
	manager    *lifecycle.Manager
	server     atomic.Pointer[httptransport.Server]

	applyMu sync.Mutex
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	cfg := opts.Config.Clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		configPath: opts.ConfigPath,
		catalog:    i18n.Default(),
	}
	a.cfg.Store(cfg)
	a.sink = notify.Multi(notify.LogSink{}, notify.SinkFunc(a.forward), opts.Sink)

	a.provider = opts.Provider
	if a.provider == nil {
		provider, err := openVault(cfg.Vault)
		if err != nil {
			return nil, err
		}
		a.provider = provider
	}

	tel, err := telemetry.Setup(mcp.ServerName, mcp.ServerVersion)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a.tel = tel

	a.dispatcher = dispatch.New(a.provider,
		dispatch.WithSink(a.sink),
		dispatch.WithMessages(a.Messages),
		dispatch.WithObserver(tel.Calls),
	)

	manager, err := lifecycle.NewManager(lifecycle.Options{
		Config:        a.Config,
		Definitions:   tools.All(),
		Bind:          a.bind,
		Sink:          a.sink,
		Messages:      a.Messages,
		OnStateChange: a.onStateChange,
	})
	if err != nil {
		return nil, err
	}
	a.manager = manager
	return a, nil
}

func openVault(cfg config.Vault) (*vault.Vault, error) {
	if cfg.Root == "" {
		logger.Warn("No vault root configured, serving an empty in-memory vault")
		return vault.New(vault.NewMemoryStore(), vault.WithConfigDir(cfg.ConfigDir)), nil
	}
	store, err := vault.NewDiskStore(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return vault.New(store, vault.WithConfigDir(cfg.ConfigDir)), nil
}

// Config returns the active configuration. Callers must not modify it.
func (a *App) Config() *config.Config {
	return a.cfg.Load()
}

func (a *App) Manager() *lifecycle.Manager {
	return a.manager
}

func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

func (a *App) Telemetry() *telemetry.Telemetry {
	return a.tel
}

// Messages renders key in the currently configured locale.
func (a *App) Messages(key string, params map[string]any) string {
	return a.catalog.Translate(a.Config().Locale, key, params)
}

func (a *App) bind(ctx context.Context, addr string, snap *tools.Snapshot) (lifecycle.Listener, error) {
	s, err := httptransport.Listen(ctx, addr, snap, a.dispatcher,
		httptransport.WithErrorReporter(a.manager.ReportTransportError),
		httptransport.WithStats(a.tel.CallCounts),
	)
	if err != nil {
		return nil, err
	}
	a.server.Store(s)
	return s, nil
}

func (a *App) onStateChange(from, to lifecycle.State) {
	a.tel.Lifecycle.OnStateChange(from, to)
	if to == lifecycle.Stopping || to == lifecycle.Stopped {
		a.server.Store(nil)
	}
}

// forward relays notices to clients of the running HTTP transport.
func (a *App) forward(n notify.Notice) {
	if s := a.server.Load(); s != nil {
		s.Notify(n)
	}
}

// Notify sends a notice through the application's sinks.
func (a *App) Notify(level notify.Level, key string, params map[string]any) {
	a.sink.Notify(notify.Notice{Level: level, Key: key, Message: a.Messages(key, params)})
}

// ApplyConfig validates next and makes it current. A running transport is
// restarted when its address or tool set changed. Invalid configurations are
// rejected and the current one stays active.
func (a *App) ApplyConfig(ctx context.Context, next *config.Config) error {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	next = next.Clone()
	next.Normalize()
	if err := next.Validate(); err != nil {
		a.Notify(notify.LevelError, i18n.ConfigInvalid, map[string]any{"error": err})
		return fmt.Errorf("apply config: %w", err)
	}

	prev := a.cfg.Swap(next)
	applyLogging(prev.Logging, next.Logging)
	if prev.Vault != next.Vault {
		logger.Warn("Vault settings changed, restart the process to apply them", "root", next.Vault.Root)
	}
	a.Notify(notify.LevelInfo, i18n.ConfigReloaded, nil)

	if transportChanged(prev, next) && a.manager.State() == lifecycle.Running {
		return a.manager.Restart(ctx)
	}
	return nil
}

func transportChanged(prev, next *config.Config) bool {
	return prev.Host != next.Host ||
		prev.Port != next.Port ||
		!maps.Equal(prev.Tools, next.Tools)
}

func applyLogging(prev, next config.Logging) {
	l := logger.Default()
	if prev.Level != next.Level {
		l.SetLevel(logger.GetLevelFromString(next.Level))
	}
	if prev.Format != next.Format {
		l.SetFormat(logger.Format(next.Format))
	}
	if prev.Path != next.Path && next.Path != "" {
		if err := l.Rotate(next.Path); err != nil {
			logger.Error("Failed to switch log file", "path", next.Path, "error", err)
		}
	}
}

// Run starts the transport when configured to, serves until ctx is done,
// then stops it. Config and vault watchers run alongside.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	a.startWatchers(ctx, &wg)
	a.handleSignals(ctx, &wg)

	if a.Config().StartOnStartup {
		if err := a.manager.Start(ctx); err != nil {
			logger.Error("Initial start failed", "error", err)
		}
	}

	<-ctx.Done()
	cancel()
	err := a.Close(context.Background())
	wg.Wait()
	return err
}

func (a *App) startWatchers(ctx context.Context, wg *sync.WaitGroup) {
	if v, ok := a.provider.(*vault.Vault); ok && a.Config().Vault.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.Watch(ctx); err != nil {
				logger.Warn("Vault watcher stopped", "error", err)
			}
		}()
	}

	if a.configPath == "" || !a.Config().WatchConfig {
		return
	}
	watcher, err := config.NewWatcher(a.configPath,
		func(cfg *config.Config) {
			if err := a.ApplyConfig(ctx, cfg); err != nil {
				logger.Warn("Config reload not applied", "error", err)
			}
		},
		func(err error) {
			a.Notify(notify.LevelError, i18n.ConfigInvalid, map[string]any{"error": err})
		},
	)
	if err != nil {
		logger.Warn("Config watcher unavailable", "path", a.configPath, "error", err)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		watcher.Run(ctx)
	}()
	logger.Info("Watching config file", "path", a.configPath)
}

// Close stops the transport and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.manager.State() == lifecycle.Running {
		errs = append(errs, a.manager.Stop(ctx))
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	return errors.Join(errs...)
}
