// Package lifecycle owns the transport's Stopped/Starting/Running/Stopping
// state machine. Start, Stop and Restart are serialized by the Manager.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/i18n"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/notify"
	"github.com/slighter12/vault-mcp-go/tools"
	"github.com/slighter12/vault-mcp-go/tools/types"
)

type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrNoBinder = errors.New("lifecycle: binder is required")
	ErrNoConfig = errors.New("lifecycle: config source is required")
)

// Listener is a bound transport.
type Listener interface {
	Addr() string
	// Shutdown stops accepting new calls and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// Binder binds a transport serving snap on addr.
type Binder func(ctx context.Context, addr string, snap *tools.Snapshot) (Listener, error)

type Options struct {
	// Config returns the current configuration. It is read on every start.
	Config      func() *config.Config
	Definitions []types.Definition
	Bind        Binder
	Sink        notify.Sink
	Messages    i18n.Lookup
	// Sleep waits out the restart settle delay.
	Sleep         func(ctx context.Context, d time.Duration) error
	OnStateChange func(from, to State)
}

type Manager struct {
	opts Options

	mu       sync.Mutex
	listener Listener

	state atomic.Int32
	snap  atomic.Pointer[tools.Snapshot]
	addr  atomic.Pointer[string]
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Bind == nil {
		return nil, ErrNoBinder
	}
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	if opts.Definitions == nil {
		opts.Definitions = tools.All()
	}
	if opts.Sink == nil {
		opts.Sink = notify.LogSink{}
	}
	if opts.Messages == nil {
		opts.Messages = i18n.Static()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Manager{opts: opts}, nil
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Snapshot returns the tools of the current run, or nil when not running.
func (m *Manager) Snapshot() *tools.Snapshot {
	return m.snap.Load()
}

// Addr returns the bound address, or "" when not running.
func (m *Manager) Addr() string {
	if addr := m.addr.Load(); addr != nil {
		return *addr
	}
	return ""
}

// Start binds the transport. Calling it while running reports "already
// running" and returns nil.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, false)
}

// Stop releases the transport. Calling it while stopped reports "already
// stopped" and returns nil.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != Running {
		m.notice(notify.LevelInfo, i18n.ServerAlreadyStopped, nil)
		return nil
	}
	return m.stopLocked(ctx)
}

// Restart stops a running transport, waits the settle delay and starts again
// with the configuration current at that point. Restarting while stopped
// reports "already stopped" and then starts. Binds that fail with
// address-in-use are retried with backoff.
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notice(notify.LevelInfo, i18n.ServerRestarting, nil)
	if m.State() == Running {
		if err := m.stopLocked(ctx); err != nil {
			logger.Warn("Continuing restart after stop failure", "error", err)
		}
	} else {
		m.notice(notify.LevelInfo, i18n.ServerAlreadyStopped, nil)
	}
	if err := m.opts.Sleep(ctx, m.opts.Config().SettleDelay()); err != nil {
		m.notice(notify.LevelError, i18n.ServerStartFailed, map[string]any{"error": err})
		return fmt.Errorf("restart: %w", err)
	}
	return m.startLocked(ctx, true)
}

func (m *Manager) startLocked(ctx context.Context, retry bool) error {
	if state := m.State(); state == Running || state == Starting {
		m.notice(notify.LevelInfo, i18n.ServerAlreadyRunning, nil)
		return nil
	}

	cfg := m.opts.Config()
	m.transition(Starting)

	if err := config.ValidatePort(cfg.Port); err != nil {
		m.transition(Stopped)
		m.notice(notify.LevelError, i18n.ServerInvalidPort, map[string]any{"port": cfg.Port})
		return fmt.Errorf("start: %w", err)
	}

	snap, err := tools.BuildSnapshot(m.opts.Definitions, cfg.Tools)
	if err != nil {
		m.transition(Stopped)
		m.notice(notify.LevelError, i18n.ServerStartFailed, map[string]any{"error": err})
		return fmt.Errorf("start: %w", err)
	}

	addr := cfg.Addr()
	ln, err := m.bind(ctx, cfg, addr, snap, retry)
	if err != nil {
		m.transition(Stopped)
		if IsAddrInUse(err) {
			m.notice(notify.LevelError, i18n.ServerPortInUse, map[string]any{"port": cfg.Port})
		} else {
			m.notice(notify.LevelError, i18n.ServerStartFailed, map[string]any{"error": err})
		}
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	bound := ln.Addr()
	m.listener = ln
	m.snap.Store(snap)
	m.addr.Store(&bound)
	m.transition(Running)
	logger.Info("MCP server running", "address", bound, "tools", snap.Len())
	m.notice(notify.LevelInfo, i18n.ServerStarted, map[string]any{"addr": bound})
	return nil
}

func (m *Manager) bind(ctx context.Context, cfg *config.Config, addr string, snap *tools.Snapshot, retry bool) (Listener, error) {
	if !retry || cfg.Restart.BindAttempts <= 1 {
		return m.opts.Bind(ctx, addr, snap)
	}

	var ln Listener
	op := func() error {
		bound, err := m.opts.Bind(ctx, addr, snap)
		if err != nil {
			if !IsAddrInUse(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		ln = bound
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.Backoff()
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.Restart.BindAttempts-1)), ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warn("Port still in use, retrying bind", "address", addr, "wait", wait, "error", err)
	})
	return ln, err
}

func (m *Manager) stopLocked(ctx context.Context) error {
	m.transition(Stopping)
	ln := m.listener
	m.listener = nil
	m.snap.Store(nil)
	m.addr.Store(nil)

	var err error
	if ln != nil {
		err = ln.Shutdown(ctx)
	}
	m.transition(Stopped)
	if err != nil {
		m.notice(notify.LevelError, i18n.ServerStopFailed, map[string]any{"error": err})
		return fmt.Errorf("stop: %w", err)
	}
	m.notice(notify.LevelInfo, i18n.ServerStopped, nil)
	return nil
}

// ReportTransportError logs err and notifies unless it is a client
// disconnect.
func (m *Manager) ReportTransportError(err error) {
	if err == nil {
		return
	}
	if IsBenignTransportError(err) {
		logger.Debug("Client disconnected", "error", err)
		return
	}
	logger.Error("Transport error", "error", err)
	m.notice(notify.LevelError, i18n.ServerTransportError, map[string]any{"error": err})
}

func (m *Manager) transition(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	logger.Debug("Lifecycle transition", "from", from.String(), "to", to.String())
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(from, to)
	}
}

func (m *Manager) notice(level notify.Level, key string, params map[string]any) {
	m.opts.Sink.Notify(notify.Notice{Level: level, Key: key, Message: m.opts.Messages(key, params)})
}

// IsAddrInUse reports whether err is a bind conflict.
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// IsBenignTransportError reports errors caused by clients going away.
func IsBenignTransportError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.Canceled),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
