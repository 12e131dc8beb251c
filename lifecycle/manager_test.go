package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/i18n"
	"github.com/slighter12/vault-mcp-go/notify"
	"github.com/slighter12/vault-mcp-go/tools"
)

type tcpListener struct {
	ln net.Listener
}

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

func (l *tcpListener) Shutdown(context.Context) error { return l.ln.Close() }

func bindTCP(_ context.Context, addr string, _ *tools.Snapshot) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln}, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func addrInUse() error {
	return &net.OpError{Op: "listen", Net: "tcp", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}
}

type harness struct {
	cfg         atomic.Pointer[config.Config]
	rec         *notify.Recorder
	sleeps      []time.Duration
	transitions []string
	mu          sync.Mutex
	mgr         *Manager
}

func newHarness(t *testing.T, bind Binder) *harness {
	t.Helper()
	h := &harness{rec: &notify.Recorder{}}
	cfg := config.NewConfig()
	cfg.Port = freePort(t)
	cfg.Restart.BackoffMS = 1
	h.cfg.Store(cfg)

	mgr, err := NewManager(Options{
		Config:   h.cfg.Load,
		Bind:     bind,
		Sink:     h.rec,
		Messages: i18n.Default().Lookup("en"),
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
		OnStateChange: func(from, to State) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.transitions = append(h.transitions, fmt.Sprintf("%s>%s", from, to))
		},
	})
	require.NoError(t, err)
	h.mgr = mgr
	t.Cleanup(func() { _ = mgr.Stop(context.Background()) })
	return h
}

func (h *harness) update(fn func(*config.Config)) {
	next := h.cfg.Load().Clone()
	fn(next)
	h.cfg.Store(next)
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	_, err := NewManager(Options{Config: config.NewConfig})
	assert.ErrorIs(t, err, ErrNoBinder)
	_, err = NewManager(Options{Bind: bindTCP})
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestStartAndStop(t *testing.T) {
	h := newHarness(t, bindTCP)
	ctx := context.Background()

	assert.Equal(t, Stopped, h.mgr.State())
	require.NoError(t, h.mgr.Start(ctx))
	assert.Equal(t, Running, h.mgr.State())
	assert.Equal(t, h.cfg.Load().Addr(), h.mgr.Addr())
	require.NotNil(t, h.mgr.Snapshot())

	require.NoError(t, h.mgr.Stop(ctx))
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Empty(t, h.mgr.Addr())
	assert.Nil(t, h.mgr.Snapshot())

	assert.Equal(t, []string{i18n.ServerStarted, i18n.ServerStopped}, h.rec.Keys())
	assert.Equal(t, []string{"stopped>starting", "starting>running", "running>stopping", "stopping>stopped"}, h.transitions)
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	var binds atomic.Int32
	h := newHarness(t, func(ctx context.Context, addr string, snap *tools.Snapshot) (Listener, error) {
		binds.Add(1)
		return bindTCP(ctx, addr, snap)
	})
	ctx := context.Background()

	require.NoError(t, h.mgr.Start(ctx))
	require.NoError(t, h.mgr.Start(ctx))

	assert.Equal(t, Running, h.mgr.State())
	assert.Equal(t, int32(1), binds.Load())
	assert.Equal(t, []string{i18n.ServerStarted, i18n.ServerAlreadyRunning}, h.rec.Keys())
	assert.Equal(t, "MCP server is already running", h.rec.Notices()[1].Message)
}

func TestStopWhileStoppedReports(t *testing.T) {
	h := newHarness(t, bindTCP)

	require.NoError(t, h.mgr.Stop(context.Background()))
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Equal(t, []string{i18n.ServerAlreadyStopped}, h.rec.Keys())
}

func TestStartPortInUse(t *testing.T) {
	h := newHarness(t, bindTCP)
	blocker, err := net.Listen("tcp", h.cfg.Load().Addr())
	require.NoError(t, err)
	defer blocker.Close()

	err = h.mgr.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.EADDRINUSE), "got %v", err)
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Equal(t, []string{i18n.ServerPortInUse}, h.rec.Keys())
}

func TestStartInvalidPort(t *testing.T) {
	var binds atomic.Int32
	h := newHarness(t, func(context.Context, string, *tools.Snapshot) (Listener, error) {
		binds.Add(1)
		return nil, errors.New("unreachable")
	})
	h.update(func(c *config.Config) { c.Port = 70000 })

	err := h.mgr.Start(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidPort)
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Zero(t, binds.Load())
	assert.Equal(t, []string{i18n.ServerInvalidPort}, h.rec.Keys())
	assert.Equal(t, "Invalid port number: 70000", h.rec.Notices()[0].Message)
}

func TestSnapshotFollowsTogglesPerRun(t *testing.T) {
	h := newHarness(t, bindTCP)
	ctx := context.Background()
	h.update(func(c *config.Config) { c.Tools = map[string]bool{"rename_file": false} })

	require.NoError(t, h.mgr.Start(ctx))
	first := h.mgr.Snapshot()
	_, ok := first.Lookup("rename_file")
	assert.False(t, ok)

	h.update(func(c *config.Config) { c.Tools = map[string]bool{} })
	_, ok = h.mgr.Snapshot().Lookup("rename_file")
	assert.False(t, ok, "snapshot must not change while running")

	require.NoError(t, h.mgr.Restart(ctx))
	_, ok = h.mgr.Snapshot().Lookup("rename_file")
	assert.True(t, ok)
}

func TestRestartRebindsToNewPort(t *testing.T) {
	h := newHarness(t, bindTCP)
	ctx := context.Background()

	require.NoError(t, h.mgr.Start(ctx))
	oldAddr := h.mgr.Addr()

	newPort := freePort(t)
	h.update(func(c *config.Config) { c.Port = newPort })
	require.NoError(t, h.mgr.Restart(ctx))

	assert.Equal(t, Running, h.mgr.State())
	assert.Equal(t, h.cfg.Load().Addr(), h.mgr.Addr())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, h.sleeps)

	conn, err := net.Dial("tcp", h.mgr.Addr())
	require.NoError(t, err)
	conn.Close()

	released, err := net.Listen("tcp", oldAddr)
	require.NoError(t, err, "old port should be released")
	released.Close()
}

func TestRestartFromStoppedStarts(t *testing.T) {
	h := newHarness(t, bindTCP)

	require.NoError(t, h.mgr.Restart(context.Background()))
	assert.Equal(t, Running, h.mgr.State())
	assert.Equal(t, []string{i18n.ServerRestarting, i18n.ServerAlreadyStopped, i18n.ServerStarted}, h.rec.Keys())
}

func TestRestartRetriesAddressInUse(t *testing.T) {
	var binds atomic.Int32
	h := newHarness(t, func(ctx context.Context, addr string, snap *tools.Snapshot) (Listener, error) {
		if binds.Add(1) < 3 {
			return nil, addrInUse()
		}
		return bindTCP(ctx, addr, snap)
	})

	require.NoError(t, h.mgr.Restart(context.Background()))
	assert.Equal(t, Running, h.mgr.State())
	assert.Equal(t, int32(3), binds.Load())
}

func TestRestartGivesUpAfterBindAttempts(t *testing.T) {
	var binds atomic.Int32
	h := newHarness(t, func(context.Context, string, *tools.Snapshot) (Listener, error) {
		binds.Add(1)
		return nil, addrInUse()
	})
	h.update(func(c *config.Config) { c.Restart.BindAttempts = 2 })

	err := h.mgr.Restart(context.Background())
	require.Error(t, err)
	assert.True(t, IsAddrInUse(err))
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Equal(t, int32(2), binds.Load())
	assert.Contains(t, h.rec.Keys(), i18n.ServerPortInUse)
}

func TestRestartDoesNotRetryOtherErrors(t *testing.T) {
	var binds atomic.Int32
	boom := errors.New("permission denied")
	h := newHarness(t, func(context.Context, string, *tools.Snapshot) (Listener, error) {
		binds.Add(1)
		return nil, boom
	})

	err := h.mgr.Restart(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), binds.Load())
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Contains(t, h.rec.Keys(), i18n.ServerStartFailed)
}

func TestRestartCancelledDuringSettle(t *testing.T) {
	h := newHarness(t, bindTCP)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.mgr.Start(ctx))
	h.mgr.opts.Sleep = sleep
	cancel()

	err := h.mgr.Restart(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Stopped, h.mgr.State())
	assert.Equal(t, []string{i18n.ServerStarted, i18n.ServerRestarting, i18n.ServerStopped, i18n.ServerStartFailed}, h.rec.Keys())
}

func TestConcurrentStartsBindOnce(t *testing.T) {
	var binds atomic.Int32
	h := newHarness(t, func(ctx context.Context, addr string, snap *tools.Snapshot) (Listener, error) {
		binds.Add(1)
		return bindTCP(ctx, addr, snap)
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.mgr.Start(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), binds.Load())
	assert.Equal(t, Running, h.mgr.State())
}

func TestReportTransportError(t *testing.T) {
	h := newHarness(t, bindTCP)

	h.mgr.ReportTransportError(nil)
	h.mgr.ReportTransportError(fmt.Errorf("read: %w", syscall.ECONNRESET))
	h.mgr.ReportTransportError(io.EOF)
	assert.Empty(t, h.rec.Keys())

	h.mgr.ReportTransportError(errors.New("malformed frame"))
	assert.Equal(t, []string{i18n.ServerTransportError}, h.rec.Keys())
	assert.Equal(t, "MCP transport error: malformed frame", h.rec.Notices()[0].Message)
}

func TestIsBenignTransportError(t *testing.T) {
	benign := []error{
		io.EOF,
		context.Canceled,
		net.ErrClosed,
		&net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)},
		fmt.Errorf("wrapped: %w", syscall.ECONNRESET),
	}
	for _, err := range benign {
		assert.True(t, IsBenignTransportError(err), "%v", err)
	}
	assert.False(t, IsBenignTransportError(nil))
	assert.False(t, IsBenignTransportError(errors.New("boom")))
	assert.False(t, IsBenignTransportError(context.DeadlineExceeded))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "state(9)", State(9).String())
}
