//go:build !windows

package gateway

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/slighter12/vault-mcp-go/logger"
)

// handleSignals maps SIGUSR1, SIGUSR2 and SIGHUP to start, stop and restart.
func (a *App) handleSignals(ctx context.Context, wg *sync.WaitGroup) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				logger.Info("Lifecycle signal received", "signal", sig.String())
				var err error
				switch sig {
				case syscall.SIGUSR1:
					err = a.manager.Start(ctx)
				case syscall.SIGUSR2:
					err = a.manager.Stop(ctx)
				case syscall.SIGHUP:
					err = a.manager.Restart(ctx)
				}
				if err != nil {
					logger.Error("Lifecycle command failed", "signal", sig.String(), "error", err)
				}
			}
		}
	}()
}
