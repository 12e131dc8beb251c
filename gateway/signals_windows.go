//go:build windows

package gateway

import (
	"context"
	"sync"
)

func (a *App) handleSignals(context.Context, *sync.WaitGroup) {}
