package main

import (
	"context"
	"time"

	"github.com/Rrens/bloombuddy/internal/connectivity"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// probe feeds the monitor from periodic health checks until ctx ends
func probe(ctx context.Context, p pinger, monitor *connectivity.Monitor, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, every)
			err := p.Ping(pingCtx)
			cancel()
			if ctx.Err() != nil {
				return
			}
			monitor.Set(err == nil)
		}
	}
}
