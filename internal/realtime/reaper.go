package realtime

import (
	"context"
	"time"
)

// Reaper periodically removes channels whose transport reported them dead.
// It runs as a supervised service.
type Reaper struct {
	registry *Registry
	interval time.Duration
}

func NewReaper(registry *Registry, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{registry: registry, interval: interval}
}

// Serve implements suture.Service.
func (r *Reaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.registry.Sweep()
		}
	}
}

func (r *Reaper) String() string {
	return "registry-reaper"
}
