package reconcile

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/noteduco342/om-relay/internal/logging"
)

const DefaultPollInterval = 2 * time.Second

// FetchFunc performs one poll. It should reconcile the result itself.
type FetchFunc func(ctx context.Context) error

type PollerConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Jitter      float64
}

// Poller calls fetch on a jittered cadence. After failures the wait grows up
// to MaxInterval; the first success returns it to Interval.
type Poller struct {
	fetch FetchFunc
	cfg   PollerConfig
}

func NewPoller(fetch FetchFunc, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = 15 * cfg.Interval
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = 0.2
	}
	return &Poller{fetch: fetch, cfg: cfg}
}

func (p *Poller) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.Interval
	b.RandomizationFactor = p.cfg.Jitter
	b.Multiplier = 2
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run polls immediately and then until ctx is done. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	b := p.newBackOff()
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := p.fetch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			wait := b.NextBackOff()
			logging.Warn().Err(err).Int("failures", failures).Dur("retry_in", wait).Msg("poll failed")
			timer.Reset(wait)
			continue
		}
		failures = 0
		b.Reset()
		timer.Reset(b.NextBackOff())
	}
}
