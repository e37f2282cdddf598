package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

// Sweeper periodically runs an unscoped DispatchDue. The cadence is jittered
// and grows while the store keeps failing; a tripped breaker skips cycles
// until its timeout elapses.
type Sweeper struct {
	dispatcher *Dispatcher
	cfg        config.SchedulerConfig
	breaker    *gobreaker.CircuitBreaker[DispatchReport]
	now        func() time.Time
}

func NewSweeper(dispatcher *Dispatcher, cfg config.SchedulerConfig) *Sweeper {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	s := &Sweeper{
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.breaker = gobreaker.NewCircuitBreaker[DispatchReport](gobreaker.Settings{
		Name:    "scheduled-dispatch",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("sweeper breaker state changed")
		},
	})
	return s
}

func (s *Sweeper) String() string { return "scheduled-sweeper" }

func (s *Sweeper) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.Interval
	b.RandomizationFactor = s.cfg.Jitter
	b.Multiplier = 2
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	b := s.newBackOff()
	timer := time.NewTimer(b.NextBackOff())
	defer timer.Stop()

	logging.Info().Dur("interval", s.cfg.Interval).Msg("scheduled sweeper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			timer.Reset(b.NextBackOff())
			continue
		}
		b.Reset()
		timer.Reset(b.NextBackOff())
	}
}

// RunOnce performs one sweep through the breaker. When the breaker is open
// the sweep is skipped and the breaker's error is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (DispatchReport, error) {
	start := time.Now()
	report, err := s.breaker.Execute(func() (DispatchReport, error) {
		return s.dispatcher.DispatchDue(ctx, s.now(), "")
	})
	metrics.ObserveSweep(start)

	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SweepFailures.WithLabelValues("breaker_open").Inc()
		logging.Debug().Msg("sweep skipped, breaker open")
	case errors.Is(err, context.Canceled):
		return report, err
	default:
		metrics.SweepFailures.WithLabelValues("store").Inc()
		logging.Warn().Err(err).Int("dispatched", report.Total()).Msg("sweep failed")
	}
	return report, err
}
