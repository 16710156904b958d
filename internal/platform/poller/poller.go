// Package poller runs named functions on a fixed interval. The pharmacy
// refresh and billing admission sweep loops both hang off it.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Func is one poll iteration. Errors are logged, never fatal: the next
// tick runs regardless.
type Func func(ctx context.Context) error

// Poller runs a Func every Interval until its context is cancelled.
type Poller struct {
	Name     string
	Interval time.Duration
	Run      Func
	Logger   zerolog.Logger
}

func New(name string, interval time.Duration, run Func, logger zerolog.Logger) *Poller {
	return &Poller{
		Name:     name,
		Interval: interval,
		Run:      run,
		Logger:   logger,
	}
}

// Start blocks until ctx is cancelled. An immediate first run precedes the
// ticker so queues are current at startup.
func (p *Poller) Start(ctx context.Context) {
	p.Logger.Info().Str("poller", p.Name).Dur("interval", p.Interval).Msg("poller started")

	p.runOnce(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info().Str("poller", p.Name).Msg("poller stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	if err := p.Run(ctx); err != nil {
		p.Logger.Error().Err(err).Str("poller", p.Name).Msg("poll iteration failed")
	}
}
