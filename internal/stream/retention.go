package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Pruner deletes rows older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper enforces the retention window. Pruning may restart storage row
// ids, which is safe because cursors only compare timestamps.
type Sweeper struct {
	pruners  []Pruner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(maxAge, interval time.Duration, pruners ...Pruner) *Sweeper {
	return &Sweeper{
		pruners:  pruners,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
	}
}

// Sweep prunes every store once and returns the number of rows removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)

	var (
		total int64
		errs  []error
	)
	for _, p := range s.pruners {
		n, err := p.PruneBefore(ctx, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if len(errs) > 0 {
		return total, fmt.Errorf("stream.Sweeper.Sweep: %w", errors.Join(errs...))
	}
	return total, nil
}

// Run sweeps on every interval until ctx ends. A non-positive maxAge
// disables retention.
func (s *Sweeper) Run(ctx context.Context) {
	if s.maxAge <= 0 || s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("retention sweep")
				continue
			}
			if n > 0 {
				log.Info().Int64("rows", n).Dur("max_age", s.maxAge).Msg("retention sweep pruned rows")
			}
		}
	}
}
