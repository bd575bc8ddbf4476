package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrEmptyRoster = errors.New("roster source returned no entries")

// Refresher reloads the directory from a source on a fixed interval.
type Refresher struct {
	dir      *Directory
	src      Source
	interval time.Duration
	log      *zap.Logger
	// OnReplace is called with the entry count after every successful swap.
	OnReplace func(n int)
}

func NewRefresher(dir *Directory, src Source, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{dir: dir, src: src, interval: interval, log: logger}
}

// RefreshOnce loads the source and replaces the directory. On error the
// previous snapshot stays in place.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	entries, err := r.src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}
	if len(entries) == 0 {
		return 0, ErrEmptyRoster
	}
	n := r.dir.Replace(entries)
	if n == 0 {
		return 0, ErrEmptyRoster
	}
	if r.OnReplace != nil {
		r.OnReplace(n)
	}
	return n, nil
}

// Run refreshes on every tick until ctx is done. The first snapshot is the
// caller's job (see RefreshOnce); a non-positive interval never refreshes.
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	n, err := r.RefreshOnce(ctx)
	if err != nil {
		r.log.Warn("roster refresh failed, keeping previous snapshot",
			zap.Error(err), zap.Int("current_entries", r.dir.Len()))
		return
	}
	r.log.Info("roster refreshed", zap.Int("entries", n), zap.Uint64("version", r.dir.Snapshot().Version))
}
