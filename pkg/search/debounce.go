package search

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before an audience query is sent.
const DefaultDebounce = 300 * time.Millisecond

var ErrSuperseded = errors.New("superseded by a newer query")

// Debouncer lets only the latest of a burst of calls through. Each Wait
// blocks for the quiet period and fails with ErrSuperseded if another Wait
// started meanwhile.
type Debouncer struct {
	Delay time.Duration

	mu  sync.Mutex
	gen uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{Delay: delay}
}

func (d *Debouncer) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	mine := d.gen
	d.mu.Unlock()

	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != mine {
		return ErrSuperseded
	}
	return nil
}

// Do waits out the quiet period, then runs fn. It returns ErrSuperseded when
// a newer call started before fn finished, so stale results can be dropped.
func (d *Debouncer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := d.Wait(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	mine := d.gen
	d.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != mine {
		return ErrSuperseded
	}
	return nil
}
