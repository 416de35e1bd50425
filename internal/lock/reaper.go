package lock

import (
	"context"
	"log"
	"time"
)

// expirer is the slice of the lock store the reaper needs.
type expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// Reaper reclaims seats whose holders abandoned checkout without
// releasing.  Each sweep is a single conditional update in the store,
// so multiple reaper instances may run without coordination: a lock
// confirmed or released between sweeps is never overwritten.  The
// reaper performs no seat inventory changes — an expired hold never
// reached the booked flag.
type Reaper struct {
	store    expirer
	interval time.Duration
}

// NewReaper constructs a Reaper sweeping at the given interval.
func NewReaper(store expirer, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reaper{store: store, interval: interval}
}

// Run sweeps on a fixed interval until the context is cancelled.  A
// failed sweep is logged and retried on the next tick; the loop never
// stops on its own.
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("reaper: starting, interval=%s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("reaper: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reclaim pass and returns how many holds expired.
func (r *Reaper) Sweep(ctx context.Context) int64 {
	n, err := r.store.ExpireDue(ctx)
	if err != nil {
		log.Printf("reaper: sweep failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("reaper: reclaimed %d expired holds", n)
	}
	return n
}
