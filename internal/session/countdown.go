package session

import (
	"context"
	"time"
)

// countdown delivers a tick every interval until stopped.
type countdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func startCountdown(interval time.Duration, tick func(*countdown)) *countdown {
	ctx, cancel := context.WithCancel(context.Background())
	cd := &countdown{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go cd.run(interval, tick)
	return cd
}

func (cd *countdown) run(interval time.Duration, tick func(*countdown)) {
	defer close(cd.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cd.ctx.Done():
			return
		case <-ticker.C:
			tick(cd)
		}
	}
}

// stop cancels the countdown without waiting for the goroutine, so it is safe
// to call while holding the lock the tick callback takes. Callers must also
// drop their reference; the controller ignores ticks from a countdown it no
// longer owns.
func (cd *countdown) stop() {
	cd.cancel()
}
