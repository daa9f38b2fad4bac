package browser

import (
	"context"
	"math/rand"
	"time"
)

// Pacer inserts random delays between steps.
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

// Delay returns a random duration in [Min, Max).
func (p Pacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int63n(int64(p.Max-p.Min)))
}

// Sleep waits for a random delay or until ctx ends.
func (p Pacer) Sleep(ctx context.Context) error {
	return Sleep(ctx, p.Delay())
}

// Sleep waits d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HumanScroll wheels down times steps of 200-600px with a pause after each.
func HumanScroll(ctx context.Context, page Page, pacer Pacer, times int) error {
	for i := 0; i < times; i++ {
		if err := page.Scroll(ctx, float64(200+rand.Intn(400))); err != nil {
			return err
		}
		if err := pacer.Sleep(ctx); err != nil {
			return err
		}
	}
	return nil
}
