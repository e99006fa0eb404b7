package gateway

import (
	"context"
	"time"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// ActivateOutput drives a named output high. With a positive duration the
// output is driven low again once it elapses; a later activation of the same
// channel supersedes any pending deactivation. Unknown names and write
// faults report false.
func (g *Gateway) ActivateOutput(ctx context.Context, name string, duration time.Duration) bool {
	ch, ok := g.outputs[name]
	if !ok {
		logger.WarnKV(ctx, "Unknown output", "output", name)
		return false
	}

	ctx = logger.WithKV(ctx, "output", name, "channel", ch)

	// Writes happen under timersMu so a pending expiry cannot interleave.
	g.timersMu.Lock()

	g.cancelTimer(ch)

	if err := g.backend.ConfigureOutput(ch); err != nil {
		g.timersMu.Unlock()
		logger.ErrorKV(ctx, "Failed to configure output", "error", err)

		return false
	}

	if err := g.backend.Write(ch, High); err != nil {
		g.timersMu.Unlock()
		logger.ErrorKV(ctx, "Failed to activate output", "error", err)

		return false
	}

	gen := g.generations[ch]

	if duration > 0 {
		// Detached from ctx: the deactivation must outlive the request.
		deactivateCtx := context.WithoutCancel(ctx)
		g.timers[ch] = time.AfterFunc(duration, func() {
			g.expire(deactivateCtx, ch, gen)
		})
	}

	g.timersMu.Unlock()

	if g.backend.Simulated() {
		logger.InfoKV(ctx, "Simulated output activated", "duration", duration.String())
	} else {
		logger.InfoKV(ctx, "Output activated", "duration", duration.String())
	}

	return true
}

// DeactivateOutput drives a named output low and cancels any pending
// deactivation for it.
func (g *Gateway) DeactivateOutput(ctx context.Context, name string) bool {
	ch, ok := g.outputs[name]
	if !ok {
		logger.WarnKV(ctx, "Unknown output", "output", name)
		return false
	}

	g.timersMu.Lock()
	g.cancelTimer(ch)
	err := g.backend.Write(ch, Low)
	g.timersMu.Unlock()

	if err != nil {
		logger.ErrorKV(ctx, "Failed to deactivate output", "output", name, "channel", ch, "error", err)
		return false
	}

	logger.InfoKV(ctx, "Output deactivated", "output", name, "channel", ch)

	return true
}

// expire runs on the timer goroutine. A superseded generation is ignored.
func (g *Gateway) expire(ctx context.Context, ch int, gen uint64) {
	g.timersMu.Lock()

	if g.generations[ch] != gen {
		g.timersMu.Unlock()
		return
	}

	delete(g.timers, ch)
	err := g.backend.Write(ch, Low)

	g.timersMu.Unlock()

	if err != nil {
		logger.ErrorKV(ctx, "Failed to deactivate output after duration", "error", err)
		return
	}

	logger.InfoKV(ctx, "Output deactivated after duration")
}

// cancelTimer stops the pending deactivation of ch and invalidates any
// expiry already running. It must be called with timersMu held.
func (g *Gateway) cancelTimer(ch int) {
	if t, ok := g.timers[ch]; ok {
		t.Stop()
		delete(g.timers, ch)
	}

	g.generations[ch]++
}
