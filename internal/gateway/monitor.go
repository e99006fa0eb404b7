package gateway

import (
	"context"
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// StartMonitoring launches the polling loop and, when the backend supports
// interrupts, one edge watcher per bound channel. It is a no-op while
// monitoring is already running.
func (g *Gateway) StartMonitoring(ctx context.Context) {
	g.monMu.Lock()
	defer g.monMu.Unlock()

	if g.mon != nil {
		return
	}

	ctx = logger.WithName(ctx, "gateway-monitor")
	mctx, cancel := context.WithCancel(ctx)

	m := &monitor{ctx: mctx, cancel: cancel}

	m.wg.Add(1)

	go g.pollLoop(m)

	for _, cb := range g.sortedBindings() {
		g.startWatcher(m, cb)
	}

	g.mon = m

	logger.InfoKV(ctx, "Monitoring started",
		"backend", g.backend.Name(),
		"poll_interval", g.pollInterval.String(),
		"debounce", g.debounce.String(),
	)
}

// StopMonitoring cancels the monitoring session and waits for it to end,
// at most for the stop timeout. It is a no-op when monitoring is stopped.
func (g *Gateway) StopMonitoring(ctx context.Context) {
	g.monMu.Lock()
	m := g.mon
	g.mon = nil
	g.monMu.Unlock()

	if m == nil {
		return
	}

	m.cancel()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info(ctx, "Monitoring stopped")
	case <-time.After(g.stopTimeout):
		logger.WarnKV(ctx, "Monitoring did not stop in time", "timeout", g.stopTimeout.String())
	}
}

// Monitoring reports whether a monitoring session is running.
func (g *Gateway) Monitoring() bool {
	g.monMu.Lock()
	defer g.monMu.Unlock()

	return g.mon != nil
}

// startWatcher must be called with monMu held.
func (g *Gateway) startWatcher(m *monitor, cb *channelBinding) {
	if !g.backend.SupportsInterrupts() {
		return
	}

	m.wg.Add(1)

	go g.watch(m, cb)
}

func (g *Gateway) pollLoop(m *monitor) {
	defer m.wg.Done()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	g.sweep(m.ctx)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			g.sweep(m.ctx)
		}
	}
}

// watch waits for edges on one channel until the session ends or the
// binding is replaced.
func (g *Gateway) watch(m *monitor, cb *channelBinding) {
	defer m.wg.Done()

	for m.ctx.Err() == nil {
		if !g.current(cb) {
			return
		}

		if g.backend.WaitForEdge(cb.Channel, edgeWaitTimeout) {
			g.check(m.ctx, cb)
		}
	}
}

// sweep checks every bound channel in ascending channel order.
func (g *Gateway) sweep(ctx context.Context) {
	for _, cb := range g.sortedBindings() {
		if ctx.Err() != nil {
			return
		}

		g.check(ctx, cb)
	}
}

func (g *Gateway) check(ctx context.Context, cb *channelBinding) {
	g.mu.RLock()
	simulated := cb.simulated
	g.mu.RUnlock()

	g.observe(ctx, cb, g.read(ctx, cb, simulated))
}

func (g *Gateway) current(cb *channelBinding) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.byChannel[cb.Channel] == cb
}

// observe records a reading and emits a notification when it changes the
// notified state outside the debounce window.
func (g *Gateway) observe(ctx context.Context, cb *channelBinding, state domain.SensorState) {
	now := g.now()

	g.mu.Lock()

	if g.byChannel[cb.Channel] != cb {
		g.mu.Unlock()
		return
	}

	prev := cb.observed
	cb.observed = state
	n, ok := g.nextNotification(cb, state, now)

	g.mu.Unlock()

	if prev != state {
		logger.DebugKV(ctx, "Sensor state changed", "module_id", cb.ModuleID, "from", prev, "to", state)
	}

	if ok {
		g.notify(ctx, n)
	}
}

// nextNotification must be called with mu held.
func (g *Gateway) nextNotification(cb *channelBinding, state domain.SensorState, now time.Time) (Notification, bool) {
	switch {
	case state == domain.SensorUnknown, state == cb.notified:
		return Notification{}, false
	case cb.notifiedAt.IsZero() && cb.notified == domain.SensorUnknown && state == domain.SensorNormal:
		// First reading of a quiet sensor is the baseline.
		cb.notified = state
		return Notification{}, false
	case !cb.notifiedAt.IsZero() && now.Sub(cb.notifiedAt) < g.debounce:
		return Notification{}, false
	}

	cb.notified = state
	cb.notifiedAt = now

	return Notification{
		ModuleID:  cb.ModuleID,
		Channel:   cb.Channel,
		State:     state,
		AlarmType: cb.AlarmType,
		At:        now,
	}, true
}

func (g *Gateway) notify(ctx context.Context, n Notification) {
	select {
	case g.notifications <- n:
		logger.InfoKV(ctx, "Sensor notification", "module_id", n.ModuleID, "channel", n.Channel, "state", n.State)
	default:
		logger.WarnKV(ctx, "Notification dropped, observer is not keeping up",
			"module_id", n.ModuleID,
			"channel", n.Channel,
			"state", n.State,
		)
	}
}
