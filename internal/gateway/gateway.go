package gateway

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

const (
	// DefaultDebounce suppresses re-notification of rapid toggles on one channel.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultPollInterval is the pause between monitoring sweeps.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultStopTimeout bounds how long StopMonitoring waits for the loop.
	DefaultStopTimeout = 2 * time.Second
	// DefaultAlarmType is used for bindings registered without one.
	DefaultAlarmType = "intrusion"
	// NotificationBuffer is the capacity of the notification channel.
	NotificationBuffer = 64

	// edgeWaitTimeout caps one WaitForEdge call so watchers notice cancellation.
	edgeWaitTimeout = 500 * time.Millisecond
)

// Output names known by default.
const (
	OutputSiren     = "siren"
	OutputStatusLED = "status_led"
	OutputRelay1    = "relay_1"
	OutputRelay2    = "relay_2"
)

// DefaultOutputs returns the logical output table.
func DefaultOutputs() map[string]int {
	return map[string]int{
		OutputSiren:     17,
		OutputStatusLED: 27,
		OutputRelay1:    22,
		OutputRelay2:    23,
	}
}

// Binding ties a module to an input channel.
type Binding struct {
	ModuleID  int64           `json:"module_id"`
	Channel   int             `json:"channel"`
	Polarity  domain.Polarity `json:"polarity"`
	Pull      domain.PullBias `json:"pull"`
	AlarmType string          `json:"alarm_type"`
}

// Notification reports an observed state change of a bound sensor.
type Notification struct {
	ModuleID  int64
	Channel   int
	State     domain.SensorState
	AlarmType string
	At        time.Time
}

// SensorSnapshot is one entry of SensorStates.
type SensorSnapshot struct {
	Channel   int                `json:"channel"`
	State     domain.SensorState `json:"state"`
	Polarity  domain.Polarity    `json:"polarity"`
	Pull      domain.PullBias    `json:"pull"`
	AlarmType string             `json:"alarm_type"`
}

// Info describes the gateway configuration.
type Info struct {
	Backend    string `json:"backend"`
	Simulated  bool   `json:"simulated"`
	Interrupts bool   `json:"interrupts"`
	Sensors    int    `json:"sensors"`
	Monitoring bool   `json:"monitoring"`
}

// Options tunes a Gateway. Zero values fall back to the defaults.
type Options struct {
	// PollInterval is the pause between monitoring sweeps.
	PollInterval time.Duration
	// Debounce is the minimum gap between two notifications on one channel.
	// A negative value disables debouncing.
	Debounce time.Duration
	// StopTimeout bounds StopMonitoring.
	StopTimeout time.Duration
	// Outputs maps logical output names to channels.
	Outputs map[string]int
	// Now returns the current time, overridable in tests.
	Now func() time.Time
}

// channelBinding is the gateway's private record for one bound channel.
type channelBinding struct {
	Binding

	// simulated is the value returned by reads on a simulated backend.
	simulated domain.SensorState
	// observed is the state seen by the latest read.
	observed domain.SensorState
	// notified is the state last delivered to the observer.
	notified domain.SensorState
	// notifiedAt is when notified was delivered.
	notifiedAt time.Time
}

// monitor is one running monitoring session.
type monitor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Gateway maps modules to channels, reads normalised sensor states,
// notifies state changes and drives outputs.
type Gateway struct {
	backend      Backend
	pollInterval time.Duration
	debounce     time.Duration
	stopTimeout  time.Duration
	outputs      map[string]int
	now          func() time.Time

	// mu guards both binding maps.
	mu        sync.RWMutex
	byChannel map[int]*channelBinding
	byModule  map[int64]int

	// timersMu guards the pending output deactivations and serialises
	// output writes with them.
	timersMu    sync.Mutex
	timers      map[int]*time.Timer
	generations map[int]uint64

	// monMu guards mon.
	monMu sync.Mutex
	mon   *monitor

	notifications chan Notification
}

// New builds a Gateway over backend.
func New(backend Backend, opts Options) *Gateway {
	g := &Gateway{
		backend:       backend,
		pollInterval:  opts.PollInterval,
		debounce:      opts.Debounce,
		stopTimeout:   opts.StopTimeout,
		outputs:       opts.Outputs,
		now:           opts.Now,
		byChannel:     make(map[int]*channelBinding),
		byModule:      make(map[int64]int),
		timers:        make(map[int]*time.Timer),
		generations:   make(map[int]uint64),
		notifications: make(chan Notification, NotificationBuffer),
	}

	if g.pollInterval <= 0 {
		g.pollInterval = DefaultPollInterval
	}

	if g.debounce < 0 {
		g.debounce = 0
	} else if g.debounce == 0 {
		g.debounce = DefaultDebounce
	}

	if g.stopTimeout <= 0 {
		g.stopTimeout = DefaultStopTimeout
	}

	if len(g.outputs) == 0 {
		g.outputs = DefaultOutputs()
	}

	if g.now == nil {
		g.now = time.Now
	}

	return g
}

// Notifications delivers state changes. Sends never block: when the buffer
// is full the notification is dropped and logged.
func (g *Gateway) Notifications() <-chan Notification {
	return g.notifications
}

// RegisterSensor binds a module to a channel. An invalid polarity or bias
// is rejected without creating any state. A binding already using the
// channel or the module is replaced.
func (g *Gateway) RegisterSensor(ctx context.Context, b Binding) bool {
	ctx = logger.WithKV(ctx, "module_id", b.ModuleID, "channel", b.Channel)

	if !b.Polarity.Valid() {
		logger.ErrorKV(ctx, "Invalid sensor polarity", "polarity", b.Polarity)
		return false
	}

	if !b.Pull.Valid() {
		logger.ErrorKV(ctx, "Invalid sensor pull bias", "pull", b.Pull)
		return false
	}

	if b.Channel < 0 {
		logger.ErrorKV(ctx, "Invalid sensor channel")
		return false
	}

	if b.AlarmType == "" {
		b.AlarmType = DefaultAlarmType
	}

	// Configure the physical line first so a fault leaves no binding behind.
	if !g.backend.Simulated() {
		if err := g.backend.ConfigureInput(b.Channel, b.Pull, g.backend.SupportsInterrupts()); err != nil {
			logger.ErrorKV(ctx, "Failed to configure sensor channel", "error", err)
			return false
		}
	}

	cb := &channelBinding{
		Binding:   b,
		simulated: domain.SensorNormal,
		observed:  domain.SensorUnknown,
		notified:  domain.SensorUnknown,
	}

	// monMu is taken before mu, as in StartMonitoring.
	g.monMu.Lock()
	g.mu.Lock()

	released := -1

	if prev, ok := g.byModule[b.ModuleID]; ok {
		delete(g.byChannel, prev)

		if prev != b.Channel {
			released = prev
		}
	}

	if prev, ok := g.byChannel[b.Channel]; ok {
		delete(g.byModule, prev.ModuleID)
	}

	g.byChannel[b.Channel] = cb
	g.byModule[b.ModuleID] = b.Channel

	g.mu.Unlock()

	if g.mon != nil {
		g.startWatcher(g.mon, cb)
	}

	g.monMu.Unlock()

	if released >= 0 {
		g.releaseInput(ctx, released)
	}

	logger.InfoKV(ctx, "Sensor registered", "polarity", b.Polarity, "pull", b.Pull, "alarm_type", b.AlarmType)

	return true
}

// UnregisterSensor drops the binding of a module.
// It reports false when the module has no binding.
func (g *Gateway) UnregisterSensor(ctx context.Context, moduleID int64) bool {
	g.mu.Lock()

	ch, ok := g.byModule[moduleID]
	if ok {
		delete(g.byModule, moduleID)
		delete(g.byChannel, ch)
	}

	g.mu.Unlock()

	if !ok {
		return false
	}

	g.releaseInput(ctx, ch)

	logger.InfoKV(ctx, "Sensor unregistered", "module_id", moduleID, "channel", ch)

	return true
}

// ReadSensorState returns the normalised state of a module's sensor.
// Unbound modules and read faults yield unknown.
func (g *Gateway) ReadSensorState(ctx context.Context, moduleID int64) domain.SensorState {
	g.mu.RLock()
	cb := g.bindingFor(moduleID)

	var simulated domain.SensorState
	if cb != nil {
		simulated = cb.simulated
	}
	g.mu.RUnlock()

	if cb == nil {
		return domain.SensorUnknown
	}

	return g.read(ctx, cb, simulated)
}

// SetSensorState overrides the simulated value of a module's sensor.
// It reports false when the module is unbound, the state is not normal or
// alarm, or the backend reads real hardware.
func (g *Gateway) SetSensorState(ctx context.Context, moduleID int64, state domain.SensorState) bool {
	if state != domain.SensorNormal && state != domain.SensorAlarm {
		logger.WarnKV(ctx, "Invalid simulated sensor state", "module_id", moduleID, "state", state)
		return false
	}

	if !g.backend.Simulated() {
		logger.WarnKV(ctx, "Sensor state override needs the simulated backend", "module_id", moduleID)
		return false
	}

	g.mu.Lock()
	cb := g.bindingFor(moduleID)
	if cb != nil {
		cb.simulated = state
	}
	g.mu.Unlock()

	if cb == nil {
		logger.WarnKV(ctx, "No sensor bound to module", "module_id", moduleID)
		return false
	}

	logger.DebugKV(ctx, "Simulated sensor state set", "module_id", moduleID, "state", state)

	return true
}

// SensorStates returns a snapshot of every bound sensor keyed by module id.
func (g *Gateway) SensorStates(ctx context.Context) map[int64]SensorSnapshot {
	type entry struct {
		binding   *channelBinding
		simulated domain.SensorState
	}

	g.mu.RLock()

	entries := make([]entry, 0, len(g.byChannel))
	for _, cb := range g.byChannel {
		entries = append(entries, entry{binding: cb, simulated: cb.simulated})
	}

	g.mu.RUnlock()

	states := make(map[int64]SensorSnapshot, len(entries))

	for _, e := range entries {
		states[e.binding.ModuleID] = SensorSnapshot{
			Channel:   e.binding.Channel,
			State:     g.read(ctx, e.binding, e.simulated),
			Polarity:  e.binding.Polarity,
			Pull:      e.binding.Pull,
			AlarmType: e.binding.AlarmType,
		}
	}

	return states
}

// Binding returns the binding of a module, if any.
func (g *Gateway) Binding(moduleID int64) (Binding, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cb := g.bindingFor(moduleID)
	if cb == nil {
		return Binding{}, false
	}

	return cb.Binding, true
}

// Info describes the backend and current load.
func (g *Gateway) Info() Info {
	g.mu.RLock()
	sensors := len(g.byChannel)
	g.mu.RUnlock()

	g.monMu.Lock()
	monitoring := g.mon != nil
	g.monMu.Unlock()

	return Info{
		Backend:    g.backend.Name(),
		Simulated:  g.backend.Simulated(),
		Interrupts: g.backend.SupportsInterrupts(),
		Sensors:    sensors,
		Monitoring: monitoring,
	}
}

// Outputs returns a copy of the logical output table.
func (g *Gateway) Outputs() map[string]int {
	return maps.Clone(g.outputs)
}

// Close stops monitoring, drives every output low and releases the backend.
func (g *Gateway) Close(ctx context.Context) error {
	g.StopMonitoring(ctx)

	g.timersMu.Lock()

	for name, ch := range g.outputs {
		g.cancelTimer(ch)

		if err := g.backend.Write(ch, Low); err != nil {
			logger.WarnKV(ctx, "Failed to reset output", "output", name, "channel", ch, "error", err)
		}
	}

	g.timersMu.Unlock()

	return g.backend.Close()
}

// releaseInput stops edge detection on a channel that lost its binding.
func (g *Gateway) releaseInput(ctx context.Context, ch int) {
	if g.backend.Simulated() {
		return
	}

	if err := g.backend.ReleaseInput(ch); err != nil {
		logger.WarnKV(ctx, "Failed to release sensor channel", "channel", ch, "error", err)
	}
}

// bindingFor must be called with mu held.
func (g *Gateway) bindingFor(moduleID int64) *channelBinding {
	ch, ok := g.byModule[moduleID]
	if !ok {
		return nil
	}

	return g.byChannel[ch]
}

func (g *Gateway) read(ctx context.Context, cb *channelBinding, simulated domain.SensorState) domain.SensorState {
	if g.backend.Simulated() {
		return simulated
	}

	level, err := g.backend.Read(cb.Channel)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to read sensor channel", "module_id", cb.ModuleID, "channel", cb.Channel, "error", err)
		return domain.SensorUnknown
	}

	return cb.Polarity.StateFor(bool(level))
}

// sortedBindings returns the bound channels in ascending order.
func (g *Gateway) sortedBindings() []*channelBinding {
	g.mu.RLock()
	defer g.mu.RUnlock()

	channels := slices.Sorted(maps.Keys(g.byChannel))

	bindings := make([]*channelBinding, 0, len(channels))
	for _, ch := range channels {
		bindings = append(bindings, g.byChannel[ch])
	}

	return bindings
}
