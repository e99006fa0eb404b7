package orchestrator

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
	"github.com/sgonzalezm/AlarmMgmt/internal/repository/ledger"
)

const (
	// DefaultAlarmDuration is how long the siren sounds for one alarm.
	DefaultAlarmDuration = 60 * time.Second
	// DefaultSilenceDuration is the length of a temporary silence.
	DefaultSilenceDuration = 30 * time.Minute
)

// Ledger is the persistence the orchestrator writes to.
type Ledger interface {
	RegisterModule(ctx context.Context, name string, status domain.ModuleStatus) (int64, error)
	UpdateModuleStatus(ctx context.Context, id int64, status domain.ModuleStatus) (bool, error)
	UnregisterModule(ctx context.Context, id int64) (bool, error)
	GetAllModules(ctx context.Context) ([]domain.Module, error)
	GetModule(ctx context.Context, id int64) (*domain.Module, error)
	TriggerAlarm(ctx context.Context, moduleID int64, alarmType, description string) (int64, error)
	AcknowledgeAlarm(ctx context.Context, id int64) (bool, error)
	GetActiveAlarms(ctx context.Context) ([]domain.ActiveAlarm, error)
	GetAlarmHistory(ctx context.Context, limit int) ([]domain.ActiveAlarm, error)
	InsertUser(ctx context.Context, username, credential string, role domain.Role) (int64, error)
	AuthenticateUser(ctx context.Context, username, credential string) (*domain.User, error)
	ChangeCredential(ctx context.Context, username, current, next string) error
}

// Gateway is the sensor and output layer the orchestrator reacts to.
type Gateway interface {
	Notifications() <-chan gateway.Notification
	RegisterSensor(ctx context.Context, b gateway.Binding) bool
	UnregisterSensor(ctx context.Context, moduleID int64) bool
	ReadSensorState(ctx context.Context, moduleID int64) domain.SensorState
	SetSensorState(ctx context.Context, moduleID int64, state domain.SensorState) bool
	Binding(moduleID int64) (gateway.Binding, bool)
	SensorStates(ctx context.Context) map[int64]gateway.SensorSnapshot
	ActivateOutput(ctx context.Context, name string, duration time.Duration) bool
	DeactivateOutput(ctx context.Context, name string) bool
	Outputs() map[string]int
	Info() gateway.Info
}

// Options configures an Orchestrator.
type Options struct {
	// AlarmDuration is how long the siren sounds for one alarm.
	AlarmDuration time.Duration
	// DeactivationCode authorises Deactivate. Empty disables deactivation.
	DeactivationCode string
	// NightMode suppresses the siren while still recording alarms.
	NightMode bool
	// SilenceDuration is used by Silence when no duration is given.
	SilenceDuration time.Duration
	// Notifications holds delivery settings passed through untouched.
	Notifications map[string]any
}

// Orchestrator binds gateway notifications to ledger writes and outputs.
type Orchestrator struct {
	ledger  Ledger
	gateway Gateway

	alarmDuration    time.Duration
	silenceDuration  time.Duration
	deactivationCode []byte
	notifications    map[string]any

	// mu guards the suppression state below.
	mu            sync.Mutex
	nightMode     bool
	silencedUntil time.Time
	silenceTimer  *time.Timer
	silenceGen    uint64
}

// New builds an Orchestrator.
func New(l Ledger, g Gateway, opts Options) *Orchestrator {
	o := &Orchestrator{
		ledger:           l,
		gateway:          g,
		alarmDuration:    opts.AlarmDuration,
		silenceDuration:  opts.SilenceDuration,
		deactivationCode: []byte(opts.DeactivationCode),
		notifications:    maps.Clone(opts.Notifications),
		nightMode:        opts.NightMode,
	}

	if o.alarmDuration <= 0 {
		o.alarmDuration = DefaultAlarmDuration
	}

	if o.silenceDuration <= 0 {
		o.silenceDuration = DefaultSilenceDuration
	}

	return o
}

// Run consumes gateway notifications until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "orchestrator")

	logger.Info(ctx, "Waiting for sensor notifications")

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case n := <-o.gateway.Notifications():
			o.handle(ctx, n)
		}
	}
}

// handle reacts to one notification. Failures are logged, never returned:
// the gateway does not retry.
func (o *Orchestrator) handle(ctx context.Context, n gateway.Notification) {
	ctx = logger.WithKV(ctx, "module_id", n.ModuleID, "channel", n.Channel)

	if n.State != domain.SensorAlarm {
		logger.DebugKV(ctx, "Sensor back to rest", "state", n.State)
		return
	}

	m, err := o.ledger.GetModule(ctx, n.ModuleID)
	switch {
	case errors.Is(err, ledger.ErrModuleNotFound):
		logger.WarnKV(ctx, "Alarm from a sensor bound to an unknown module")
		return
	case err != nil:
		logger.ErrorKV(ctx, "Failed to load module for alarm", "error", err)
		return
	}

	// Maintenance and inactive modules are not armed.
	if !m.Status.Armed() {
		logger.InfoKV(ctx, "Alarm ignored, module not armed", "status", m.Status)
		return
	}

	description := fmt.Sprintf("sensor on channel %d reported alarm", n.Channel)

	if _, err = o.ledger.TriggerAlarm(ctx, m.ID, n.AlarmType, description); err != nil {
		logger.ErrorKV(ctx, "Failed to record alarm", "error", err)
		return
	}

	o.soundSiren(ctx)
}

// soundSiren activates the siren unless silenced or in night mode.
func (o *Orchestrator) soundSiren(ctx context.Context) bool {
	if reason := o.suppression(); reason != "" {
		logger.InfoKV(ctx, "Siren suppressed", "reason", reason)
		return false
	}

	if !o.gateway.ActivateOutput(ctx, gateway.OutputSiren, o.alarmDuration) {
		logger.ErrorKV(ctx, "Failed to sound siren")
		return false
	}

	return true
}

// suppression names why outputs are currently suppressed, or returns "".
func (o *Orchestrator) suppression() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case !o.silencedUntil.IsZero():
		return "silence"
	case o.nightMode:
		return "night_mode"
	default:
		return ""
	}
}

// Silence suppresses the siren for d, or the configured silence duration
// when d is not positive. Alarms are still recorded meanwhile. A new call
// replaces a running silence. It returns the time the silence ends.
func (o *Orchestrator) Silence(ctx context.Context, d time.Duration) time.Time {
	if d <= 0 {
		d = o.silenceDuration
	}

	o.mu.Lock()

	if o.silenceTimer != nil {
		o.silenceTimer.Stop()
	}

	o.silenceGen++
	gen := o.silenceGen
	o.silencedUntil = time.Now().Add(d)
	until := o.silencedUntil

	expireCtx := context.WithoutCancel(ctx)
	o.silenceTimer = time.AfterFunc(d, func() {
		o.endSilence(expireCtx, gen)
	})

	o.mu.Unlock()

	logger.InfoKV(ctx, "Temporary silence activated", "duration", d.String(), "until", until.Format(time.RFC3339))

	return until
}

// CancelSilence ends a running silence. It reports whether one was running.
func (o *Orchestrator) CancelSilence(ctx context.Context) bool {
	o.mu.Lock()
	running := !o.silencedUntil.IsZero()

	if o.silenceTimer != nil {
		o.silenceTimer.Stop()
		o.silenceTimer = nil
	}

	o.silenceGen++
	o.silencedUntil = time.Time{}
	o.mu.Unlock()

	if running {
		logger.Info(ctx, "Temporary silence cancelled")
	}

	return running
}

// Silenced reports whether a temporary silence is running.
func (o *Orchestrator) Silenced() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return !o.silencedUntil.IsZero()
}

// SetNightMode toggles night mode.
func (o *Orchestrator) SetNightMode(ctx context.Context, on bool) {
	o.mu.Lock()
	o.nightMode = on
	o.mu.Unlock()

	logger.InfoKV(ctx, "Night mode changed", "night_mode", on)
}

// NotificationSettings returns a copy of the pass-through delivery settings.
func (o *Orchestrator) NotificationSettings() map[string]any {
	return maps.Clone(o.notifications)
}

func (o *Orchestrator) endSilence(ctx context.Context, gen uint64) {
	o.mu.Lock()
	if o.silenceGen != gen {
		o.mu.Unlock()
		return
	}

	o.silencedUntil = time.Time{}
	o.silenceTimer = nil
	o.mu.Unlock()

	logger.Info(ctx, "Temporary silence expired")
}

// Deactivate clears every module in alarm back to active and stops the
// siren. The code is compared in constant time. It returns how many
// modules were cleared.
func (o *Orchestrator) Deactivate(ctx context.Context, code string) (int, error) {
	if len(o.deactivationCode) == 0 {
		logger.WarnKV(ctx, "Deactivation refused, no code configured")
		return 0, ErrDeactivationDisabled
	}

	if subtle.ConstantTimeCompare([]byte(code), o.deactivationCode) != 1 {
		logger.WarnKV(ctx, "Incorrect deactivation code entered")
		return 0, ErrInvalidDeactivationCode
	}

	modules, err := o.ledger.GetAllModules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list modules: %w", err)
	}

	cleared := 0

	for _, m := range modules {
		if m.Status != domain.ModuleAlarm {
			continue
		}

		ok, err := o.ledger.UpdateModuleStatus(ctx, m.ID, domain.ModuleActive)
		if err != nil {
			return cleared, fmt.Errorf("clear module %d: %w", m.ID, err)
		}

		if ok {
			cleared++
		}
	}

	o.gateway.DeactivateOutput(ctx, gateway.OutputSiren)

	logger.InfoKV(ctx, "Alarm deactivated", "modules_cleared", cleared)

	return cleared, nil
}
