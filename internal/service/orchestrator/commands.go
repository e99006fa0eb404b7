package orchestrator

import (
	"context"
	"fmt"
	"time"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// DefaultTestOutputDuration is how long TestOutput keeps an output high.
const DefaultTestOutputDuration = 2 * time.Second

// Status summarises the controller for the presentation layer.
type Status struct {
	Gateway        gateway.Info `json:"gateway"`
	Modules        int          `json:"modules"`
	ModulesInAlarm int          `json:"modules_in_alarm"`
	ActiveAlarms   int          `json:"active_alarms"`
	Silenced       bool         `json:"silenced"`
	SilencedUntil  time.Time    `json:"silenced_until,omitzero"`
	NightMode      bool         `json:"night_mode"`
}

// RegisterModule creates a module. An empty status registers it inactive.
func (o *Orchestrator) RegisterModule(ctx context.Context, name, status string) (int64, error) {
	st := domain.ModuleInactive

	if status != "" {
		var ok bool
		if st, ok = domain.ParseModuleStatus(status); !ok {
			return 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
	}

	id, err := o.ledger.RegisterModule(ctx, name, st)
	if err != nil {
		return 0, classify(err)
	}

	return id, nil
}

// UnregisterModule removes a module and its sensor binding.
func (o *Orchestrator) UnregisterModule(ctx context.Context, id int64) error {
	ok, err := o.ledger.UnregisterModule(ctx, id)
	if err != nil {
		return classify(err)
	}

	if !ok {
		return fmt.Errorf("%w: module %d", ErrNotFound, id)
	}

	o.gateway.UnregisterSensor(ctx, id)

	return nil
}

// SetModuleStatus changes the status of a module.
func (o *Orchestrator) SetModuleStatus(ctx context.Context, id int64, status string) error {
	st, ok := domain.ParseModuleStatus(status)
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	updated, err := o.ledger.UpdateModuleStatus(ctx, id, st)
	if err != nil {
		return classify(err)
	}

	if !updated {
		return fmt.Errorf("%w: module %d", ErrNotFound, id)
	}

	return nil
}

// RegisterSensor binds a sensor to an existing module.
func (o *Orchestrator) RegisterSensor(ctx context.Context, b gateway.Binding) error {
	if !b.Polarity.Valid() {
		return fmt.Errorf("%w: %w %q", ErrValidation, domain.ErrInvalidPolarity, b.Polarity)
	}

	if !b.Pull.Valid() {
		return fmt.Errorf("%w: %w %q", ErrValidation, domain.ErrInvalidPullBias, b.Pull)
	}

	if _, err := o.ledger.GetModule(ctx, b.ModuleID); err != nil {
		return classify(err)
	}

	if !o.gateway.RegisterSensor(ctx, b) {
		return fmt.Errorf("%w: channel %d could not be configured", ErrChannelFault, b.Channel)
	}

	return nil
}

// RemoveSensor drops the sensor binding of a module.
func (o *Orchestrator) RemoveSensor(ctx context.Context, moduleID int64) error {
	if !o.gateway.UnregisterSensor(ctx, moduleID) {
		return fmt.Errorf("%w: no sensor bound to module %d", ErrNotFound, moduleID)
	}

	return nil
}

// ReadSensor returns the current state of the sensor bound to a module.
func (o *Orchestrator) ReadSensor(ctx context.Context, moduleID int64) (domain.SensorState, error) {
	if _, ok := o.gateway.Binding(moduleID); !ok {
		return domain.SensorUnknown, fmt.Errorf("%w: no sensor bound to module %d", ErrNotFound, moduleID)
	}

	state := o.gateway.ReadSensorState(ctx, moduleID)
	if state == domain.SensorUnknown {
		return state, fmt.Errorf("%w: sensor of module %d could not be read", ErrChannelFault, moduleID)
	}

	return state, nil
}

// SimulateSensor sets the reading of a sensor on the simulated backend.
// Monitoring picks the new state up on its next sweep.
func (o *Orchestrator) SimulateSensor(ctx context.Context, moduleID int64, state string) error {
	st, ok := domain.ParseSensorState(state)
	if !ok {
		return fmt.Errorf("%w: sensor state %q is not normal or alarm", ErrValidation, state)
	}

	if _, ok = o.gateway.Binding(moduleID); !ok {
		return fmt.Errorf("%w: no sensor bound to module %d", ErrNotFound, moduleID)
	}

	if !o.gateway.Info().Simulated {
		return fmt.Errorf("%w: sensor states can only be set on the simulated backend", ErrDenied)
	}

	if !o.gateway.SetSensorState(ctx, moduleID, st) {
		return fmt.Errorf("%w: sensor of module %d", ErrChannelFault, moduleID)
	}

	return nil
}

// TriggerAlarm raises an alarm by hand, such as a panic button, and sounds
// the siren under the same suppression rules as sensor alarms.
func (o *Orchestrator) TriggerAlarm(ctx context.Context, moduleID int64, alarmType, description string) (int64, error) {
	id, err := o.ledger.TriggerAlarm(ctx, moduleID, alarmType, description)
	if err != nil {
		return 0, classify(err)
	}

	o.soundSiren(ctx)

	return id, nil
}

// Acknowledge marks an active alarm as seen. The module stays in alarm
// until Deactivate.
func (o *Orchestrator) Acknowledge(ctx context.Context, alarmID int64) error {
	ok, err := o.ledger.AcknowledgeAlarm(ctx, alarmID)
	if err != nil {
		return classify(err)
	}

	if !ok {
		return fmt.Errorf("%w: no active alarm %d", ErrNotFound, alarmID)
	}

	return nil
}

// CreateUser adds a user account.
func (o *Orchestrator) CreateUser(ctx context.Context, username, credential, role string) (int64, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	id, err := o.ledger.InsertUser(ctx, username, credential, r)
	if err != nil {
		return 0, classify(err)
	}

	return id, nil
}

// Authenticate checks a credential. Every failure is reported as ErrDenied.
func (o *Orchestrator) Authenticate(ctx context.Context, username, credential string) (*domain.User, error) {
	u, err := o.ledger.AuthenticateUser(ctx, username, credential)
	if err != nil {
		return nil, classify(err)
	}

	return u, nil
}

// ChangeCredential replaces a user's credential after checking the current one.
func (o *Orchestrator) ChangeCredential(ctx context.Context, username, current, next string) error {
	return classify(o.ledger.ChangeCredential(ctx, username, current, next))
}

// TestOutput pulses a named output regardless of silence or night mode.
func (o *Orchestrator) TestOutput(ctx context.Context, name string, d time.Duration) error {
	if _, ok := o.gateway.Outputs()[name]; !ok {
		return fmt.Errorf("%w: output %q", ErrNotFound, name)
	}

	if d <= 0 {
		d = DefaultTestOutputDuration
	}

	if !o.gateway.ActivateOutput(ctx, name, d) {
		return fmt.Errorf("%w: output %q", ErrChannelFault, name)
	}

	logger.InfoKV(ctx, "Output test started", "output", name, "duration", d.String())

	return nil
}

// Modules returns every module.
func (o *Orchestrator) Modules(ctx context.Context) ([]domain.Module, error) {
	return o.ledger.GetAllModules(ctx)
}

// ActiveAlarms returns the unacknowledged alarms, newest first.
func (o *Orchestrator) ActiveAlarms(ctx context.Context) ([]domain.ActiveAlarm, error) {
	return o.ledger.GetActiveAlarms(ctx)
}

// AlarmHistory returns the latest alarms, acknowledged or not.
func (o *Orchestrator) AlarmHistory(ctx context.Context, limit int) ([]domain.ActiveAlarm, error) {
	return o.ledger.GetAlarmHistory(ctx, limit)
}

// SensorStates returns a snapshot of every bound sensor.
func (o *Orchestrator) SensorStates(ctx context.Context) map[int64]gateway.SensorSnapshot {
	return o.gateway.SensorStates(ctx)
}

// Status summarises modules, alarms, gateway and suppression state.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	modules, err := o.ledger.GetAllModules(ctx)
	if err != nil {
		return nil, err
	}

	alarms, err := o.ledger.GetActiveAlarms(ctx)
	if err != nil {
		return nil, err
	}

	s := &Status{
		Gateway:      o.gateway.Info(),
		Modules:      len(modules),
		ActiveAlarms: len(alarms),
	}

	for _, m := range modules {
		if m.Status == domain.ModuleAlarm {
			s.ModulesInAlarm++
		}
	}

	o.mu.Lock()
	s.Silenced = !o.silencedUntil.IsZero()
	s.SilencedUntil = o.silencedUntil
	s.NightMode = o.nightMode
	o.mu.Unlock()

	return s, nil
}
