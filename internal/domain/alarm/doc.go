// Package alarm contains the core domain types of the alarm controller.
//
// It defines the persisted records (Module, AlarmEvent, User), the enums
// they use (ModuleStatus, Role) and the sensor vocabulary shared by the
// gateway and the orchestrator (SensorState, Polarity, PullBias).
package alarm
