package alarm

import "time"

// AlarmEvent is an alarm occurrence recorded by the trigger path.
// Apart from the one-way acknowledgment flip it is never mutated.
type AlarmEvent struct {
	ID           int64     `json:"id"`
	ModuleID     int64     `json:"module_id"`
	AlarmType    string    `json:"alarm_type"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// ActiveAlarm is an AlarmEvent joined with the name of its module.
// ModuleName is empty when the module has been removed since.
type ActiveAlarm struct {
	AlarmEvent

	ModuleName string `json:"module_name"`
}
