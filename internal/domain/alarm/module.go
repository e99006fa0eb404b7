package alarm

import (
	"strings"
	"time"
)

// ModuleStatus is the lifecycle status of a module.
type ModuleStatus string

const (
	// ModuleInactive is a registered module that is not armed.
	ModuleInactive ModuleStatus = "inactive"
	// ModuleActive is an armed module reporting normally.
	ModuleActive ModuleStatus = "active"
	// ModuleAlarm is a module with a raised, not yet deactivated alarm.
	ModuleAlarm ModuleStatus = "alarm"
	// ModuleMaintenance is a module excluded from alarm handling.
	ModuleMaintenance ModuleStatus = "maintenance"
	// ModuleDeleted marks a tombstoned module.
	ModuleDeleted ModuleStatus = "deleted"
)

// ParseModuleStatus normalises s and reports whether it is a known status.
func ParseModuleStatus(s string) (ModuleStatus, bool) {
	status := ModuleStatus(strings.ToLower(strings.TrimSpace(s)))

	return status, status.Valid()
}

// Valid reports whether the status is one of the known values.
func (s ModuleStatus) Valid() bool {
	switch s {
	case ModuleInactive, ModuleActive, ModuleAlarm, ModuleMaintenance, ModuleDeleted:
		return true
	default:
		return false
	}
}

// Armed reports whether sensor alarms for a module in this status are acted upon.
func (s ModuleStatus) Armed() bool {
	return s == ModuleActive || s == ModuleAlarm
}

// Module is a sensor or actuator record owned by the ledger.
type Module struct {
	// ID is generated on insert and never changes.
	ID int64 `json:"id"`
	// Name is the human readable label, not unique.
	Name string `json:"name"`
	// Status is the current lifecycle status.
	Status ModuleStatus `json:"status"`
	// LastUpdated is refreshed on every status write.
	LastUpdated time.Time `json:"last_updated"`
}
