package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPolarityMapping checks that NO alarms on high and NC alarms on low.
func TestPolarityMapping(t *testing.T) {
	t.Parallel()

	require.Equal(t, SensorAlarm, NormallyOpen.StateFor(true))
	require.Equal(t, SensorNormal, NormallyOpen.StateFor(false))
	require.Equal(t, SensorAlarm, NormallyClosed.StateFor(false))
	require.Equal(t, SensorNormal, NormallyClosed.StateFor(true))

	for _, p := range []Polarity{NormallyOpen, NormallyClosed} {
		for _, s := range []SensorState{SensorNormal, SensorAlarm} {
			require.Equal(t, s, p.StateFor(p.LevelFor(s)), "%s/%s", p, s)
		}
	}
}

// TestEnumValidation covers the accepted and rejected enum spellings.
func TestEnumValidation(t *testing.T) {
	t.Parallel()

	require.True(t, NormallyOpen.Valid())
	require.False(t, Polarity("no").Valid())
	require.True(t, PullDown.Valid())
	require.False(t, PullBias("SIDEWAYS").Valid())

	status, ok := ParseModuleStatus(" Active ")
	require.True(t, ok)
	require.Equal(t, ModuleActive, status)
	require.True(t, status.Armed())
	require.False(t, ModuleMaintenance.Armed())

	_, ok = ParseModuleStatus("broken")
	require.False(t, ok)

	role, ok := ParseRole("Operator")
	require.True(t, ok)
	require.Equal(t, RoleOperator, role)

	_, ok = ParseRole("root")
	require.False(t, ok)

	_, ok = ParseSensorState("unknown")
	require.False(t, ok)

	state, ok := ParseSensorState("ALARM")
	require.True(t, ok)
	require.Equal(t, SensorAlarm, state)
}
