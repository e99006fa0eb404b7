package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
)

// TestValidate checks defaults and enumeration checks.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Defaults fill an empty config.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultDBFilename, cfg.DBPath)
	require.Equal(t, DefaultAlarmDuration, cfg.AlarmDuration)
	require.Equal(t, DefaultSilenceDuration, cfg.SilenceDuration)
	require.Equal(t, BackendSimulated, cfg.Gateway.Backend)
	require.Equal(t, DefaultDebounce, cfg.Gateway.Debounce)
	require.Equal(t, 17, cfg.Outputs["siren"])
	require.Equal(t, DefaultAdminUsername, cfg.BootstrapAdmin.Username)

	// A negative debounce survives validation and disables the window.
	cfg = &Config{Gateway: Gateway{Debounce: -time.Second}}
	require.NoError(t, Validate(cfg))
	require.Equal(t, -time.Second, cfg.Gateway.Debounce)
	require.Equal(t, gateway.DefaultOutputs(), cfg.Outputs)

	// Bad backend.
	cfg = &Config{Gateway: Gateway{Backend: "wiringpi"}}
	require.ErrorIs(t, Validate(cfg), ErrInvalid)

	// Bad log level.
	cfg = &Config{LogLevel: "chatty"}
	require.ErrorIs(t, Validate(cfg), ErrInvalid)

	// Sensor enumerations are normalised.
	cfg = &Config{Sensors: []Sensor{{ModuleID: 1, Channel: 4, Polarity: "nc", Pull: "up"}}}
	require.NoError(t, Validate(cfg))
	require.Equal(t, domain.NormallyClosed, cfg.Sensors[0].Polarity)
	require.Equal(t, domain.PullUp, cfg.Sensors[0].Pull)

	// Bad polarity.
	cfg = &Config{Sensors: []Sensor{{ModuleID: 1, Channel: 4, Polarity: "NX", Pull: "UP"}}}
	require.ErrorIs(t, Validate(cfg), ErrInvalid)

	// One channel per module and one module per channel.
	cfg = &Config{Sensors: []Sensor{
		{ModuleID: 1, Channel: 4, Polarity: "NO", Pull: "UP"},
		{ModuleID: 2, Channel: 4, Polarity: "NO", Pull: "UP"},
	}}
	require.ErrorIs(t, Validate(cfg), ErrInvalid)

	cfg = &Config{Sensors: []Sensor{
		{ModuleID: 1, Channel: 4, Polarity: "NO", Pull: "UP"},
		{ModuleID: 1, Channel: 5, Polarity: "NO", Pull: "UP"},
	}}
	require.ErrorIs(t, Validate(cfg), ErrInvalid)

	require.Error(t, Validate(nil))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		DBPath:           filepath.Join(dir, "alarm.db"),
		AlarmDuration:    90 * time.Second,
		DeactivationCode: "2468",
		NightMode:        true,
		Sensors: []Sensor{
			{ModuleID: 3, Channel: 5, Polarity: domain.NormallyOpen, Pull: domain.PullDown, AlarmType: "window_open"},
		},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.DBPath, loaded.DBPath)
	require.Equal(t, 90*time.Second, loaded.AlarmDuration)
	require.Equal(t, "2468", loaded.DeactivationCode)
	require.True(t, loaded.NightMode)
	require.Equal(t, settings.Sensors, loaded.Sensors)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoadFromYAML parses hand-written durations and nested sections.
func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	contents := `
db_path: /var/lib/alarm/alarm.db
alarm_duration: 2m
deactivation_code: "1357"
notifications:
  email: true
gateway:
  backend: periph
  poll_interval: 50ms
outputs:
  siren: 18
sensors:
  - module_id: 1
    channel: 4
    polarity: NO
    pull: UP
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.AlarmDuration)
	require.Equal(t, BackendPeriph, cfg.Gateway.Backend)
	require.Equal(t, 50*time.Millisecond, cfg.Gateway.PollInterval)
	require.Equal(t, map[string]int{"siren": 18}, cfg.Outputs)
	require.Equal(t, true, cfg.Notifications["email"])
	require.Len(t, cfg.Sensors, 1)
}

// TestLoadOrDefault falls back only for a missing file.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultDBFilename, cfg.DBPath)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("gateway: [oops"), 0o600))

	_, err = LoadOrDefault(bad)
	require.Error(t, err)
}
