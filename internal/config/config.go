package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/gateway"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// Config holds the settings of the alarm controller.
type Config struct {
	// DBPath is the SQLite database file of the ledger.
	DBPath string `yaml:"db_path"`
	// LockFile marks the running controller process.
	LockFile string `yaml:"lock_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// AlarmDuration is how long the siren sounds for one alarm.
	AlarmDuration time.Duration `yaml:"alarm_duration"`
	// DeactivationCode authorises alarm deactivation. Empty disables it.
	DeactivationCode string `yaml:"deactivation_code"`
	// NightMode suppresses the siren while still recording alarms.
	NightMode bool `yaml:"night_mode"`
	// SilenceDuration is the default length of a temporary silence.
	SilenceDuration time.Duration `yaml:"silence_duration"`
	// Notifications holds delivery settings passed through untouched.
	Notifications map[string]any `yaml:"notifications,omitempty"`
	// BootstrapAdmin is created when the ledger has no users.
	BootstrapAdmin BootstrapAdmin `yaml:"bootstrap_admin"`
	// Gateway tunes the sensor I/O layer.
	Gateway Gateway `yaml:"gateway"`
	// Outputs maps logical output names to GPIO channels.
	Outputs map[string]int `yaml:"outputs"`
	// Sensors are bound to their modules at startup.
	Sensors []Sensor `yaml:"sensors,omitempty"`
}

// BootstrapAdmin is the first administrator account.
type BootstrapAdmin struct {
	Username   string `yaml:"username"`
	Credential string `yaml:"credential"`
}

// Gateway configures the sensor I/O layer.
type Gateway struct {
	// Backend is "simulated" or "periph".
	Backend      string        `yaml:"backend"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Debounce of zero means the default; a negative value disables it.
	Debounce     time.Duration `yaml:"debounce"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
}

// Sensor binds a module to an input channel.
type Sensor struct {
	ModuleID  int64           `yaml:"module_id"`
	Channel   int             `yaml:"channel"`
	Polarity  domain.Polarity `yaml:"polarity"`
	Pull      domain.PullBias `yaml:"pull"`
	AlarmType string          `yaml:"alarm_type,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for controller settings.
	DefaultConfigFilename = "alarm-controller.yaml"

	// DefaultDBFilename is the default ledger database file.
	DefaultDBFilename = "alarm-controller.db"

	// DefaultLockFilename is the default running-process marker.
	DefaultLockFilename = "alarm-controller.lock"

	// DefaultAlarmDuration is how long the siren sounds by default.
	DefaultAlarmDuration = 60 * time.Second

	// DefaultSilenceDuration is the default temporary silence.
	DefaultSilenceDuration = 30 * time.Minute

	// DefaultPollInterval is the default pause between sensor sweeps.
	DefaultPollInterval = gateway.DefaultPollInterval

	// DefaultDebounce is the default debounce window.
	DefaultDebounce = gateway.DefaultDebounce

	// DefaultStopTimeout bounds how long monitoring may take to stop.
	DefaultStopTimeout = gateway.DefaultStopTimeout

	// DefaultAdminUsername is the bootstrap administrator name.
	DefaultAdminUsername = "admin"

	// DefaultAdminCredential is the bootstrap administrator credential.
	// The account must change it at first login.
	DefaultAdminCredential = "admin"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Backends.
const (
	BackendSimulated = "simulated"
	BackendPeriph    = "periph"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// DefaultOutputs returns the logical output table used when none is configured.
func DefaultOutputs() map[string]int {
	return gateway.DefaultOutputs()
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Defaults alone always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds the deactivation code.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks enumerations, channels and sensors.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, cfg.LogLevel)
	}

	if cfg.AlarmDuration <= 0 {
		cfg.AlarmDuration = DefaultAlarmDuration
	}

	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = DefaultSilenceDuration
	}

	if cfg.BootstrapAdmin.Username == "" {
		cfg.BootstrapAdmin.Username = DefaultAdminUsername
	}

	if cfg.BootstrapAdmin.Credential == "" {
		cfg.BootstrapAdmin.Credential = DefaultAdminCredential
	}

	if err := validateGateway(&cfg.Gateway); err != nil {
		return err
	}

	if len(cfg.Outputs) == 0 {
		cfg.Outputs = DefaultOutputs()
	}

	for name, ch := range cfg.Outputs {
		if ch < 0 {
			return fmt.Errorf("%w: output %q has negative channel %d", ErrInvalid, name, ch)
		}
	}

	return validateSensors(cfg.Sensors)
}

func validateGateway(g *Gateway) error {
	g.Backend = strings.ToLower(strings.TrimSpace(g.Backend))

	switch g.Backend {
	case "":
		g.Backend = BackendSimulated
	case BackendSimulated, BackendPeriph:
	default:
		return fmt.Errorf("%w: unknown gateway backend %q", ErrInvalid, g.Backend)
	}

	if g.PollInterval <= 0 {
		g.PollInterval = DefaultPollInterval
	}

	// A negative debounce disables the window.
	if g.Debounce == 0 {
		g.Debounce = DefaultDebounce
	}

	if g.StopTimeout <= 0 {
		g.StopTimeout = DefaultStopTimeout
	}

	return nil
}

func validateSensors(sensors []Sensor) error {
	channels := make(map[int]int64, len(sensors))
	modules := make(map[int64]int, len(sensors))

	for i := range sensors {
		s := &sensors[i]

		s.Polarity = domain.Polarity(strings.ToUpper(string(s.Polarity)))
		s.Pull = domain.PullBias(strings.ToUpper(string(s.Pull)))

		switch {
		case s.ModuleID <= 0:
			return fmt.Errorf("%w: sensor %d has no module_id", ErrInvalid, i)
		case s.Channel < 0:
			return fmt.Errorf("%w: sensor %d has negative channel", ErrInvalid, i)
		case !s.Polarity.Valid():
			return fmt.Errorf("%w: sensor %d polarity %q is not NO or NC", ErrInvalid, i, s.Polarity)
		case !s.Pull.Valid():
			return fmt.Errorf("%w: sensor %d pull %q is not UP or DOWN", ErrInvalid, i, s.Pull)
		}

		if other, ok := channels[s.Channel]; ok {
			return fmt.Errorf("%w: channel %d bound to modules %d and %d", ErrInvalid, s.Channel, other, s.ModuleID)
		}

		if other, ok := modules[s.ModuleID]; ok {
			return fmt.Errorf("%w: module %d bound to channels %d and %d", ErrInvalid, s.ModuleID, other, s.Channel)
		}

		channels[s.Channel] = s.ModuleID
		modules[s.ModuleID] = s.Channel
	}

	return nil
}
