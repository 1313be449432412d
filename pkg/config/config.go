// Package config provides YAML-based configuration loading for camlink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"camlink/pkg/command"
)

// Config is the root application configuration.
type Config struct {
	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Remote describes the camera the controller talks to
	Remote RemoteConfig `mapstructure:"remote"`

	// Simulator configures `camlink sim`
	Simulator SimulatorConfig `mapstructure:"simulator"`

	// Commands is the command table; empty means the built-in defaults
	Commands []CommandConfig `mapstructure:"commands"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// RemoteConfig holds the controller side settings.
type RemoteConfig struct {
	// Transport: udp (default) or mem
	Transport string `mapstructure:"transport"`
	Address   string `mapstructure:"address"`
	// SocketBuffer is the requested SO_RCVBUF in bytes
	SocketBuffer      int    `mapstructure:"socket_buffer"`
	QueueCapacity     int    `mapstructure:"queue_capacity"`
	OverflowPolicy    string `mapstructure:"overflow_policy"`
	DefaultTimeoutMS  int    `mapstructure:"default_timeout_ms"`
	MaxStaleDatagrams int    `mapstructure:"max_stale_datagrams"`
}

func (r RemoteConfig) DefaultTimeout() time.Duration {
	return time.Duration(r.DefaultTimeoutMS) * time.Millisecond
}

// SimulatorConfig holds the device simulator settings.
type SimulatorConfig struct {
	Listen          string  `mapstructure:"listen"`
	DropRate        float64 `mapstructure:"drop_rate"`
	ReplyDelayMS    int     `mapstructure:"reply_delay_ms"`
	RateBytesPerSec int64   `mapstructure:"rate_bytes_per_sec"`
	Burst           int64   `mapstructure:"burst"`
	// Seed fixes the drop sequence; 0 seeds from the clock
	Seed int64 `mapstructure:"seed"`
}

func (s SimulatorConfig) ReplyDelay() time.Duration {
	return time.Duration(s.ReplyDelayMS) * time.Millisecond
}

// CommandConfig is one command table row.
// Example YAML:
// commands:
//   - name: IMAGE
//     count: 480
//     size: 640
//     timeout_ms: 3000
type CommandConfig struct {
	Name      string `mapstructure:"name"`
	Count     int    `mapstructure:"count"`
	Size      int    `mapstructure:"size"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	cfg := &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/camlink.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Remote: RemoteConfig{
			Transport:         "udp",
			Address:           "localhost:12345",
			SocketBuffer:      512 * 1024,
			QueueCapacity:     32,
			OverflowPolicy:    "block",
			DefaultTimeoutMS:  int(command.DefaultTimeout / time.Millisecond),
			MaxStaleDatagrams: 4096,
		},
		Simulator: SimulatorConfig{
			Listen:          "127.0.0.1:12345",
			DropRate:        0.1,
			RateBytesPerSec: 32 << 20,
			Burst:           64 << 10,
		},
	}
	for _, e := range command.Defaults().Entries() {
		cfg.Commands = append(cfg.Commands, CommandConfig{
			Name:      e.Command.Name(),
			Count:     e.Command.DatagramCount(),
			Size:      e.Command.DatagramSize(),
			TimeoutMS: int(e.Timeout / time.Millisecond),
		})
	}
	return cfg
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix CAMLINK and `.`/`-` are replaced with `_`.
// Example: CAMLINK_REMOTE_ADDRESS=10.0.0.7:12345
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CAMLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("remote.transport", cfg.Remote.Transport)
	v.SetDefault("remote.address", cfg.Remote.Address)
	v.SetDefault("remote.socket_buffer", cfg.Remote.SocketBuffer)
	v.SetDefault("remote.queue_capacity", cfg.Remote.QueueCapacity)
	v.SetDefault("remote.overflow_policy", cfg.Remote.OverflowPolicy)
	v.SetDefault("remote.default_timeout_ms", cfg.Remote.DefaultTimeoutMS)
	v.SetDefault("remote.max_stale_datagrams", cfg.Remote.MaxStaleDatagrams)
	v.SetDefault("simulator.listen", cfg.Simulator.Listen)
	v.SetDefault("simulator.drop_rate", cfg.Simulator.DropRate)
	v.SetDefault("simulator.reply_delay_ms", cfg.Simulator.ReplyDelayMS)
	v.SetDefault("simulator.rate_bytes_per_sec", cfg.Simulator.RateBytesPerSec)
	v.SetDefault("simulator.burst", cfg.Simulator.Burst)
	v.SetDefault("simulator.seed", cfg.Simulator.Seed)
	v.SetDefault("commands", cfg.Commands)

	// Choose config file
	if path == "" {
		if envPath := os.Getenv("CAMLINK_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `camlink`
		v.SetConfigName("camlink")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".camlink"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// a non-nil slice would be merged element-wise with the file's list
	cfg.Commands = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	r := &c.Remote
	r.Transport = strings.ToLower(strings.TrimSpace(r.Transport))
	r.OverflowPolicy = strings.ToLower(strings.TrimSpace(r.OverflowPolicy))
	if strings.TrimSpace(r.Address) == "" {
		return errors.New("remote.address is required")
	}
	if r.SocketBuffer <= 0 {
		return fmt.Errorf("invalid remote.socket_buffer: %d", r.SocketBuffer)
	}
	if r.QueueCapacity <= 0 {
		return fmt.Errorf("invalid remote.queue_capacity: %d", r.QueueCapacity)
	}
	switch r.OverflowPolicy {
	case "", "block", "reject", "fail":
	default:
		return fmt.Errorf("invalid remote.overflow_policy: %q", r.OverflowPolicy)
	}
	if r.DefaultTimeoutMS <= 0 {
		return fmt.Errorf("invalid remote.default_timeout_ms: %d", r.DefaultTimeoutMS)
	}
	if r.MaxStaleDatagrams <= 0 {
		return fmt.Errorf("invalid remote.max_stale_datagrams: %d", r.MaxStaleDatagrams)
	}

	s := c.Simulator
	if s.DropRate < 0 || s.DropRate > 1 {
		return fmt.Errorf("invalid simulator.drop_rate: %v", s.DropRate)
	}
	if s.ReplyDelayMS < 0 {
		return fmt.Errorf("invalid simulator.reply_delay_ms: %d", s.ReplyDelayMS)
	}

	if _, err := c.CommandTable(); err != nil {
		return err
	}
	return nil
}

// CommandTable builds the command table. Rows without a timeout use
// remote.default_timeout_ms.
func (c *Config) CommandTable() (*command.Table, error) {
	if len(c.Commands) == 0 {
		return command.Defaults(), nil
	}
	t := command.NewTable()
	for i, cc := range c.Commands {
		cmd, err := command.New(cc.Name, cc.Count, cc.Size)
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		if _, dup := t.Lookup(cmd.Name()); dup {
			return nil, fmt.Errorf("commands[%d]: duplicate command %q", i, cmd.Name())
		}
		timeout := time.Duration(cc.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = c.Remote.DefaultTimeout()
		}
		t.Register(cmd, timeout)
	}
	return t, nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
