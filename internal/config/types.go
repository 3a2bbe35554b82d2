package config

import "time"

// Config represents the complete livedash configuration
type Config struct {
	Origin string       `yaml:"origin"`
	Stream StreamConfig `yaml:"stream"`
	Poller PollerConfig `yaml:"poller"`
	UI     UIConfig     `yaml:"ui"`
	Log    LogConfig    `yaml:"log"`
}

// StreamConfig describes the push-stream connection
type StreamConfig struct {
	Path         string          `yaml:"path"`
	Transport    string          `yaml:"transport"` // "websocket" or "grpc"
	GRPCMethod   string          `yaml:"grpc_method,omitempty"`
	ReadLimit    int64           `yaml:"read_limit"`
	DialTimeout  time.Duration   `yaml:"dial_timeout"`
	PingInterval time.Duration   `yaml:"ping_interval"`
	Reconnect    ReconnectConfig `yaml:"reconnect"`
	Flap         FlapConfig      `yaml:"flap"`
}

// ReconnectConfig is the delay policy between connection attempts.
// MaxAttempts of 0 retries forever.
type ReconnectConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      time.Duration `yaml:"jitter,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
}

// FlapConfig controls reconnect flap detection
type FlapConfig struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
}

// PollerConfig describes the status poller
type PollerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timeout  time.Duration  `yaml:"timeout"`
	Targets  []TargetConfig `yaml:"targets"`
}

// TargetConfig binds a status endpoint to the panel it renders into
type TargetConfig struct {
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	Panel string `yaml:"panel"`
}

// UIConfig selects the renderer
type UIConfig struct {
	Mode   string `yaml:"mode"`             // "auto", "tui", "web" or "headless"
	Listen string `yaml:"listen,omitempty"` // web UI address, empty disables it
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}
