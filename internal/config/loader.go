package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	TransportWebSocket = "websocket"
	TransportGRPC      = "grpc"

	ModeAuto     = "auto"
	ModeTUI      = "tui"
	ModeWeb      = "web"
	ModeHeadless = "headless"

	DefaultOrigin     = "http://localhost:8090"
	DefaultWebListen  = "127.0.0.1:8088"
	defaultGRPCMethod = "/middleware.stream.v1.Logger/Subscribe"
)

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{Origin: DefaultOrigin}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file. An empty path yields Default().
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	cfg := &Config{}
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func applyDefaults(cfg *Config) {
	s := &cfg.Stream
	if s.Path == "" {
		s.Path = "/logger"
	}
	if s.Transport == "" {
		s.Transport = TransportWebSocket
	}
	if s.GRPCMethod == "" {
		s.GRPCMethod = defaultGRPCMethod
	}
	if s.ReadLimit == 0 {
		s.ReadLimit = 1 << 20
	}
	if s.DialTimeout == 0 {
		s.DialTimeout = 10 * time.Second
	}
	if s.PingInterval == 0 {
		s.PingInterval = 30 * time.Second
	}
	if s.Reconnect.Initial == 0 {
		s.Reconnect.Initial = time.Second
	}
	if s.Reconnect.Max == 0 {
		s.Reconnect.Max = s.Reconnect.Initial
	}
	if s.Reconnect.Multiplier == 0 {
		s.Reconnect.Multiplier = 1
	}
	if s.Flap.Threshold == 0 {
		s.Flap.Threshold = 5
	}
	if s.Flap.Window == 0 {
		s.Flap.Window = time.Minute
	}

	p := &cfg.Poller
	if p.Interval == 0 {
		p.Interval = 60 * time.Second
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if len(p.Targets) == 0 {
		p.Targets = []TargetConfig{
			{Name: "devices", Path: "/devices/status", Panel: string(view.DevicesStatusContainer)},
			{Name: "cameras", Path: "/cameras/status", Panel: string(view.CameraStatusContainer)},
		}
	}

	if cfg.UI.Mode == "" {
		cfg.UI.Mode = ModeAuto
	}
	if cfg.UI.Mode == ModeWeb && cfg.UI.Listen == "" {
		cfg.UI.Listen = DefaultWebListen
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	if err := validateOrigin(cfg.Origin); err != nil {
		return err
	}

	s := cfg.Stream
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("stream.path %q must start with /", s.Path)
	}
	if s.Transport != TransportWebSocket && s.Transport != TransportGRPC {
		return fmt.Errorf("stream.transport must be '%s' or '%s', got %q", TransportWebSocket, TransportGRPC, s.Transport)
	}
	if s.Transport == TransportGRPC && !strings.HasPrefix(s.GRPCMethod, "/") {
		return fmt.Errorf("stream.grpc_method %q must be a full method name", s.GRPCMethod)
	}
	if s.ReadLimit < 0 {
		return fmt.Errorf("stream.read_limit must be >= 0")
	}
	if s.DialTimeout < 0 || s.PingInterval < 0 {
		return fmt.Errorf("stream.dial_timeout and stream.ping_interval must be >= 0")
	}
	r := s.Reconnect
	if r.Initial <= 0 {
		return fmt.Errorf("stream.reconnect.initial must be > 0")
	}
	if r.Max < r.Initial {
		return fmt.Errorf("stream.reconnect.max (%s) must be >= initial (%s)", r.Max, r.Initial)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("stream.reconnect.multiplier must be >= 1")
	}
	if r.Jitter < 0 || r.MaxAttempts < 0 {
		return fmt.Errorf("stream.reconnect.jitter and max_attempts must be >= 0")
	}
	if s.Flap.Threshold < 2 || s.Flap.Window <= 0 {
		return fmt.Errorf("stream.flap.threshold must be >= 2 and window > 0")
	}

	p := cfg.Poller
	if p.Interval <= 0 {
		return fmt.Errorf("poller.interval must be > 0")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("poller.timeout must be > 0")
	}
	names := make(map[string]struct{}, len(p.Targets))
	for i, t := range p.Targets {
		if t.Name == "" {
			return fmt.Errorf("poller.targets[%d]: name is required", i)
		}
		if _, dup := names[t.Name]; dup {
			return fmt.Errorf("poller target %s: duplicate name", t.Name)
		}
		names[t.Name] = struct{}{}
		if !strings.HasPrefix(t.Path, "/") {
			return fmt.Errorf("poller target %s: path %q must start with /", t.Name, t.Path)
		}
		if !view.IsPanel(view.ElementID(t.Panel)) {
			return fmt.Errorf("poller target %s: unknown panel %q", t.Name, t.Panel)
		}
	}

	switch cfg.UI.Mode {
	case ModeAuto, ModeTUI, ModeWeb, ModeHeadless:
	default:
		return fmt.Errorf("ui.mode must be one of auto, tui, web, headless, got %q", cfg.UI.Mode)
	}
	if cfg.UI.Mode == ModeWeb && cfg.UI.Listen == "" {
		return fmt.Errorf("ui.listen is required for web mode")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin %q: scheme must be http or https", origin)
	}
	if u.Host == "" {
		return fmt.Errorf("origin %q: host is required", origin)
	}
	return nil
}

// Finalize re-applies defaults and validates after flag overrides were applied.
func (c *Config) Finalize() error {
	applyDefaults(c)
	return ValidateConfig(c)
}
