package feed

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"github.com/netspec/livedash/internal/config"
	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
)

// NewClientFromConfig builds the feed client and its transport from cfg.
func NewClientFromConfig(cfg *config.Config, doc *view.Document, logger zerolog.Logger) (*Client, error) {
	dialer, err := NewDialerFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	r := cfg.Stream.Reconnect
	backoff := Backoff{
		Initial:     r.Initial,
		Max:         r.Max,
		Multiplier:  r.Multiplier,
		Jitter:      r.Jitter,
		MaxAttempts: r.MaxAttempts,
	}
	flap := NewFlapDetector(logger, cfg.Stream.Flap.Threshold, cfg.Stream.Flap.Window)
	return NewClient(dialer, doc, backoff, flap, logger), nil
}

// NewDialerFromConfig selects the stream transport.
func NewDialerFromConfig(cfg *config.Config, logger zerolog.Logger) (Dialer, error) {
	s := cfg.Stream
	switch s.Transport {
	case config.TransportWebSocket:
		u, err := StreamURL(cfg.Origin, s.Path)
		if err != nil {
			return nil, err
		}
		return NewWebSocketDialer(u, nil, s.ReadLimit, s.DialTimeout, s.PingInterval, logger), nil
	case config.TransportGRPC:
		addr, secure, err := grpcAddr(cfg.Origin)
		if err != nil {
			return nil, err
		}
		var tlsCfg *tls.Config
		if secure {
			tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return NewGRPCDialer(addr, s.GRPCMethod, tlsCfg, s.DialTimeout), nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q", s.Transport)
	}
}

// grpcAddr derives host:port from the origin, defaulting the port from the scheme.
func grpcAddr(origin string) (addr string, secure bool, err error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", false, fmt.Errorf("parse origin: %w", err)
	}
	secure = u.Scheme == "https"
	port := u.Port()
	if port == "" {
		port = "80"
		if secure {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), secure, nil
}
