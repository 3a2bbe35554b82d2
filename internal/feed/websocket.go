package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// WebSocketDialer dials the push stream over a websocket and reads text frames.
type WebSocketDialer struct {
	url          string
	tlsConfig    *tls.Config
	readLimit    int64
	dialTimeout  time.Duration
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewWebSocketDialer creates a dialer for url (ws:// or wss://).
func NewWebSocketDialer(url string, tlsCfg *tls.Config, readLimit int64, dialTimeout, pingInterval time.Duration, logger zerolog.Logger) *WebSocketDialer {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &WebSocketDialer{
		url:          url,
		tlsConfig:    tlsCfg,
		readLimit:    readLimit,
		dialTimeout:  dialTimeout,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Target returns the stream URL.
func (d *WebSocketDialer) Target() string {
	return d.url
}

// Dial opens a websocket connection and starts its keepalive loop.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()

	opt := &websocket.DialOptions{}
	if d.tlsConfig != nil {
		opt.HTTPClient = &http.Client{Transport: &http.Transport{TLSClientConfig: d.tlsConfig}}
	}
	conn, _, err := websocket.Dial(dialCtx, d.url, opt)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.url, err)
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}

	wc := &wsConn{conn: conn}
	if d.pingInterval > 0 {
		pingCtx, pingCancel := context.WithCancel(context.Background())
		wc.pingCancel = pingCancel
		go wc.pingLoop(pingCtx, d.pingInterval, d.logger)
	}
	return wc, nil
}

type wsConn struct {
	conn       *websocket.Conn
	pingCancel context.CancelFunc
	closeOnce  sync.Once
	closeErr   error
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Close(reason string) error {
	c.closeOnce.Do(func() {
		if c.pingCancel != nil {
			c.pingCancel()
		}
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, reason)
	})
	return c.closeErr
}

func (c *wsConn) pingLoop(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.conn.Ping(pingCtx); err != nil && ctx.Err() == nil {
				logger.Debug().Err(err).Msg("websocket ping failed")
			}
			cancel()
		}
	}
}
