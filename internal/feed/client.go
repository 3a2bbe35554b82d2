package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ErrRetriesExhausted is returned by Run when Backoff.MaxAttempts is reached.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// Health tracks the push-stream connection
type Health struct {
	Target         string    `json:"target"`
	Connected      bool      `json:"connected"`
	ConnectedSince time.Time `json:"connected_since"`
	LastMessage    time.Time `json:"last_message"`
	LastError      string    `json:"last_error,omitempty"`
	ReconnectCount int       `json:"reconnect_count"`
	MessageCount   int64     `json:"message_count"`
	DroppedCount   int64     `json:"dropped_count"`
	Flapping       bool      `json:"flapping"`
}

// Client keeps one push-stream connection open at a time and renders every
// frame into the document. A closed connection is always followed by exactly
// one reconnect after the backoff delay.
type Client struct {
	dialer  Dialer
	doc     *view.Document
	backoff Backoff
	flap    *FlapDetector
	logger  zerolog.Logger
	now     func() time.Time
	wait    func(ctx context.Context, d time.Duration) error
	mu      sync.RWMutex
	health  Health
}

// NewClient creates a feed client. A nil flap detector disables flap tracking.
func NewClient(dialer Dialer, doc *view.Document, backoff Backoff, flap *FlapDetector, logger zerolog.Logger) *Client {
	return &Client{
		dialer:  dialer,
		doc:     doc,
		backoff: backoff,
		flap:    flap,
		logger:  logger,
		now:     time.Now,
		wait:    sleepContext,
		health:  Health{Target: dialer.Target()},
	}
}

// Health returns the current connection health
func (c *Client) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health
}

// Run connects and reconnects until ctx is cancelled. It returns nil on
// cancellation and ErrRetriesExhausted when a bounded backoff gives up.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info().Str("target", c.dialer.Target()).Msg("Starting push-stream client")

	attempt := 0
	for {
		opened, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			c.markShutdown()
			return nil
		}
		if opened {
			attempt = 0
		}
		attempt++

		if c.backoff.Exhausted(attempt) {
			c.handleClose(err, 0)
			return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt-1, err)
		}
		delay := c.backoff.Delay(attempt)
		c.handleClose(err, delay)

		if err := c.wait(ctx, delay); err != nil {
			c.markShutdown()
			return nil
		}
	}
}

// connectOnce dials and reads until the connection fails. opened reports
// whether the dial succeeded.
func (c *Client) connectOnce(ctx context.Context) (opened bool, err error) {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return false, err
	}
	c.handleOpen()

	sess := newSession()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !isCleanClose(err) {
				c.logger.Error().Err(err).Msg("Socket encountered error, closing socket")
			}
			if cerr := conn.Close("closing"); cerr != nil {
				c.logger.Debug().Err(cerr).Msg("Close after read failure")
			}
			return true, err
		}
		c.handleFrame(sess, data)
	}
}

func (c *Client) handleOpen() {
	now := c.now()
	c.doc.SetIndicator(types.Connected)

	flapping := false
	if c.flap != nil {
		c.flap.CheckStable(now)
		flapping = c.flap.IsFlapping()
	}

	c.mu.Lock()
	c.health.Connected = true
	c.health.ConnectedSince = now
	c.health.LastError = ""
	c.health.Flapping = flapping
	c.mu.Unlock()

	c.logger.Info().Str("target", c.dialer.Target()).Msg("Connected to server")
}

func (c *Client) handleClose(cause error, delay time.Duration) {
	c.doc.SetIndicator(types.Disconnected)
	for _, id := range view.Readouts {
		c.setText(id, view.Placeholder)
	}

	now := c.now()
	flapping := false
	if c.flap != nil {
		flapping, _ = c.flap.RecordReconnect(now)
	}

	c.mu.Lock()
	c.health.Connected = false
	if cause != nil {
		c.health.LastError = cause.Error()
	}
	c.health.ReconnectCount++
	c.health.Flapping = flapping
	c.mu.Unlock()

	c.logger.Warn().
		Err(cause).
		Dur("retry_in", delay).
		Msg("Connection is closed. Reconnect will be attempted")
}

func (c *Client) markShutdown() {
	c.doc.SetIndicator(types.Disconnected)
	c.mu.Lock()
	c.health.Connected = false
	c.mu.Unlock()
	c.logger.Info().Msg("Push-stream client stopped")
}

// handleFrame decodes and renders one frame. Bad frames never end the
// connection.
func (c *Client) handleFrame(sess *session, data []byte) {
	ev, err := types.DecodeEvent(data)

	c.mu.Lock()
	c.health.LastMessage = c.now()
	c.health.MessageCount++
	if err != nil {
		c.health.DroppedCount++
	}
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, types.ErrUnknownEventType) {
			c.logger.Debug().Err(err).Msg("Ignoring stream frame")
		} else {
			c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping malformed stream frame")
		}
		return
	}
	c.render(sess, ev)
}

func (c *Client) render(sess *session, ev types.Event) {
	switch e := ev.(type) {
	case types.RequestEvent:
		c.logger.Debug().
			Str("method", e.Method.String()).
			Str("url", e.URL.String()).
			Str("status", e.Status.String()).
			Msg("Request event")
		c.prepend(sess, types.EventRequest, view.RequestLogBody, RequestRow(e))
	case types.ErrorEvent:
		c.logger.Debug().
			Str("method", e.Method.String()).
			Str("url", e.URL.String()).
			Str("message", e.Message.String()).
			Msg("Error event")
		c.prepend(sess, types.EventError, view.ErrorLogBody, ErrorRow(e))
	case types.ResourceEvent:
		uptime, _ := e.Uptime.Float()
		c.setText(view.CPUUsage, e.CPU.String()+"%")
		c.setText(view.MemoryUsage, e.Memory.String()+"MB")
		c.setText(view.ServerLoad, e.Load.String()+"%")
		c.setText(view.Uptime, FormatUptime(uptime))
	}
}

func (c *Client) prepend(sess *session, kind types.EventType, id view.ElementID, row view.Row) {
	if sess.firstRender(kind) {
		if err := c.doc.ClearTable(id); err != nil {
			c.logger.Error().Err(err).Msg("Failed to clear table")
		}
	}
	if err := c.doc.PrependRow(id, row); err != nil {
		c.logger.Error().Err(err).Msg("Failed to insert row")
	}
}

func (c *Client) setText(id view.ElementID, text string) {
	if err := c.doc.SetText(id, text); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set readout")
	}
}

// RequestRow lays out a request event in table column order.
func RequestRow(e types.RequestEvent) view.Row {
	return view.Row{e.Time.String(), e.Method.String(), e.Status.String(), e.URL.String(), e.ResponseTime.String()}
}

// ErrorRow lays out an error event in table column order.
func ErrorRow(e types.ErrorEvent) view.Row {
	return view.Row{e.Time.String(), e.Method.String(), e.Status.String(), e.URL.String(), e.Message.String()}
}

// session is the render state of one connection. Its first-render gates
// start closed on every new connection.
type session struct {
	rendered map[types.EventType]bool
}

func newSession() *session {
	return &session{rendered: make(map[types.EventType]bool, 2)}
}

// firstRender returns true exactly once per event type.
func (s *session) firstRender(kind types.EventType) bool {
	if s.rendered[kind] {
		return false
	}
	s.rendered[kind] = true
	return true
}

func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF) || websocket.CloseStatus(err) != -1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
