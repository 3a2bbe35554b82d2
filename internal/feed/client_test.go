package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []string
	err    error
	closed int
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return []byte(f), nil
}

func (c *fakeConn) Close(string) error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

type fakeDialer struct {
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	i := d.dials
	d.dials++
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("connection refused")
}

func (d *fakeDialer) Target() string {
	return "ws://test/logger"
}

func newTestClient(dialer Dialer, doc *view.Document, backoff Backoff) *Client {
	c := NewClient(dialer, doc, backoff, NewFlapDetector(zerolog.Nop(), 3, time.Minute), zerolog.Nop())
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	return c
}

const (
	resourceFrame = `{"type":"RESOURCE","cpu":12.5,"memory":256,"load":40,"uptime":90000}`
	requestA      = `{"type":"REQUEST","time":"t1","method":"GET","url":"/a","status":200,"responseTime":3}`
	requestB      = `{"type":"REQUEST","time":"t2","method":"POST","url":"/b","status":201,"responseTime":5}`
	requestC      = `{"type":"REQUEST","time":"t3","method":"GET","url":"/c","status":404,"responseTime":1}`
	errorA        = `{"type":"ERROR","time":"t4","status":500,"method":"GET","message":"boom","url":"/e"}`
)

func TestCloseResetsReadoutsAndSchedulesOneReconnect(t *testing.T) {
	doc := view.New()
	conn := &fakeConn{frames: []string{resourceFrame}}
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	c := newTestClient(dialer, doc, DefaultBackoff())

	cpu, _ := doc.Text(view.CPUUsage)
	if cpu != view.Placeholder {
		t.Fatalf("expected initial placeholder, got %q", cpu)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	var seen view.Snapshot
	c.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		seen = doc.Snapshot()
		cancel()
		return ctx.Err()
	}

	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(delays) != 1 || delays[0] != time.Second {
		t.Fatalf("expected exactly one reconnect after 1s, got %v", delays)
	}
	for _, id := range view.Readouts {
		if seen.Text(id) != view.Placeholder {
			t.Fatalf("expected %s reset to %q on close, got %q", id, view.Placeholder, seen.Text(id))
		}
	}
	if seen.Connection != types.Disconnected || seen.Text(view.ServerStatusText) != "Disconnected" {
		t.Fatalf("expected disconnected indicator, got %v %q", seen.Connection, seen.Text(view.ServerStatusText))
	}
	if conn.closed != 1 {
		t.Fatalf("expected connection to be closed once, got %d", conn.closed)
	}
	if dialer.dials != 1 {
		t.Fatalf("expected one dial, got %d", dialer.dials)
	}
}

func TestResourceEventSetsReadouts(t *testing.T) {
	doc := view.New()
	c := newTestClient(&fakeDialer{}, doc, DefaultBackoff())
	c.handleOpen()
	c.handleFrame(newSession(), []byte(resourceFrame))

	want := map[view.ElementID]string{
		view.CPUUsage:    "12.5%",
		view.MemoryUsage: "256MB",
		view.ServerLoad:  "40%",
		view.Uptime:      "1.5 Min",
	}
	for id, w := range want {
		if got, _ := doc.Text(id); got != w {
			t.Fatalf("%s: expected %q, got %q", id, w, got)
		}
	}
	if doc.Indicator() != types.Connected {
		t.Fatalf("expected connected indicator after open")
	}
}

func TestFirstRenderGatePerConnection(t *testing.T) {
	doc := view.New()
	dialer := &fakeDialer{conns: []*fakeConn{
		{frames: []string{requestA, requestB}},
		{frames: []string{requestC}},
	}}
	c := newTestClient(dialer, doc, DefaultBackoff())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var afterFirst, afterSecond []view.Row
	c.wait = func(ctx context.Context, d time.Duration) error {
		rows, _ := doc.Rows(view.RequestLogBody)
		if afterFirst == nil {
			afterFirst = rows
			return nil
		}
		afterSecond = rows
		cancel()
		return ctx.Err()
	}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(afterFirst) != 2 || afterFirst[0][3] != "/b" || afterFirst[1][3] != "/a" {
		t.Fatalf("expected newest-first rows [/b /a], got %v", afterFirst)
	}
	if len(afterSecond) != 1 || afterSecond[0][3] != "/c" {
		t.Fatalf("expected table cleared on first frame of new connection, got %v", afterSecond)
	}
	if doc.Snapshot().Tables[view.RequestLogBody].Placeholder != "" {
		t.Fatalf("expected placeholder removed")
	}
	if doc.Snapshot().Tables[view.ErrorLogBody].Placeholder == "" {
		t.Fatalf("expected error table placeholder to survive request events")
	}
}

func TestFirstRequestClearsTableOnce(t *testing.T) {
	doc := view.New()
	c := newTestClient(&fakeDialer{}, doc, DefaultBackoff())
	sess := newSession()

	c.handleFrame(sess, []byte(requestA))
	rows, _ := doc.Rows(view.RequestLogBody)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after first request, got %d", len(rows))
	}
	// a row added between frames must survive: only the first frame clears
	_ = doc.PrependRow(view.RequestLogBody, view.Row{"manual"})
	c.handleFrame(sess, []byte(requestB))
	rows, _ = doc.Rows(view.RequestLogBody)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d (%v)", len(rows), rows)
	}
}

func TestErrorRowLayout(t *testing.T) {
	doc := view.New()
	c := newTestClient(&fakeDialer{}, doc, DefaultBackoff())
	c.handleFrame(newSession(), []byte(errorA))

	rows, _ := doc.Rows(view.ErrorLogBody)
	want := view.Row{"t4", "GET", "500", "/e", "boom"}
	if len(rows) != 1 {
		t.Fatalf("expected 1 error row, got %d", len(rows))
	}
	for i := range want {
		if rows[0][i] != want[i] {
			t.Fatalf("expected row %v, got %v", want, rows[0])
		}
	}
}

func TestUnknownAndMalformedFramesChangeNothing(t *testing.T) {
	doc := view.New()
	c := newTestClient(&fakeDialer{}, doc, DefaultBackoff())
	sess := newSession()

	before := doc.Snapshot().Version
	for _, f := range []string{`{"type":"DEPLOY"}`, `{"cpu":1}`, `[]`, `{"type":`, `garbage`} {
		c.handleFrame(sess, []byte(f))
	}
	if after := doc.Snapshot().Version; after != before {
		t.Fatalf("expected no document change, version %d -> %d", before, after)
	}
	h := c.Health()
	if h.MessageCount != 5 || h.DroppedCount != 5 {
		t.Fatalf("expected 5 messages all dropped, got %+v", h)
	}
	// the gate must still be closed for the first real request
	c.handleFrame(sess, []byte(requestA))
	if doc.Snapshot().Tables[view.RequestLogBody].Placeholder != "" {
		t.Fatalf("expected first real request to clear the placeholder")
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	doc := view.New()
	dialer := &fakeDialer{conns: []*fakeConn{{frames: []string{`{not json`, requestA}}}}
	c := newTestClient(dialer, doc, DefaultBackoff())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	rows, _ := doc.Rows(view.RequestLogBody)
	if len(rows) != 1 {
		t.Fatalf("expected request after malformed frame to render, got %v", rows)
	}
	if dialer.dials != 1 {
		t.Fatalf("expected malformed frame not to force a reconnect, got %d dials", dialer.dials)
	}
}

func TestDialFailuresRetryForever(t *testing.T) {
	doc := view.New()
	dialer := &fakeDialer{}
	c := newTestClient(dialer, doc, DefaultBackoff())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	c.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, d := range delays {
		if d != time.Second {
			t.Fatalf("delay %d: expected 1s, got %s", i, d)
		}
	}
	h := c.Health()
	if h.ReconnectCount != 4 || h.Connected {
		t.Fatalf("unexpected health %+v", h)
	}
	if !h.Flapping {
		t.Fatalf("expected repeated failures inside the window to mark flapping")
	}
	if h.LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}
}

func TestBoundedBackoffGivesUp(t *testing.T) {
	doc := view.New()
	c := newTestClient(&fakeDialer{}, doc, Backoff{Initial: time.Second, Max: time.Second, Multiplier: 1, MaxAttempts: 2})

	waits := 0
	c.wait = func(ctx context.Context, d time.Duration) error {
		waits++
		return nil
	}
	err := c.Run(context.Background())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if waits != 2 {
		t.Fatalf("expected 2 waits before giving up, got %d", waits)
	}
}

func TestRunStopsOnCancelWhileConnected(t *testing.T) {
	doc := view.New()
	block := &blockingConn{}
	c := newTestClient(&singleDialer{conn: block}, doc, DefaultBackoff())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !c.Health().Connected {
		select {
		case <-deadline:
			t.Fatalf("client never connected")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
	if doc.Indicator() != types.Disconnected {
		t.Fatalf("expected disconnected indicator after shutdown")
	}
}

type blockingConn struct{}

func (blockingConn) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingConn) Close(string) error { return nil }

type singleDialer struct{ conn Conn }

func (d *singleDialer) Dial(context.Context) (Conn, error) { return d.conn, nil }
func (d *singleDialer) Target() string                     { return "test" }
