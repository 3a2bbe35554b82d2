package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

func newStreamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logger" {
			http.NotFound(w, r)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		for _, f := range frames {
			if err := c.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		c.Close(websocket.StatusNormalClosure, "done")
	}))
}

func TestWebSocketDialerReadsFrames(t *testing.T) {
	srv := newStreamServer(t, []string{requestA, resourceFrame})
	defer srv.Close()

	u, err := StreamURL(srv.URL, "/logger")
	if err != nil {
		t.Fatalf("stream url: %v", err)
	}
	if !strings.HasPrefix(u, "ws://") {
		t.Fatalf("expected ws scheme, got %s", u)
	}

	d := NewWebSocketDialer(u, nil, 1<<20, time.Second, 0, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close("test done")

	for _, want := range []string{requestA, resourceFrame} {
		got, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	_, err = conn.Read(ctx)
	if err == nil || !isCleanClose(err) {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	u, _ := StreamURL(srv.URL, "/logger")
	d := NewWebSocketDialer(u, nil, 0, time.Second, 0, zerolog.Nop())
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatalf("expected dial error for a non-websocket endpoint")
	}
}

func TestClientOverWebSocket(t *testing.T) {
	srv := newStreamServer(t, []string{requestA, errorA, resourceFrame})
	defer srv.Close()

	u, _ := StreamURL(srv.URL, "/logger")
	doc := view.New()
	c := newTestClient(NewWebSocketDialer(u, nil, 0, time.Second, 0, zerolog.Nop()), doc, DefaultBackoff())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var seen view.Snapshot
	c.wait = func(context.Context, time.Duration) error {
		seen = doc.Snapshot()
		cancel()
		return context.Canceled
	}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := len(seen.Tables[view.RequestLogBody].Rows); n != 1 {
		t.Fatalf("expected 1 request row, got %d", n)
	}
	if n := len(seen.Tables[view.ErrorLogBody].Rows); n != 1 {
		t.Fatalf("expected 1 error row, got %d", n)
	}
	// the close after the resource frame resets the readouts
	if seen.Text(view.CPUUsage) != view.Placeholder {
		t.Fatalf("expected cpu reset after close, got %q", seen.Text(view.CPUUsage))
	}
}
