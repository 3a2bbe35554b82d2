package webui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/version"
	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
)

func TestLogBufferParsesZerologLines(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := zerolog.New(lb).With().Str("component", "feed").Logger()
	logger.Warn().Str("retry_in", "1s").Msg(`Connection is "closed"`)

	entries := lb.GetEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != "warn" || e.Message != `Connection is "closed"` || e.Component != "feed" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLogBufferKeepsPlainLines(t *testing.T) {
	lb := NewLogBuffer(10)
	lb.Write([]byte("not json\n"))
	e := lb.GetEntries()[0]
	if e.Level != "info" || e.Message != "not json" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLogBufferWrapsAround(t *testing.T) {
	lb := NewLogBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		lb.Write([]byte(`{"level":"info","message":"` + msg + `"}`))
	}
	entries := lb.GetEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"c", "d", "e"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, entries[i].Message)
		}
	}
	recent := lb.GetRecentEntries(2)
	if len(recent) != 2 || recent[0].Message != "d" {
		t.Fatalf("expected last two entries, got %+v", recent)
	}
	lb.Clear()
	if n := len(lb.GetEntries()); n != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", n)
	}
}

func TestDashboardTemplateRendersElementIDs(t *testing.T) {
	doc := view.New()
	doc.SetIndicator(types.Connected)
	doc.SetText(view.CPUUsage, "12%")
	doc.ClearTable(view.RequestLogBody)
	doc.PrependRow(view.RequestLogBody, view.Row{"t1", "GET", "200", "/<script>", "3"})
	doc.ReplacePanel(view.DevicesStatusContainer, []view.Block{{Title: "door", Body: "online"}})

	logs := []LogEntry{{Timestamp: time.Now(), Level: "error", Message: "boom"}}
	data := NewPageData(doc.Snapshot(), logs, version.Info())

	var buf bytes.Buffer
	if err := Templates.ExecuteTemplate(&buf, "base", data); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()

	for _, id := range []view.ElementID{
		view.RequestLogBody, view.ErrorLogBody, view.ServerStatusDot, view.ServerStatusText,
		view.CPUUsage, view.MemoryUsage, view.ServerLoad, view.Uptime,
		view.DevicesStatusContainer, view.CameraStatusContainer,
	} {
		if !strings.Contains(html, `id="`+string(id)+`"`) {
			t.Fatalf("expected element %s in page", id)
		}
	}
	if !strings.Contains(html, "status-dot connected") {
		t.Fatalf("expected connected status dot")
	}
	if strings.Contains(html, "/<script>") {
		t.Fatalf("expected cell text to be escaped")
	}
	if !strings.Contains(html, view.EmptyTableText) {
		t.Fatalf("expected error table placeholder")
	}
	if !strings.Contains(html, "<h4>door</h4><p>online</p>") {
		t.Fatalf("expected status block for door")
	}
	if !strings.Contains(html, "log-error") {
		t.Fatalf("expected error log class")
	}
}
