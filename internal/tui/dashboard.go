// Package tui renders the dashboard document in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/view"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

const logMaxLines = 200

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorHotPink
)

// Dashboard mirrors the web page: status line, readouts, request and error
// tables, status panels and the application log.
type Dashboard struct {
	app       *tview.Application
	doc       *view.Document
	scheduler *frameScheduler

	status   *tview.TextView
	readouts *tview.TextView
	requests *tableView
	errors   *tableView
	devices  *tview.TextView
	cameras  *tview.TextView
	logs     *tview.TextView

	logMu    sync.Mutex
	logLines []string

	quitOnce sync.Once
	quit     chan struct{}
}

// New builds the terminal dashboard for doc.
func New(doc *view.Document) *Dashboard {
	d := newDashboard(doc, tview.NewApplication())
	d.app.SetRoot(d.layout(), true).EnableMouse(false)
	d.installKeybindings()
	return d
}

func newDashboard(doc *view.Document, app *tview.Application) *Dashboard {
	d := &Dashboard{
		app:       app,
		doc:       doc,
		scheduler: newFrameScheduler(app, 20, 0),
		status:    newPaneTextView(""),
		readouts:  newPaneTextView("Resources"),
		requests:  newTableView(view.RequestLogBody, "Requests"),
		errors:    newTableView(view.ErrorLogBody, "Errors"),
		devices:   newPaneTextView("Devices"),
		cameras:   newPaneTextView("Cameras"),
		logs:      newPaneTextView("Log"),
		quit:      make(chan struct{}),
	}
	d.logs.SetTextColor(tcell.ColorYellow)
	return d
}

func (d *Dashboard) layout() tview.Primitive {
	tables := tview.NewFlex().
		AddItem(d.requests.table, 0, 1, false).
		AddItem(d.errors.table, 0, 1, false)
	panels := tview.NewFlex().
		AddItem(d.devices, 0, 1, false).
		AddItem(d.cameras, 0, 1, false)
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.status, 1, 0, false).
		AddItem(d.readouts, 3, 0, false).
		AddItem(tables, 0, 3, false).
		AddItem(panels, 0, 1, false).
		AddItem(d.logs, 8, 0, false)
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			d.Stop()
			return nil
		}
		switch event.Rune() {
		case 'q', 'Q':
			d.Stop()
			return nil
		}
		return event
	})
}

// Stop ends Run. It is safe to call more than once.
func (d *Dashboard) Stop() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// Run draws the document until ctx is cancelled or the user quits.
func (d *Dashboard) Run(ctx context.Context) error {
	changes, unsubscribe := d.doc.Subscribe()
	defer unsubscribe()

	d.scheduler.Start()
	defer d.scheduler.Stop()

	appErr := make(chan error, 1)
	go func() { appErr <- d.app.Run() }()

	d.render(d.doc.Summary())
	for {
		select {
		case <-ctx.Done():
			return d.stopApp(appErr)
		case <-d.quit:
			return d.stopApp(appErr)
		case err := <-appErr:
			return err
		case <-changes:
			d.render(d.doc.Summary())
		}
	}
}

// stopApp repeats Stop until Run returns, covering a stop that lands before
// the application has a screen.
func (d *Dashboard) stopApp(appErr <-chan error) error {
	for {
		d.app.Stop()
		select {
		case err := <-appErr:
			return err
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// render schedules every pane from snap. Tables read their new rows from the
// document when the update runs, so snap may be a Summary.
func (d *Dashboard) render(snap view.Snapshot) {
	d.scheduler.Schedule("status", func() {
		d.status.SetText(statusLine(snap))
	})
	d.scheduler.Schedule("readouts", func() {
		d.readouts.SetText(formatReadouts(snap))
	})
	d.scheduler.Schedule("requests", func() {
		d.requests.sync(d.doc)
	})
	d.scheduler.Schedule("errors", func() {
		d.errors.sync(d.doc)
	})
	d.scheduler.Schedule("panels", func() {
		d.devices.SetText(formatPanel(snap.Panels[view.DevicesStatusContainer]))
		d.cameras.SetText(formatPanel(snap.Panels[view.CameraStatusContainer]))
	})
}

// AppendLog adds one line to the log pane, dropping the oldest past the cap.
func (d *Dashboard) AppendLog(line string) {
	d.logMu.Lock()
	d.logLines = append(d.logLines, tview.Escape(line))
	if excess := len(d.logLines) - logMaxLines; excess > 0 {
		d.logLines = d.logLines[excess:]
	}
	text := strings.Join(d.logLines, "\n")
	d.logMu.Unlock()

	d.scheduler.Schedule("log", func() {
		d.logs.SetText(text)
		d.logs.ScrollToEnd()
	})
}

// LogWriter returns a zerolog sink that renders human-readable lines into
// the log pane.
func (d *Dashboard) LogWriter() io.Writer {
	return zerolog.ConsoleWriter{
		Out:        &paneWriter{dash: d},
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}
}

func statusLine(snap view.Snapshot) string {
	color := "red"
	if snap.Connection == types.Connected {
		color = "green"
	}
	return fmt.Sprintf(" [%s]●[-] %s", color, tview.Escape(snap.Text(view.ServerStatusText)))
}

func formatReadouts(snap view.Snapshot) string {
	parts := make([]string, 0, len(view.Readouts))
	labels := map[view.ElementID]string{
		view.CPUUsage:    "CPU",
		view.MemoryUsage: "Memory",
		view.ServerLoad:  "Load",
		view.Uptime:      "Uptime",
	}
	for _, id := range view.Readouts {
		parts = append(parts, fmt.Sprintf("%s [::b]%s[::-]", labels[id], tview.Escape(snap.Text(id))))
	}
	return strings.Join(parts, "   ")
}

// tableView follows one document table. It is only touched from scheduled
// updates, which run one at a time.
type tableView struct {
	id    view.ElementID
	title string
	table *tview.Table
	epoch uint64
	count int
}

func newTableView(id view.ElementID, title string) *tableView {
	return &tableView{id: id, title: title, table: newPaneTable(title)}
}

// sync applies the rows added since the last sync, rebuilding the table only
// when the document cleared it.
func (v *tableView) sync(doc *view.Document) {
	delta, err := doc.RowsSince(v.id, v.epoch, v.count)
	if err != nil {
		return
	}
	if delta.Reset {
		v.reset(delta)
	} else {
		// Added is newest first; inserting from the oldest keeps the newest on top.
		for i := len(delta.Added) - 1; i >= 0; i-- {
			v.table.InsertRow(1)
			setRow(v.table, 1, delta.Added[i])
		}
	}
	v.epoch, v.count = delta.Epoch, delta.Count
	if delta.Placeholder != "" {
		v.table.SetTitle(" " + v.title + " ")
		return
	}
	v.table.SetTitle(fmt.Sprintf(" %s (%s) ", v.title, humanize.Comma(int64(delta.Count))))
}

func (v *tableView) reset(delta view.TableDelta) {
	t := v.table
	t.Clear()
	for col, name := range delta.Columns {
		t.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(uiTitleColor).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, row := range delta.Added {
		setRow(t, i+1, row)
	}
	// rows prepended before any clear sit above the placeholder
	if delta.Placeholder != "" {
		t.SetCell(len(delta.Added)+1, 0, tview.NewTableCell(delta.Placeholder).SetTextColor(tcell.ColorGray))
	}
}

func setRow(t *tview.Table, at int, row view.Row) {
	for col, cell := range row {
		t.SetCell(at, col, tview.NewTableCell(cell))
	}
}

func formatPanel(blocks []view.Block) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[::b]%s[::-]  %s", tview.Escape(blk.Title), tview.Escape(blk.Body))
	}
	return b.String()
}

func newPaneTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	if title != "" {
		tv.SetBorder(true).
			SetBorderColor(uiBorderColor).
			SetTitle(" " + title + " ").
			SetTitleColor(uiTitleColor).
			SetTitleAlign(tview.AlignLeft)
	}
	return tv
}

func newPaneTable(title string) *tview.Table {
	t := tview.NewTable().SetFixed(1, 0).SetSelectable(false, false)
	t.SetBorder(true).
		SetBorderColor(uiBorderColor).
		SetTitle(" " + title + " ").
		SetTitleColor(uiTitleColor).
		SetTitleAlign(tview.AlignLeft)
	return t
}
