// Package view holds the dashboard document: the fixed set of tables, text
// readouts, the connection indicator and the status panels that the feed client
// and the status poller render into. Renderers (web page, terminal UI) only
// read it through Snapshot.
package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/netspec/livedash/internal/types"
)

// ElementID names one element of the document.
type ElementID string

const (
	RequestLogBody         ElementID = "request-log-tbody"
	ErrorLogBody           ElementID = "error-log-tbody"
	ServerStatusDot        ElementID = "server-status-dot"
	ServerStatusText       ElementID = "server-status-text"
	CPUUsage               ElementID = "cpu-usage"
	MemoryUsage            ElementID = "memory-usage"
	ServerLoad             ElementID = "server-load"
	Uptime                 ElementID = "uptime"
	DevicesStatusContainer ElementID = "devices-status-container"
	CameraStatusContainer  ElementID = "camera-status-container"
)

const (
	// Placeholder is shown by readouts that have no value.
	Placeholder = "---"
	// EmptyTableText is the placeholder row of a table that has not received data.
	EmptyTableText = "No data yet"
	// ConnectingText is the status text before the first connection attempt ends.
	ConnectingText = "Connecting..."
)

var (
	RequestColumns = []string{"Time", "Method", "Status", "URL", "Response Time"}
	ErrorColumns   = []string{"Time", "Method", "Status", "URL", "Message"}

	// Readouts are the scalar resource readouts reset on disconnect.
	Readouts = []ElementID{CPUUsage, MemoryUsage, ServerLoad, Uptime}
	// Panels are the status containers filled by the poller.
	Panels = []ElementID{DevicesStatusContainer, CameraStatusContainer}
)

// ErrUnknownElement is returned for an id that is not part of the document or
// is not of the kind the operation expects.
var ErrUnknownElement = errors.New("unknown element")

// Row is one table row; cells are in column order.
type Row []string

// Block is one entry of a status panel.
type Block struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type table struct {
	columns     []string
	rows        []Row // oldest first
	placeholder bool
	// epoch changes whenever rows are removed; within one epoch rows only
	// grow.
	epoch uint64
}

// Document is safe for concurrent use. Each operation is atomic on its own;
// a sequence of operations is not.
type Document struct {
	mu        sync.RWMutex
	version   uint64
	tables    map[ElementID]*table
	texts     map[ElementID]string
	dot       types.ConnectionState
	panels    map[ElementID][]Block
	listeners map[int]chan struct{}
	nextSub   int
}

// New returns a document in its initial page state.
func New() *Document {
	d := &Document{
		tables: map[ElementID]*table{
			RequestLogBody: {columns: RequestColumns, placeholder: true, epoch: 1},
			ErrorLogBody:   {columns: ErrorColumns, placeholder: true, epoch: 1},
		},
		texts: map[ElementID]string{
			ServerStatusText: ConnectingText,
		},
		dot:       types.Disconnected,
		panels:    make(map[ElementID][]Block),
		listeners: make(map[int]chan struct{}),
	}
	for _, id := range Readouts {
		d.texts[id] = Placeholder
	}
	for _, id := range Panels {
		d.panels[id] = nil
	}
	return d
}

// ClearTable removes every row of a table body, including its placeholder.
func (d *Document) ClearTable(id ElementID) error {
	d.mu.Lock()
	t, ok := d.tables[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: table %s", ErrUnknownElement, id)
	}
	t.rows = nil
	t.placeholder = false
	t.epoch++
	d.changedLocked()
	d.mu.Unlock()
	return nil
}

// PrependRow inserts a row at the top of a table body.
func (d *Document) PrependRow(id ElementID, row Row) error {
	d.mu.Lock()
	t, ok := d.tables[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: table %s", ErrUnknownElement, id)
	}
	t.rows = append(t.rows, append(Row(nil), row...))
	d.changedLocked()
	d.mu.Unlock()
	return nil
}

// Rows returns a table's rows newest first. A table still showing its
// placeholder returns no rows.
func (d *Document) Rows(id ElementID) ([]Row, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: table %s", ErrUnknownElement, id)
	}
	return newestFirst(t.rows), nil
}

// TableDelta is what a table gained since a reader last looked.
type TableDelta struct {
	// Epoch and Count are what the reader passes to the next RowsSince call.
	Epoch uint64
	Count int
	// Reset means the reader must drop what it holds; Columns and Added then
	// carry the whole table.
	Reset       bool
	Columns     []string
	Added       []Row // newest first
	Placeholder string
}

// RowsSince returns the rows added to a table after the reader saw count rows
// in epoch. A reader that has seen nothing passes zero for both.
func (d *Document) RowsSince(id ElementID, epoch uint64, count int) (TableDelta, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[id]
	if !ok {
		return TableDelta{}, fmt.Errorf("%w: table %s", ErrUnknownElement, id)
	}
	delta := TableDelta{Epoch: t.epoch, Count: len(t.rows)}
	if t.placeholder {
		delta.Placeholder = EmptyTableText
	}
	if epoch != t.epoch || count > len(t.rows) {
		delta.Reset = true
		delta.Columns = append([]string(nil), t.columns...)
		count = 0
	}
	delta.Added = newestFirst(t.rows[count:])
	return delta, nil
}

// SetText replaces the text of a readout.
func (d *Document) SetText(id ElementID, text string) error {
	d.mu.Lock()
	if _, ok := d.texts[id]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: text %s", ErrUnknownElement, id)
	}
	d.texts[id] = text
	d.changedLocked()
	d.mu.Unlock()
	return nil
}

// Text returns the text of a readout.
func (d *Document) Text(id ElementID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	text, ok := d.texts[id]
	if !ok {
		return "", fmt.Errorf("%w: text %s", ErrUnknownElement, id)
	}
	return text, nil
}

// SetIndicator sets the status dot and the status text together.
func (d *Document) SetIndicator(state types.ConnectionState) {
	d.mu.Lock()
	d.dot = state
	d.texts[ServerStatusText] = state.String()
	d.changedLocked()
	d.mu.Unlock()
}

// Indicator returns the current connection state shown by the status dot.
func (d *Document) Indicator() types.ConnectionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dot
}

// ReplacePanel discards a panel's content and replaces it with blocks.
func (d *Document) ReplacePanel(id ElementID, blocks []Block) error {
	d.mu.Lock()
	if _, ok := d.panels[id]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: panel %s", ErrUnknownElement, id)
	}
	d.panels[id] = append([]Block(nil), blocks...)
	d.changedLocked()
	d.mu.Unlock()
	return nil
}

// Panel returns a copy of a panel's blocks.
func (d *Document) Panel(id ElementID) ([]Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blocks, ok := d.panels[id]
	if !ok {
		return nil, fmt.Errorf("%w: panel %s", ErrUnknownElement, id)
	}
	return append([]Block(nil), blocks...), nil
}

// IsPanel reports whether id names a status panel.
func IsPanel(id ElementID) bool {
	for _, p := range Panels {
		if p == id {
			return true
		}
	}
	return false
}

// Version returns the change counter, the same value a Snapshot taken now
// would carry.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Subscribe returns a channel that receives a value after the document
// changes. Notifications coalesce: a slow reader sees one pending signal, not
// one per change. The returned func unsubscribes.
func (d *Document) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.listeners[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *Document) changedLocked() {
	d.version++
	for _, ch := range d.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func newestFirst(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = append(Row(nil), r...)
	}
	return out
}
