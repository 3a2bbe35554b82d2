package view

import "github.com/netspec/livedash/internal/types"

// TableSnapshot is an immutable copy of a table body.
type TableSnapshot struct {
	Columns     []string `json:"columns"`
	Rows        []Row    `json:"rows"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Snapshot is an immutable copy of the whole document. Version increases with
// every change.
type Snapshot struct {
	Version    uint64                      `json:"version"`
	Connection types.ConnectionState       `json:"connection"`
	Texts      map[ElementID]string        `json:"texts"`
	Tables     map[ElementID]TableSnapshot `json:"tables"`
	Panels     map[ElementID][]Block       `json:"panels"`
}

// Snapshot copies the document.
func (d *Document) Snapshot() Snapshot {
	return d.snapshot(true)
}

// Summary is Snapshot without table rows, for readers that follow tables
// through RowsSince.
func (d *Document) Summary() Snapshot {
	return d.snapshot(false)
}

func (d *Document) snapshot(withRows bool) Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		Version:    d.version,
		Connection: d.dot,
		Texts:      make(map[ElementID]string, len(d.texts)),
		Tables:     make(map[ElementID]TableSnapshot, len(d.tables)),
		Panels:     make(map[ElementID][]Block, len(d.panels)),
	}
	for id, text := range d.texts {
		s.Texts[id] = text
	}
	for id, t := range d.tables {
		ts := TableSnapshot{Columns: append([]string(nil), t.columns...)}
		if withRows {
			ts.Rows = newestFirst(t.rows)
		}
		if t.placeholder {
			ts.Placeholder = EmptyTableText
		}
		s.Tables[id] = ts
	}
	for id, blocks := range d.panels {
		s.Panels[id] = append([]Block{}, blocks...)
	}
	return s
}

// Text returns a readout's text from the snapshot.
func (s Snapshot) Text(id ElementID) string {
	return s.Texts[id]
}
