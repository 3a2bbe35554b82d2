package webui

import (
	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/version"
	"github.com/netspec/livedash/internal/view"
)

// TableData is one rendered table body
type TableData struct {
	ID          view.ElementID
	Columns     []string
	Rows        []view.Row
	Placeholder string
}

// PanelData is one rendered status container
type PanelData struct {
	ID     view.ElementID
	Title  string
	Blocks []view.Block
}

// ReadoutData is one labelled text readout
type ReadoutData struct {
	ID    view.ElementID
	Label string
	Text  string
}

// PageData holds all data for the dashboard template
type PageData struct {
	Version    uint64
	Connected  bool
	StatusText string
	Readouts   []ReadoutData
	Requests   TableData
	Errors     TableData
	Panels     []PanelData
	Logs       []LogEntry
	Build      version.BuildInfo
}

var readoutLabels = map[view.ElementID]string{
	view.CPUUsage:    "CPU",
	view.MemoryUsage: "Memory",
	view.ServerLoad:  "Load",
	view.Uptime:      "Uptime",
}

var panelTitles = map[view.ElementID]string{
	view.DevicesStatusContainer: "Devices",
	view.CameraStatusContainer:  "Cameras",
}

// NewPageData lays a document snapshot out for the dashboard template
func NewPageData(snap view.Snapshot, logs []LogEntry, build version.BuildInfo) PageData {
	data := PageData{
		Version:    snap.Version,
		Connected:  snap.Connection == types.Connected,
		StatusText: snap.Text(view.ServerStatusText),
		Requests:   tableData(snap, view.RequestLogBody),
		Errors:     tableData(snap, view.ErrorLogBody),
		Logs:       logs,
		Build:      build,
	}
	for _, id := range view.Readouts {
		data.Readouts = append(data.Readouts, ReadoutData{ID: id, Label: readoutLabels[id], Text: snap.Text(id)})
	}
	for _, id := range view.Panels {
		data.Panels = append(data.Panels, PanelData{ID: id, Title: panelTitles[id], Blocks: snap.Panels[id]})
	}
	return data
}

func tableData(snap view.Snapshot, id view.ElementID) TableData {
	t := snap.Tables[id]
	return TableData{ID: id, Columns: t.Columns, Rows: t.Rows, Placeholder: t.Placeholder}
}
