package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/netspec/livedash/internal/feed"
	"github.com/netspec/livedash/internal/poller"
	"github.com/netspec/livedash/internal/version"
	"github.com/netspec/livedash/internal/view"
	"github.com/netspec/livedash/internal/webui"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HealthGetter returns the push-stream health
type HealthGetter func() feed.Health

// PollStatusGetter returns the status of every poll target
type PollStatusGetter func() []poller.TargetStatus

// Server provides HTTP API endpoints and web UI
type Server struct {
	doc       *view.Document
	logger    zerolog.Logger
	addr      string
	logBuffer *webui.LogBuffer
	startTime time.Time
	build     version.BuildInfo

	gettersMu  sync.RWMutex
	health     HealthGetter
	pollStatus PollStatusGetter

	// last encoded snapshot, reused while the document version holds
	snapMu   sync.Mutex
	snapSeen bool
	snapVer  uint64
	snapBody []byte
	snapTag  string
}

// NewServer creates a new API server
func NewServer(doc *view.Document, logger zerolog.Logger, addr string) *Server {
	return &Server{
		doc:       doc,
		logger:    logger,
		addr:      addr,
		startTime: time.Now(),
		build:     version.Info(),
	}
}

// SetLogBuffer sets the log buffer for the web UI
func (s *Server) SetLogBuffer(lb *webui.LogBuffer) {
	s.logBuffer = lb
}

// SetVersion overrides the build information
func (s *Server) SetVersion(info version.BuildInfo) {
	s.build = info
}

// SetHealthGetter sets the function reporting push-stream health
func (s *Server) SetHealthGetter(fn HealthGetter) {
	s.gettersMu.Lock()
	defer s.gettersMu.Unlock()
	s.health = fn
}

// SetPollStatusGetter sets the function reporting poller status
func (s *Server) SetPollStatusGetter(fn PollStatusGetter) {
	s.gettersMu.Lock()
	defer s.gettersMu.Unlock()
	s.pollStatus = fn
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/logs", s.handleLogsAPI)

	// Web UI
	mux.HandleFunc("/", s.handleWebUI)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("address", s.addr).
		Msg("Starting API server with Web UI")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("API server stopped")
	return nil
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the stream health, poller state and build info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.gettersMu.RLock()
	healthFn := s.health
	pollFn := s.pollStatus
	s.gettersMu.RUnlock()

	status := map[string]interface{}{
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"started":    humanize.Time(s.startTime),
		"version":    s.build.Version,
		"commit":     s.build.Commit,
		"build_date": s.build.BuildDate,
		"connection": s.doc.Indicator(),
	}

	if healthFn != nil {
		h := healthFn()
		stream := map[string]interface{}{
			"health":   h,
			"messages": humanize.Comma(h.MessageCount),
		}
		if !h.LastMessage.IsZero() {
			stream["last_message_ago"] = humanize.Time(h.LastMessage)
		}
		status["stream"] = stream
	}
	if pollFn != nil {
		targets := pollFn()
		polls := make([]map[string]interface{}, 0, len(targets))
		for _, t := range targets {
			entry := map[string]interface{}{"target": t}
			if !t.LastSuccess.IsZero() {
				entry["last_success_ago"] = humanize.Time(t.LastSuccess)
			}
			polls = append(polls, entry)
		}
		status["poller"] = polls
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleSnapshot returns the document as JSON. The ETag is a digest of the
// body, so an unchanged dashboard answers 304.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	body, etag, err := s.encodedSnapshot()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode snapshot")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}

// encodedSnapshot copies and encodes the document only when its version moved
// since the last request.
func (s *Server) encodedSnapshot() ([]byte, string, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapSeen && s.doc.Version() == s.snapVer {
		return s.snapBody, s.snapTag, nil
	}
	snap := s.doc.Snapshot()
	body, err := json.Marshal(snap)
	if err != nil {
		return nil, "", err
	}
	s.snapSeen, s.snapVer, s.snapBody = true, snap.Version, body
	s.snapTag = `"` + strconv.FormatUint(xxh3.Hash(body), 16) + `"`
	return s.snapBody, s.snapTag, nil
}

// handleLogsAPI returns recent log entries as JSON; DELETE empties the buffer
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodDelete:
		if s.logBuffer != nil {
			s.logBuffer.Clear()
		}
		s.logger.Info().Msg("Log buffer cleared")
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
		return
	default:
		w.Header().Set("Allow", "GET, HEAD, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries := []webui.LogEntry{}
	if s.logBuffer != nil {
		entries = s.logBuffer.GetRecentEntries(limit)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleWebUI renders the dashboard page
func (s *Server) handleWebUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var logs []webui.LogEntry
	if s.logBuffer != nil {
		logs = s.logBuffer.GetRecentEntries(100)
	}
	data := webui.NewPageData(s.doc.Snapshot(), logs, s.build)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webui.Templates.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}
