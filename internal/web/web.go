package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"schedbot/internal/config"
	appLog "schedbot/internal/log"
	"schedbot/internal/refresh"
	"schedbot/internal/schedule"
)

// Trigger runs one synchronous refresh. *refresh.Job implements it.
type Trigger interface {
	Run(ctx context.Context, trigger string) (*schedule.Snapshot, error)
}

// Server exposes the schedule engine over HTTP.
type Server struct {
	cfg     *config.Config
	engine  *schedule.Engine
	trigger Trigger
	mux     *http.ServeMux
}

// NewServer constructs a new Server. A nil trigger disables POST /api/refresh.
func NewServer(cfg *config.Config, engine *schedule.Engine, trigger Trigger) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		trigger: trigger,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave the API open.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedbot", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleCourse)
	s.mux.HandleFunc("GET /api/schedule/day", s.handleDay)
	s.mux.HandleFunc("GET /api/schedule/group", s.handleGroup)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleICS)
	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	if s.trigger != nil {
		s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requireSnapshot writes 503 and returns nil until the first refresh has
// published something.
func (s *Server) requireSnapshot(w http.ResponseWriter) *schedule.Snapshot {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "schedule not loaded yet")
	}
	return snap
}

// snapshotResponse is the JSON response shape for /api/snapshot.
type snapshotResponse struct {
	ID              string    `json:"id"`
	BuiltAt         time.Time `json:"built_at"`
	Ready           bool      `json:"ready"`
	NotReady        []string  `json:"not_ready,omitempty"`
	ItemCount       int       `json:"item_count"`
	HolidayCount    int       `json:"holiday_count"`
	CatalogSize     int       `json:"catalog_subjects"`
	RowErrors       []string  `json:"row_errors"`
	MissingSubjects []string  `json:"missing_subjects"`
}

func newSnapshotResponse(snap *schedule.Snapshot) snapshotResponse {
	rowErrs := make([]string, 0, len(snap.RowErrors))
	for _, e := range snap.RowErrors {
		rowErrs = append(rowErrs, e.Error())
	}
	return snapshotResponse{
		ID:              snap.ID.String(),
		BuiltAt:         snap.BuiltAt,
		Ready:           snap.Ready,
		NotReady:        snap.NotReady,
		ItemCount:       len(snap.Items),
		HolidayCount:    len(snap.Holidays),
		CatalogSize:     snap.CatalogSize,
		RowErrors:       rowErrs,
		MissingSubjects: snap.MissingSubjects(),
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(snap))
}

// handleRefresh rebuilds the snapshot synchronously.
//
// POST /api/refresh
//   - 200 with the new snapshot summary
//   - 409 when a refresh is already running
//   - 502 when a sheet or the catalog could not be read
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.trigger.Run(r.Context(), "http")
	switch {
	case errors.Is(err, refresh.ErrRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap))
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
