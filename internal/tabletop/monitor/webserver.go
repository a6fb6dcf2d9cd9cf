// Package monitor serves the HTTP status surface: health, runner
// counters, frame history and debug views of the latest clusters.
package monitor

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	sqlite "github.com/banshee-data/pickplace/internal/tabletop/storage/sqlite"
	"github.com/banshee-data/pickplace/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

var statusTemplate = template.Must(template.ParseFS(statusHTML, "status.html"))

// StatsSource reports runner counters.
type StatsSource interface {
	Stats() pipeline.Stats
}

// FrameHistory is the read side of the frame store.
type FrameHistory interface {
	Get(frameID string) (*sqlite.FrameRecord, error)
	ListRecent(limit int) ([]*sqlite.FrameRecord, error)
	Detections(frameID string) ([]*sqlite.DetectionRecord, error)
	Requests(frameID string) ([]*sqlite.RequestRecord, error)
}

// WebServerConfig configures a WebServer. Runner, Latest and History are
// optional; endpoints that need a missing one answer 503.
type WebServerConfig struct {
	Address string
	SceneID int
	Runner  StatsSource
	Latest  *LatestFrame
	History FrameHistory
}

// WebServer is the monitoring HTTP server.
type WebServer struct {
	address string
	sceneID int
	runner  StatsSource
	latest  *LatestFrame
	history FrameHistory
	server  *http.Server
}

// NewWebServer builds the server and its routes.
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address: cfg.Address,
		sceneID: cfg.SceneID,
		runner:  cfg.Runner,
		latest:  cfg.Latest,
		history: cfg.History,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Start serves until ctx is done, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting monitor HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down monitor HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("monitor HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("monitor HTTP server force close error: %v", err)
		}
	}
	return nil
}

// Handler returns the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.HandleFunc("GET /api/stats", ws.handleStats)
	mux.HandleFunc("GET /api/frames", ws.handleFrames)
	mux.HandleFunc("GET /api/frames/{id}", ws.handleFrame)
	mux.HandleFunc("GET /debug/clusters", ws.handleClusterScatter)
	mux.HandleFunc("GET /debug/clusters.png", ws.handleClusterPNG)
	mux.HandleFunc("GET /{$}", ws.handleStatus)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "pickplace",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type statsResponse struct {
	Runner      *pipeline.Stats `json:"runner,omitempty"`
	LastFrameID string          `json:"last_frame_id,omitempty"`
	LastStatus  string          `json:"last_status,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	if ws.runner != nil {
		st := ws.runner.Stats()
		resp.Runner = &st
	}
	if ws.latest != nil {
		if o, ok := ws.latest.Last(); ok {
			resp.LastFrameID = o.Frame.ID
			resp.LastStatus, resp.LastError, resp.Labels = describe(o)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func describe(o pipeline.Outcome) (status, errMsg string, labels []string) {
	if !o.OK() {
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		return sqlite.StatusFailed, errMsg, nil
	}
	return sqlite.StatusOK, "", o.Result.Labels()
}

func (ws *WebServer) handleFrames(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no frame database configured")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	frames, err := ws.history.ListRecent(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list frames: %v", err))
		return
	}
	if frames == nil {
		frames = []*sqlite.FrameRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, frames)
}

type frameDetail struct {
	Frame      *sqlite.FrameRecord       `json:"frame"`
	Detections []*sqlite.DetectionRecord `json:"detections"`
	Requests   []*sqlite.RequestRecord   `json:"requests"`
}

func (ws *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no frame database configured")
		return
	}
	id := r.PathValue("id")
	f, err := ws.history.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("frame %q not found", id))
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get frame: %v", err))
		return
	}
	dets, err := ws.history.Detections(id)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get detections: %v", err))
		return
	}
	reqs, err := ws.history.Requests(id)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get requests: %v", err))
		return
	}
	if dets == nil {
		dets = []*sqlite.DetectionRecord{}
	}
	if reqs == nil {
		reqs = []*sqlite.RequestRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, frameDetail{Frame: f, Detections: dets, Requests: reqs})
}

type statusPage struct {
	Version    string
	GitSHA     string
	SceneID    int
	Stats      pipeline.Stats
	HasLast    bool
	LastID     string
	LastStatus string
	LastError  string
	Labels     []string
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	page := statusPage{Version: version.Version, GitSHA: version.GitSHA, SceneID: ws.sceneID}
	if ws.runner != nil {
		page.Stats = ws.runner.Stats()
	}
	if ws.latest != nil {
		if o, ok := ws.latest.Last(); ok {
			page.HasLast = true
			page.LastID = o.Frame.ID
			page.LastStatus, page.LastError, page.Labels = describe(o)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, page); err != nil {
		log.Printf("monitor: status template: %v", err)
	}
}
