package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/samteezy/mcproxy/internal/aggregator"
	"github.com/samteezy/mcproxy/internal/compressor"
	"github.com/samteezy/mcproxy/internal/config"
	"github.com/samteezy/mcproxy/internal/logsink"
	"github.com/samteezy/mcproxy/internal/upstream"
)

// AdminServer exposes the proxy's admin HTTP surface described in spec.md
// §6: health, raw config read/write, validation, hot reload, status, and
// log streaming. Built the way the teacher's gateway exposes its own HTTP
// control surface, trimmed to this proxy's endpoints.
type AdminServer struct {
	handler    *Handler
	aggregator *aggregator.Aggregator
	manager    *upstream.Manager
	sink       *logsink.Sink
	compr      *compressor.Compressor
	cfgPath    string
	reloadFn   func() error
	started    time.Time
}

// NewAdminServer builds the admin mux. reloadFn is invoked by POST
// /api/reload and should trigger the supervisor's hot-reload sequence.
func NewAdminServer(h *Handler, agg *aggregator.Aggregator, manager *upstream.Manager, sink *logsink.Sink, compr *compressor.Compressor, cfgPath string, reloadFn func() error) *AdminServer {
	return &AdminServer{
		handler:    h,
		aggregator: agg,
		manager:    manager,
		sink:       sink,
		compr:      compr,
		cfgPath:    cfgPath,
		reloadFn:   reloadFn,
		started:    time.Now(),
	}
}

// Mux builds the admin http.ServeMux.
func (a *AdminServer) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleIndex)
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/config/validate", a.handleConfigValidate)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.HandleFunc("/api/logs/stream", a.handleLogStream)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/status/", a.handleUpstreamStatus)
	return mux
}

func (a *AdminServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "text/html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><h1>mcproxy</h1><p>uptime: %s</p></body></html>", time.Since(a.started))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": "mcproxy", "uptime": time.Since(a.started).String()})
}

type upstreamStatus struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func (a *AdminServer) upstreamStatuses() []upstreamStatus {
	out := make([]upstreamStatus, 0, len(a.manager.IDs()))
	for id, sess := range a.manager.All() {
		out = append(out, upstreamStatus{ID: id, State: string(sess.State())})
	}
	return out
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"upstreams": a.upstreamStatuses(),
	})
}

// handleConfig serves the raw config file text on GET and atomically
// rewrites it on PUT, per spec.md §6.
func (a *AdminServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		content, err := os.ReadFile(a.cfgPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": a.cfgPath, "content": string(content)})
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		if _, err := config.LoadFromBytes(body); err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   err.Error(),
				"issues":  []configIssue{{Path: "", Message: err.Error()}},
			})
			return
		}
		if err := atomicWriteFile(a.cfgPath, body); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type configIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (a *AdminServer) handleConfigValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "issues": []configIssue{{Message: err.Error()}}})
		return
	}
	if _, err := config.LoadFromBytes(buf); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "issues": []configIssue{{Path: "", Message: err.Error()}}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (a *AdminServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.reloadFn(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "upstreams": a.upstreamStatuses()})
}

const sseHeartbeatInterval = 30 * time.Second

// handleLogStream streams the log sink's live entries as server-sent
// events: a history envelope seeded from the ring buffer, then one
// envelope per new entry, with a blank-comment heartbeat every 30s to keep
// idle connections alive through intermediate proxies, per spec.md §6.
func (a *AdminServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSEEvent(w, map[string]any{"type": "history", "logs": a.sink.Recent(100)})
	flusher.Flush()

	ch := a.sink.Subscribe()
	defer a.sink.Unsubscribe(ch)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e := <-ch:
			writeSSEEvent(w, map[string]any{"type": "log", "entry": e})
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}

// handleStatus reports aggregate health and compression metrics across
// every upstream, per spec.md §6: `{status, upstreams}`.
func (a *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"upstreams": a.upstreamStatuses(),
		"metrics":   a.compr.Metrics().Snapshot(),
	})
}

// handleUpstreamStatus reports one upstream's connection state plus its
// tools/resources/prompts counts, per spec.md §6.
func (a *AdminServer) handleUpstreamStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/api/status/"):]
	sess, ok := a.manager.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown upstream %q", id), http.StatusNotFound)
		return
	}

	var tools, resources, prompts int
	for _, e := range a.aggregator.Tools() {
		if e.UpstreamID == id {
			tools++
		}
	}
	for _, e := range a.aggregator.Resources() {
		if e.UpstreamID == id {
			resources++
		}
	}
	for _, e := range a.aggregator.Prompts() {
		if e.UpstreamID == id {
			prompts++
		}
	}

	status := map[string]any{
		"id":        id,
		"state":     string(sess.State()),
		"tools":     tools,
		"resources": resources,
		"prompts":   prompts,
	}
	if err := sess.LastError(); err != nil {
		status["lastError"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

// atomicWriteFile writes data to path via a temp file in the same
// directory followed by rename, so a crash mid-write never leaves a
// truncated config file on disk.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mcproxy-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
