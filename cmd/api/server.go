package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/metrics"
	"social-autopilot/internal/models"
	"social-autopilot/internal/orchestrator"
	"social-autopilot/internal/queue"
)

const maxBodyBytes = 1 << 20

const loginStartedMessage = "Login page opened in browser. Complete login manually. Bot will start automatically after login."

type server struct {
	queue   *queue.Queue
	ctl     orchestrator.Controller
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newServer(q *queue.Queue, ctl orchestrator.Controller, m *metrics.Metrics, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{
		queue:   q,
		ctl:     ctl,
		metrics: m,
		logger:  logger.Named("api"),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", s.handleMonitor)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/queues", s.handleQueues)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return s.withLogging(mux)
}

type monitorRequest struct {
	VideoURL string `json:"videoUrl"`
}

type monitorResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	VideoURL string `json:"videoUrl"`
}

type uploadRequest struct {
	VideoPath string `json:"videoPath"`
	Caption   string `json:"caption"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	VideoPath string `json:"videoPath"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleMonitor adds a video to the monitor queue.
//
// Method: POST
// Path:   /monitor
// Example:
//
//	curl -X POST http://localhost:4000/monitor -H 'Content-Type: application/json' \
//	  -d '{"videoUrl":"https://www.tiktok.com/@me/video/1"}'
func (s *server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req monitorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.queue.EnqueueMonitor(req.VideoURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, monitorResponse{
		Success:  true,
		Message:  "Video added to monitor queue",
		VideoURL: item.URL,
	}, http.StatusOK)
}

// handleUpload adds a local video file to the upload queue.
//
// Method: POST
// Path:   /upload
// Example:
//
//	curl -X POST http://localhost:4000/upload -H 'Content-Type: application/json' \
//	  -d '{"videoPath":"/videos/clip.mp4","caption":"new drop"}'
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.queue.EnqueueUpload(req.VideoPath, req.Caption)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, uploadResponse{
		Success:   true,
		Message:   "Video added to upload queue",
		VideoPath: item.Path,
	}, http.StatusOK)
}

// handleStatus returns both queues and whether the bot loop is running.
//
// Method: GET
// Path:   /status
// Example:
//
//	curl http://localhost:4000/status
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.queue.Status()
	writeJSON(w, models.QueueStatus{
		Monitoring: snap.Monitoring,
		Uploading:  snap.Uploading,
		Running:    s.ctl.Running(),
	}, http.StatusOK)
}

// handleLogin starts (GET) or cancels (DELETE) the interactive login flow.
//
// Method: GET, DELETE
// Path:   /login
// Example:
//
//	curl http://localhost:4000/login
//	curl -X DELETE http://localhost:4000/login
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		err := s.ctl.BeginLogin(r.Context())
		switch {
		case err == nil:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, loginStartedMessage)
		case errors.Is(err, apperrors.ErrLoginInProgress):
			http.Error(w, "login already in progress", http.StatusConflict)
		case errors.Is(err, apperrors.ErrLoopRunning):
			http.Error(w, "bot is already running", http.StatusConflict)
		case errors.Is(err, orchestrator.ErrClosed):
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		default:
			s.logger.Error("login start failed", zap.Error(err))
			http.Error(w, "Error opening login page.", http.StatusInternalServerError)
		}
	case http.MethodDelete:
		if !s.ctl.CancelLogin() {
			http.Error(w, "no login in progress", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"success": true, "message": "Login cancelled"}, http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleQueues empties both queues.
//
// Method: DELETE
// Path:   /queues
// Example:
//
//	curl -X DELETE http://localhost:4000/queues
func (s *server) handleQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.queue.Clear()
	writeJSON(w, map[string]any{"success": true, "message": "Queues cleared"}, http.StatusOK)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]bool{"ok": true}, http.StatusOK)
}

// decodeBody reads a JSON object into v. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, errorResponse{Error: "invalid JSON body"}, http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, errorResponse{Error: verr.Message}, http.StatusBadRequest)
		return
	}
	writeJSON(w, errorResponse{Error: "internal error"}, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
