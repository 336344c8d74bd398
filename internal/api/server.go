package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/harvest"
	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned when a run is started while another one is active
var ErrBusy = errors.New("a run is already active")

// logEvent carries one log line to websocket clients
type logEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Server is the control surface of the harvester: it starts runs, forwards
// pause/resume/stop and streams progress over a websocket
type Server struct {
	ctx         context.Context
	coordinator *harvest.Coordinator
	hub         *Hub

	mu      sync.Mutex
	current *harvest.Handle
}

func NewServer(ctx context.Context, coordinator *harvest.Coordinator, hub *Hub) *Server {
	return &Server{ctx: ctx, coordinator: coordinator, hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Router returns the HTTP routes
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/runs", s.handleStart).Methods("POST")
	router.HandleFunc("/runs/current", s.handleState).Methods("GET")
	router.HandleFunc("/runs/current/{action:pause|resume|stop}", s.handleControl).Methods("POST")
	router.HandleFunc("/ws", s.handleWS).Methods("GET")

	return router
}

// StartRun starts job unless another run is still active
func (s *Server) StartRun(job *config.Job) (*harvest.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		select {
		case <-s.current.Done():
		default:
			return nil, ErrBusy
		}
	}

	h, err := s.coordinator.Start(s.ctx, job, harvest.Hooks{
		Progress: s.publishProgress,
		Message:  s.publishMessage,
	})
	if err != nil {
		return nil, err
	}

	s.current = h
	logrus.Infof("Run %s started (%s)", h.RunID, job.Mode)
	return h, nil
}

// Current returns the latest run, finished or not
func (s *Server) Current() *harvest.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Server) publishProgress(event models.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) publishMessage(msg string) {
	data, err := json.Marshal(logEvent{Type: "log", Message: msg})
	if err != nil {
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"clients":   s.hub.ClientCount(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var job config.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h, err := s.StartRun(&job)
	switch {
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusAccepted, h.State())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	h := s.Current()
	if h == nil {
		writeJSON(w, http.StatusOK, models.ProgressState{Status: models.StatusIdle, OutputFiles: []string{}, ActiveKeywords: []string{}})
		return
	}
	writeJSON(w, http.StatusOK, h.State())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	h := s.Current()
	if h == nil {
		writeError(w, http.StatusNotFound, errors.New("no run has been started"))
		return
	}

	select {
	case <-h.Done():
		writeError(w, http.StatusConflict, errors.New("run has already ended"))
		return
	default:
	}

	action := mux.Vars(r)["action"]
	switch action {
	case "pause":
		if h.Paused() {
			writeError(w, http.StatusConflict, errors.New("run is already paused"))
			return
		}
		h.Pause()
	case "resume":
		if !h.Paused() {
			writeError(w, http.StatusConflict, errors.New("run is not paused"))
			return
		}
		h.Resume()
	case "stop":
		h.Stop()
	}
	logrus.Infof("Run %s: %s requested", h.RunID, action)

	writeJSON(w, http.StatusOK, h.State())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("WS upgrade error | error=%v", err)
		return
	}

	client := NewClient(s.hub, conn)
	if h := s.Current(); h != nil {
		if data, err := json.Marshal(models.ProgressEvent{Type: "state", State: h.State()}); err == nil {
			client.send <- data
		}
	}

	s.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
