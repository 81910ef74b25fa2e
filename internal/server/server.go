// Package server exposes the background worker over HTTP: the foreground
// websocket channel plus wake, push and click endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/notifier"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "routined_ws_clients",
		Help: "Foreground apps connected to the worker socket",
	})
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routined_http_requests_total",
		Help: "HTTP requests served by the worker",
	}, []string{"route", "code"})
)

// Server wires the scheduler to its HTTP surface.
type Server struct {
	scheduler *notifier.Scheduler
	hub       *Hub
	router    chi.Router
}

// New builds the server. The hub must be the dispatcher the scheduler was
// built with so START_ROUTINE events reach connected sockets.
func New(sched *notifier.Scheduler, hub *Hub) *Server {
	s := &Server{
		scheduler: sched,
		hub:       hub,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", s.HandleWS)
	r.Post("/push", s.Push)
	r.Post("/click", s.Click)
	r.Post("/wake/{trigger}", s.WakeTrigger)
	r.Get(constants.RoutinesPath, s.Routines)
}

// Router returns the chi router for use with http.Server
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("Worker listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Clients int    `json:"clients"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Health handles GET /healthz
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: constants.Version,
		Clients: s.hub.Len(),
	})
}

// HandleWS handles GET /ws. Every text frame is a protocol envelope; the
// reply goes back on the same socket under the request's id.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		return
	}
	conn.SetReadLimit(constants.MaxMessageBytes)
	remote := strings.TrimSpace(r.RemoteAddr)

	s.hub.add(conn, remote)
	defer s.hub.remove(conn)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx := r.Context()
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				logger.Debug("Socket read failed", "remote", remote, "error", err)
			}
			return
		}
		if mt != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		out, err := s.scheduler.Wake(ctx, notifier.Wake{Trigger: constants.TriggerMessage, Payload: data})
		reply, ok := out.(notifier.Envelope)
		if err != nil || !ok {
			reply, _ = notifier.NewEnvelope(notifier.MsgError, "", notifier.ErrorPayload{Message: errString(err, "invalid message")})
		}
		payload, err := reply.Marshal()
		if err != nil {
			logger.Warn("Could not encode reply", "error", err)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			logger.Debug("Socket write failed", "remote", remote, "error", err)
			return
		}
	}
}

// Push handles POST /push. The body is handed to the scheduler as is.
func (s *Server) Push(w http.ResponseWriter, r *http.Request) {
	s.wake(w, r, constants.TriggerPush, "")
}

// Click handles POST /click with a JSON {action, data} body.
func (s *Server) Click(w http.ResponseWriter, r *http.Request) {
	s.wake(w, r, constants.TriggerNotificationClick, "")
}

// WakeTrigger handles POST /wake/{trigger}?tag=...
func (s *Server) WakeTrigger(w http.ResponseWriter, r *http.Request) {
	trigger := constants.Trigger(chi.URLParam(r, "trigger"))
	s.wake(w, r, trigger, r.URL.Query().Get("tag"))
}

func (s *Server) wake(w http.ResponseWriter, r *http.Request, trigger constants.Trigger, tag string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxMessageBytes))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	out, err := s.scheduler.Wake(r.Context(), notifier.Wake{Trigger: trigger, Tag: tag, Payload: body})
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Wake failed", err)
		return
	}
	if out != nil {
		jsonResponse(w, http.StatusOK, out)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type routinesView struct {
	View  string `json:"view"`
	Start string `json:"start,omitempty"`
	Hint  string `json:"hint"`
}

// Routines handles GET /routines, the view opened from a notification when no
// foreground is connected.
func (s *Server) Routines(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get(constants.RoutineStartParam)
	hint := "Run `routined queue` to work through pending routines."
	if start != "" {
		hint = "Run `routined queue --start " + start + "` to begin this routine."
	}
	jsonResponse(w, http.StatusOK, routinesView{View: "routines", Start: start, Hint: hint})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string, err error) {
	resp := errorBody{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	jsonResponse(w, status, resp)
}

func errString(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
