// Package control serves the engine's command surface as HTTP/JSON over a
// unix socket and provides the matching client.
package control

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	socketPerm      = 0o600
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 2 * time.Second
	recentLimit     = 20
)

// NotificationSource lists recent notifications, oldest first.
type NotificationSource interface {
	Recent() []notify.Notification
}

// TransitionSource lists recent phase transitions, oldest first.
type TransitionSource interface {
	Recent(ctx context.Context, limit int) ([]engine.Transition, error)
}

// Status is the body of GET /v1/status.
type Status struct {
	engine.Snapshot
	Notifications []notify.Notification `json:"notifications"`
	Transitions   []engine.Transition   `json:"transitions,omitempty"`
}

type pauseRequest struct {
	Minutes int `json:"minutes"`
}

type awakeRequest struct {
	Enabled bool `json:"enabled"`
}

type errorBody struct {
	Error struct {
		Code    errors.ErrorCode `json:"code"`
		Message string           `json:"message"`
	} `json:"error"`
}

type Server struct {
	ctrl          engine.Controller
	logger        logger.Logger
	notifications NotificationSource
	transitions   TransitionSource
}

type Option func(*Server)

func WithNotifications(src NotificationSource) Option {
	return func(s *Server) { s.notifications = src }
}

func WithTransitions(src TransitionSource) Option {
	return func(s *Server) { s.transitions = src }
}

func NewServer(ctrl engine.Controller, log logger.Logger, opts ...Option) *Server {
	s := &Server{ctrl: ctrl, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(s.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/nap", s.handleNap)
		r.Post("/resume", s.handleResume)
		r.Post("/pause", s.handlePause)
		r.Delete("/pause", s.handleCancelPause)
		r.Post("/awake", s.handleToggleAwake)
		r.Put("/awake", s.handleSetAwake)
		r.Put("/settings", s.handleGlobalSettings)
		r.Route("/monitors/{id}", func(r chi.Router) {
			r.Post("/identify", s.handleIdentify)
			r.Put("/settings", s.handleMonitorSettings)
		})
	})

	return r
}

// Serve listens on the unix socket at path until ctx is cancelled. A stale
// socket file left by a crashed daemon is replaced.
func (s *Server) Serve(ctx context.Context, path string) error {
	errFactory := errors.New()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(ErrListen, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return errFactory.Wrap(ErrListen, err)
	}
	defer os.Remove(path)

	if err := os.Chmod(path, socketPerm); err != nil {
		ln.Close()
		return errFactory.Wrap(ErrListen, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: requestTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Debug().Err(err).Msg("Control server shutdown")
		}
	}()

	s.logger.Info().Str("socket", path).Msg("Control socket listening")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errFactory.Wrap(ErrListen, err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Control request")
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) handleNap(w http.ResponseWriter, r *http.Request) {
	s.ctrl.NapNow()
	s.respond(w, r, nil)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ResumeNow()
	s.respond(w, r, nil)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.ctrl.PauseFor(req.Minutes))
}

func (s *Server) handleCancelPause(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CancelPause()
	s.respond(w, r, nil)
}

func (s *Server) handleToggleAwake(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ToggleAwakeMode()
	s.respond(w, r, nil)
}

func (s *Server) handleSetAwake(w http.ResponseWriter, r *http.Request) {
	var req awakeRequest
	if !decode(w, r, &req) {
		return
	}
	s.ctrl.SetAwakeMode(req.Enabled)
	s.respond(w, r, nil)
}

func (s *Server) handleGlobalSettings(w http.ResponseWriter, r *http.Request) {
	var update engine.GlobalSettingsUpdate
	if !decode(w, r, &update) {
		return
	}
	s.respond(w, r, s.ctrl.UpdateGlobalSettings(update))
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, s.ctrl.Identify(id))
}

func (s *Server) handleMonitorSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(w, r)
	if !ok {
		return
	}
	var settings monitor.Settings
	if !decode(w, r, &settings) {
		return
	}
	s.respond(w, r, s.ctrl.UpdateMonitorSettings(id, settings))
}

// respond waits for the command to be applied and answers with the
// resulting status, or with err when the command was rejected.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		if coded := errors.Coded(err, errors.ErrInternal); statusFor(coded.Code()) == http.StatusInternalServerError {
			s.logger.ErrorWithCode(coded).Str("path", r.URL.Path).Msg("Control command failed")
		}
		writeError(w, err)
		return
	}
	if err := s.ctrl.Sync(r.Context()); err != nil {
		writeError(w, errors.New().Wrap(errors.ErrTimeout, err))
		return
	}
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) status(ctx context.Context) Status {
	st := Status{Snapshot: s.ctrl.Snapshot(), Notifications: []notify.Notification{}}
	if s.notifications != nil {
		st.Notifications = s.notifications.Recent()
	}
	if s.transitions != nil {
		transitions, err := s.transitions.Recent(ctx, recentLimit)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read transition history")
		}
		st.Transitions = transitions
	}
	return st
}

func monitorID(w http.ResponseWriter, r *http.Request) (monitor.ID, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || raw == "" {
		writeError(w, errors.New().WithData(errors.ErrInvalidArgument, "monitor id"))
		return "", false
	}
	return monitor.ID(raw), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, errors.New().Wrap(errors.ErrInvalidArgument, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.ErrInternal
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	writeJSON(w, statusFor(code), body)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrUnknownMonitor:
		return http.StatusNotFound
	case errors.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
