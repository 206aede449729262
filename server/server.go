// Package server exposes reading session over HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"folio/reader"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	log    *zap.Logger
	reader *reader.Reader
	router chi.Router
}

func New(r *reader.Reader, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:    log.Named("server"),
		reader: r,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(httprate.LimitByIP(600, time.Minute))

	s.router.Get("/state", s.handleState)
	s.router.Get("/pages", s.handlePages)
	s.router.Get("/pages/{number}", s.handlePage)
	s.router.Get("/chapters", s.handleChapters)
	s.router.Put("/viewport", s.handleViewport)
	s.router.Put("/selection", s.handleSelection)
	s.router.Post("/chapters/{id}/jump", s.handleJump)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("Request",
			zap.String("id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// ListenAndServe serves API on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	s.log.Info("Serving", zap.Stringer("address", ln.Addr()))
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Unable to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorView{Error: err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newStateView(s.reader.State()))
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	st := s.reader.State()
	views := make([]pageView, 0, len(st.Pages))
	for _, p := range st.Pages {
		views = append(views, newPageView(p, false))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad page number: %w", err))
		return
	}
	st := s.reader.State()
	if n < 1 || n > len(st.Pages) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("page %d: %w", n, reader.ErrUnknownPage))
		return
	}
	s.writeJSON(w, http.StatusOK, newPageView(st.Pages[n-1], true))
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reader.Chapters())
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad viewport: %w", err))
		return
	}
	if req.Width < 0 || req.Height < 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad viewport %gx%g", req.Width, req.Height))
		return
	}
	if err := s.reader.Resize(r.Context(), layoutViewport(req)); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newStateView(s.reader.State()))
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad selection: %w", err))
		return
	}
	if req.Page == uuid.Nil {
		s.respondChange(w, s.reader.SelectNumber(r.Context(), req.Number))
		return
	}
	s.respondChange(w, s.reader.Select(r.Context(), req.Page))
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("bad chapter id: %w", err))
		return
	}
	s.respondChange(w, s.reader.JumpToChapter(r.Context(), id))
}

func (s *Server) respondChange(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
	case errors.Is(err, reader.ErrUnknownPage), errors.Is(err, reader.ErrUnknownChapter):
		s.writeError(w, http.StatusNotFound, err)
		return
	default:
		// selection has changed, only bookmark was not stored
		s.log.Warn("Unable to persist bookmark", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, newStateView(s.reader.State()))
}
