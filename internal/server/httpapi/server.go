// Package httpapi is the HTTP infrastructure adapter over the catalog
// services: JSON endpoints, bearer-token principal extraction, and mapping
// of the core's sentinel errors to status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/logging"
	"github.com/avelats/polycat/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server hosts the catalog HTTP API.
type Server struct {
	address         string
	drafts          *services.DraftService
	rollback        *services.RollbackService
	catalog         *services.CatalogService
	logger          logging.Logger
	jwtSecret       []byte
	shutdownTimeout time.Duration
}

// NewServer constructs the HTTP server for the given services.
func NewServer(addr string, l logging.Logger, ds *services.DraftService, rs *services.RollbackService,
	cs *services.CatalogService, secretKey string, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         addr,
		logger:          l.With("module", "http_server"),
		drafts:          ds,
		rollback:        rs,
		catalog:         cs,
		jwtSecret:       []byte(secretKey),
		shutdownTimeout: shutdownTimeout,
	}
}

// Router assembles the route tree. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.principalMiddleware)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", s.handleCreateDraft)
			r.Get("/{id}", s.handleGetDraft)
			r.Delete("/{id}", s.handleDiscardDraft)
			r.Post("/{id}/merge", s.handleMergeDraft)
			r.Post("/{id}/submit", s.handleSubmitDraft)
			r.Post("/{id}/approve", s.handleApproveDraft)
			r.Post("/{id}/reject", s.handleRejectDraft)
			r.Post("/{id}/publish", s.handlePublishDraft)
		})

		r.Route("/sets/{id}", func(r chi.Router) {
			r.Get("/drafts", s.handleListDrafts)
			r.Get("/variants", s.handleListVariants)
			r.Get("/history", s.handleSetHistory)
		})

		r.Route("/variants/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetVariant)
			r.Get("/history", s.handleVariantHistory)
			r.Get("/snapshots", s.handleVariantSnapshots)
			r.Post("/rollback", s.handleRollback)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains within the shutdown
// timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the core's sentinel errors to HTTP status codes. Unknown
// errors are logged and surface as opaque 500s.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrInvalidStatus),
		errors.Is(err, common.ErrDraftExists),
		errors.Is(err, common.ErrExistsApprovedButNotTranslated),
		errors.Is(err, common.ErrInvalidRollbackTarget),
		errors.Is(err, common.ErrVersionMismatch):
		status = http.StatusConflict
	default:
		s.logger.Error(r.Context(), "internal error", "path", r.URL.Path, "error", err.Error())
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
