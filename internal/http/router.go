package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-ha/pod-door-controller/internal/http/handlers"
)

// NewRouter builds the HTTP routing tree for the door API.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(RequestLogger(api))

	timeout := middleware.Timeout(20 * time.Second)

	r.With(timeout).Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		// The event stream is long-lived and stays outside the request timeout.
		apiRouter.Get("/events", api.Events)

		apiRouter.Group(func(timed chi.Router) {
			timed.Use(timeout)
			timed.Get("/doors", api.ListDoors)
			timed.Post("/doors/{key}/{action}", func(w http.ResponseWriter, r *http.Request) {
				api.CommandDoor(w, r, chi.URLParam(r, "key"), chi.URLParam(r, "action"))
			})
			timed.Get("/actuations", api.ListActuations)
		})
	})
	return r
}

// RunServer starts and gracefully stops HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
