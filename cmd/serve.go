package cmd

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/metrics"
	"github.com/Monsterkot/diplom/internal/scheduler"
)

// ServeCmd runs the staleness scheduler with a metrics and task status endpoint
type ServeCmd struct {
	Interval    time.Duration `help:"Time between staleness passes (default: staleness.interval)"`
	MetricsAddr string        `help:"Listen address for /metrics, /healthz and /tasks/{id} (default: metrics.addr)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	return withApp(g, func(app *App) error {
		addr := c.MetricsAddr
		if addr == "" {
			addr = app.Config.Metrics.Addr
		}

		s := app.Scheduler
		if c.Interval > 0 {
			s = scheduler.New(app.Store, app.Refresher, app.Queue,
				scheduler.WithMaxAge(app.Config.Staleness.MaxAge),
				scheduler.WithBatchSize(app.Config.Staleness.BatchSize),
				scheduler.WithInterval(c.Interval),
			)
		}

		metrics.Register()
		server := &http.Server{
			Addr:              addr,
			Handler:           newServeMux(app),
			ReadHeaderTimeout: 5 * time.Second,
		}

		grp, ctx := errgroup.WithContext(g.Context())
		grp.Go(func() error {
			slog.Info("Serving metrics", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			return s.Run(ctx)
		})
		grp.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		return grp.Wait()
	})
}

func newServeMux(app *App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		status, err := app.Queue.Status(r.Context(), r.PathValue("id"))
		switch {
		case errors.IsNotFoundError(err):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := writeJSON(w, status); err != nil {
			slog.Warn("Failed to write task status", "error", err)
		}
	})
	return mux
}
