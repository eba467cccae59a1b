package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Routes mounts the Prometheus endpoint and the health check on router.
func Routes(router *mux.Router) {
	router.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("GetMetrics")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET").Name("GetHealth")
}

// Serve runs handler on addr until ctx is done, then shuts the server down.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fedlog.Zero.Info().
			Str("addr", addr).
			Msg("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		fedlog.Zero.Info().Str("addr", addr).Msg("stopping http server")
		return srv.Shutdown(shutdownCtx)
	}
}
