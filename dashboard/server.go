// Package dashboard serves a results directory over HTTP: models, logs,
// evaluation figures, model comparison, feed run records, scatter plots
// of feature tables, Prometheus metrics and a websocket with change
// notifications.
package dashboard

import (
	"context"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	dir      *results.Dir
	registry *prometheus.Registry
	exporter *Exporter
	hub      *hub
	router   *mux.Router
}

func New(dir *results.Dir) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		dir:      dir,
		registry: registry,
		exporter: NewExporter(dir, registry),
		hub:      newHub(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.index()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.models()).Methods(http.MethodGet)
	api.HandleFunc("/models/{name}/figures", s.figures()).Methods(http.MethodGet)
	api.HandleFunc("/models/{name}/tables/{file:.+}", s.table()).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.logs()).Methods(http.MethodGet)
	api.HandleFunc("/comparison", s.comparison()).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.runs()).Methods(http.MethodGet)

	r.HandleFunc("/plot/{name}/scatter/{file:.+}", s.scatter()).Methods(http.MethodGet)
	r.HandleFunc("/plot/{name}/features/{file:.+}", s.features()).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/ws", s.hub.serveWS)
	r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(s.dir.Root()))))
	return r
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve watches the results directory and serves on ln until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.exporter.Refresh(); err != nil {
		log.WithError(err).Warn("Failed to load run metrics")
	}

	watcher, err := NewWatcher(s.dir.Root())
	if err != nil {
		ln.Close()
		return err
	}
	defer watcher.Close()
	go s.dispatch(watcher.Events())

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.WithFields(log.Fields{
		"addr":    ln.Addr().String(),
		"results": s.dir.Root(),
	}).Info("Serving dashboard")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	log.Info("Dashboard stopped")
	return nil
}

// dispatch updates the metrics for changed run records and models and
// forwards every event to the websocket clients.
func (s *Server) dispatch(events <-chan Event) {
	for ev := range events {
		switch {
		case ev.Op == "remove" || ev.Op == "rename":
			if err := s.exporter.Refresh(); err != nil {
				log.WithError(err).Warn("Failed to refresh run metrics")
			}
		case path.Dir(ev.Path) == results.RunsDir:
			if err := s.exporter.processRunFile(s.dir.Path(ev.Path)); err != nil {
				// the file may still be partially written
				log.WithError(err).Debug("Skipping run file")
			}
		case strings.HasPrefix(ev.Path, results.ModelsDir+"/"):
			if err := s.exporter.refreshModels(); err != nil {
				log.WithError(err).Warn("Failed to count models")
			}
		}
		s.hub.broadcast(ev)
	}
}
