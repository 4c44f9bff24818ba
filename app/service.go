package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/trackdb/api/tracks"
	"github.com/kilianp07/trackdb/config"
	"github.com/kilianp07/trackdb/core/ingest"
	coremetrics "github.com/kilianp07/trackdb/core/metrics"
	"github.com/kilianp07/trackdb/infra/influx"
	"github.com/kilianp07/trackdb/infra/logger"
	"github.com/kilianp07/trackdb/infra/metrics"
	"github.com/kilianp07/trackdb/infra/mqtt"
)

// Service wires the store, the ingest paths and the query API.
type Service struct {
	Store   *influx.Store
	Batcher *ingest.Batcher

	cfg *config.Config
	rec coremetrics.Recorder
	sub *mqtt.Subscriber
	log logger.Logger
}

// New creates a Service from the configuration and connects the store.
func New(cfg *config.Config) (*Service, error) {
	logger.SetDebug(cfg.Logging.Debug)
	logg := logger.New("service")

	var rec coremetrics.Recorder = coremetrics.NopRecorder{}
	if cfg.Metrics.PrometheusEnabled {
		pr, err := metrics.NewPromRecorder()
		if err != nil {
			return nil, fmt.Errorf("prom recorder: %w", err)
		}
		rec = pr
	}

	store := influx.New(logger.New("influx"), rec)
	if err := store.Connect(&cfg.Influx, cfg.Ingest.DataIntervalSeconds); err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	batcher := ingest.NewBatcher(store, cfg.Ingest, logger.New("ingest"))
	return &Service{Store: store, Batcher: batcher, cfg: cfg, rec: rec, log: logg}, nil
}

// Handler returns the HTTP query API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	tracks.Register(mux, s.Store, s.Store, logger.New("api"))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := s.Store.Ping(pingCtx); err != nil {
		s.log.Warnf("influx health check failed: %v", err)
	}
	cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Batcher.Run(ctx)
		return nil
	})

	if s.cfg.MQTT.Broker != "" {
		sub, err := mqtt.NewSubscriber(s.cfg.MQTT, s.Batcher, s.rec)
		if err != nil {
			s.log.Errorf("mqtt subscriber: %v", err)
		} else {
			s.sub = sub
		}
	}
	if s.cfg.Metrics.PrometheusEnabled {
		g.Go(func() error {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddress); err != nil {
				return fmt.Errorf("prom server: %w", err)
			}
			return nil
		})
	}
	if s.cfg.HTTP.Enabled() {
		srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			s.log.Infof("query API listening on %s", s.cfg.HTTP.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops the subscriber, writes the records still buffered and then
// releases the store.
func (s *Service) Close() error {
	if s.sub != nil {
		s.sub.Disconnect()
		s.sub = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Batcher.Close(ctx)
	s.Store.Disconnect()
	if err != nil {
		return fmt.Errorf("flush pending records: %w", err)
	}
	return nil
}
