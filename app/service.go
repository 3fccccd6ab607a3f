package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/crewsched/api/schedule"
	"github.com/kilianp07/crewsched/config"
	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/events"
	"github.com/kilianp07/crewsched/core/hq"
	coremetrics "github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
	coremon "github.com/kilianp07/crewsched/core/monitoring"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/core/windows"
	"github.com/kilianp07/crewsched/infra/logger"
	"github.com/kilianp07/crewsched/infra/metrics"
	"github.com/kilianp07/crewsched/infra/monitoring"
	"github.com/kilianp07/crewsched/infra/mqtt"
	"github.com/kilianp07/crewsched/infra/store"
	_ "github.com/kilianp07/crewsched/infra/travel" // registers the "http" provider
	"github.com/kilianp07/crewsched/internal/eventbus"
)

// Service wires the placement engine to persistence, the travel provider,
// metrics, schedule notifications and the HTTP API.
type Service struct {
	cfg        *config.Config
	log        logger.Logger
	store      store.Store
	resolver   *travel.Resolver
	controller *commit.Controller
	lanes      *windows.LaneCache
	api        *schedule.Handler
	notifier   *mqtt.Notifier
	sink       coremetrics.MetricsSink

	commits    *eventbus.Bus[events.CommitEvent]
	laneEvents *eventbus.Bus[events.LaneWindowsUpdated]
	lookups    *eventbus.Bus[events.TravelResolved]

	// bg outlives requests; background prefetches run under it.
	bg     context.Context
	cancel context.CancelFunc
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	bg, cancel := context.WithCancel(context.Background())
	svc := &Service{
		cfg:        cfg,
		log:        logg,
		commits:    eventbus.New[events.CommitEvent](),
		laneEvents: eventbus.New[events.LaneWindowsUpdated](),
		lookups:    eventbus.New[events.TravelResolved](),
		bg:         bg,
		cancel:     cancel,
	}
	if err := svc.init(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init() error {
	cfg := s.cfg
	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s.store = st
	if cfg.Store.JobsFile != "" {
		if err := store.SeedJobs(s.bg, st, cfg.Store.JobsFile); err != nil {
			return fmt.Errorf("seed jobs: %w", err)
		}
	}
	jobs, err := st.Jobs(s.bg)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	s.sink = sink

	provider, err := travel.NewProvider(cfg.Travel.Provider)
	if err != nil {
		return fmt.Errorf("travel provider: %w", err)
	}
	s.resolver, err = travel.NewResolver(provider, travel.Options{
		Concurrency: cfg.Travel.Concurrency,
		Timeout:     cfg.Travel.Timeout(),
		RetryAfter:  cfg.Travel.RetryAfter(),
		Logger:      logger.New("travel"),
		Metrics:     sink,
		Bus:         s.lookups,
	})
	if err != nil {
		return err
	}
	s.lanes = windows.NewLaneCache(s.bg, s.resolver, logger.New("windows"), s.laneEvents)

	workday := cfg.Workday.Minutes()
	hqAddr := cfg.Workday.HQ()
	s.controller = commit.NewController(commit.NewCollection(nil), st, commit.Config{
		WorkdayMinutes: workday,
		Grid:           cfg.Workday.GridMinutes,
		HQ:             hqAddr,
	}, commit.Options{
		Travel:   s.resolver,
		Jobs:     jobs,
		HQ:       hq.NewValidator(s.resolver, jobs, hqAddr, workday),
		Windows:  s.lanes,
		Logger:   logger.New("commit"),
		Metrics:  sink,
		Bus:      s.commits,
		Prefetch: s.resolver,
	})

	s.api, err = schedule.NewHandler(schedule.Config{
		WorkdayMinutes: workday,
		Grid:           cfg.Workday.GridMinutes,
		HQ:             hqAddr,
	}, s.controller, s.controller.Collection(), schedule.Options{
		Travel:  s.resolver,
		Jobs:    jobs,
		Windows: s.lanes,
		Logger:  logger.New("api"),
	})
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	s.api.RegisterRoutes()

	if cfg.MQTT.Enabled() {
		s.notifier, err = mqtt.NewNotifier(cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return fmt.Errorf("mqtt notifier: %w", err)
		}
	}
	s.log.Infof("service ready: %d jobs, workday %s-%s, provider %s",
		len(jobs), cfg.Workday.Start, cfg.Workday.End, cfg.Travel.Provider.Type)
	return nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.api.Mux }

// Controller returns the commit controller.
func (s *Service) Controller() *commit.Controller { return s.controller }

// Today is the current day in the organization's timezone.
func (s *Service) Today() model.DayKey {
	return model.DayKeyFor(time.Now(), s.cfg.Workday.Location())
}

// Run loads today's schedule, starts the background consumers and serves
// the API until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.controller.Reconcile(ctx, s.Today()); err != nil {
		return err
	}
	metrics.StartEventCollector(ctx, s.laneEvents, metrics.LaneRecorder(s.sink))
	go s.watchTravel(ctx, s.lookups.Subscribe())
	if s.notifier != nil {
		go s.notifier.Run(ctx, s.commits.Subscribe())
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Address, Handler: s.api.Mux, ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infof("api listening on %s", s.cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.API.ShutdownSeconds)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// watchTravel logs lookups that left a leg undeterminable.
func (s *Service) watchTravel(ctx context.Context, ch <-chan events.TravelResolved) {
	defer s.lookups.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !ev.Known {
				s.log.Warnf("travel %s -> %s unknown after %s: %v", ev.Origin, ev.Destination, ev.Latency, ev.Err)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.cancel()
	if s.lanes != nil {
		s.lanes.Wait()
	}
	s.commits.Close()
	s.laneEvents.Close()
	s.lookups.Close()
	if s.notifier != nil {
		s.notifier.Disconnect()
	}
	metrics.CloseSinks(s.sink)
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(err, logger.Close())
}
