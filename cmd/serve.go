package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/api"
	"example.com/coastwatch/internal/api/handlers"
	"example.com/coastwatch/internal/cache"
	"example.com/coastwatch/internal/catalog"
	"example.com/coastwatch/internal/database"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/maintenance"
	"example.com/coastwatch/internal/messaging"
	"example.com/coastwatch/internal/metrics"
	"example.com/coastwatch/internal/notify"
	"example.com/coastwatch/internal/registry"
	"example.com/coastwatch/internal/repositories"
	"example.com/coastwatch/internal/search"
	"example.com/coastwatch/internal/spatial"
	"example.com/coastwatch/internal/storage"
	"example.com/coastwatch/internal/stream"
	"example.com/coastwatch/internal/synth"
	"example.com/coastwatch/internal/threshold"
	"example.com/coastwatch/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telemetry stream and HTTP API",
	Long:  `Start one stream per configured device, the alert dispatcher, the optional hub consumers and the HTTP API`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	collector := metrics.NewCollector()

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}
	defer tracer.Close()

	zones, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	rules := cfg.AlertRules
	if len(rules) == 0 {
		rules = threshold.DefaultRules()
	}
	engine, err := threshold.NewEngine(rules)
	if err != nil {
		return err
	}

	sink, err := messaging.NewAlertSink(cfg.Azure)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sink, collector, notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
		Timeout:   cfg.Notify.Timeout,
	})
	defer dispatcher.Close()

	broadcast := hub.New(collector)
	manager, err := stream.NewManager(stream.Options{
		Registry:    registry.New(),
		Synthesizer: synth.New(nil),
		Evaluator:   engine,
		Hub:         broadcast,
		Alerts:      dispatcher,
		Recorder:    collector,
		Tracer:      tracer,
		StopTimeout: cfg.Stream.StopTimeout,
	})
	if err != nil {
		return err
	}

	for _, device := range cfg.DeviceConfigs(time.Now().UTC()) {
		if err := manager.Register(device); err != nil {
			return errors.Wrapf(err, "failed to register device %s", device.ID)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{})
	}
	defer redisCache.Close()
	if redisCache.Enabled() {
		forward(g, gctx, broadcast, cfg.Stream.SubscriberBuffer, "redis", redisCache.Handle)
	}

	if cfg.Influx.Enabled {
		recorder := storage.NewInfluxRecorder(cfg.Influx)
		defer recorder.Close()
		forward(g, gctx, broadcast, cfg.Stream.SubscriberBuffer, "influx", recorder.Handle)
	}

	if cfg.NATS.Enabled {
		bridge, err := messaging.NewNATSBridge(cfg.NATS)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without the envelope bridge")
		} else {
			defer bridge.Close()
			forward(g, gctx, broadcast, cfg.Stream.SubscriberBuffer, "nats", bridge.Handle)
		}
	}

	var indexer handlers.ClusterIndexer
	if cfg.Elastic.Enabled {
		elasticClient, err := search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		} else {
			indexer = elasticClient
		}
	}

	var history handlers.ServiceHistory
	if cfg.DB.Enabled {
		db, err := database.Connect(cfg.DB)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to service record database, continuing without sync")
		} else {
			defer db.Close()
			repo := repositories.NewServiceRecordRepository(db.DB())
			history = repo
			syncer := maintenance.NewSyncer(repo, manager)
			g.Go(func() error {
				return runServiceSync(gctx, syncer, cfg.DB.SyncInterval)
			})
		}
	}

	server := api.NewServer(cfg, api.Dependencies{
		Devices:   manager,
		Hub:       broadcast,
		Analyzer:  spatial.NewAnalyzer(zones),
		Clusterer: spatial.NewClusterer(nil),
		Cache:     redisCache,
		History:   history,
		Indexer:   indexer,
		Metrics:   collector,
		Tracer:    tracer,
	})

	manager.Start()

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		if err := manager.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Stream shutdown error")
		}
		return dispatcher.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service error")
		return err
	}

	log.Info().Msg("Service shut down gracefully")
	return nil
}

// forward runs a hub consumer in the group until the hub closes
func forward(g *errgroup.Group, ctx context.Context, h *hub.Hub, buffer int, name string, fn func(context.Context, hub.Message) error) {
	log.Info().Str("consumer", name).Msg("Hub consumer attached")
	g.Go(func() error {
		return hub.Forward(ctx, h, buffer, name, fn)
	})
}

// runServiceSync pulls service dates on an interval until ctx ends
func runServiceSync(ctx context.Context, syncer *maintenance.Syncer, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(syncer.Run, ctx),
		gocron.WithName("service-date-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()
	return scheduler.Shutdown()
}

// configureLogging applies the configured level and output format
func configureLogging(cfg config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Environment != "development" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
