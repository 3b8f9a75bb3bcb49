package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domrepo "MarketSnap/internal/domain/repository"
	domsvc "MarketSnap/internal/domain/service"
	"MarketSnap/internal/handler/api"
	"MarketSnap/internal/repository"
	"MarketSnap/internal/service/ratelimit"
	"MarketSnap/internal/service/static"
	"MarketSnap/internal/service/yahoo"
	"MarketSnap/internal/usecase"
	pkgcache "MarketSnap/pkg/cache"
	pkgch "MarketSnap/pkg/clickhouse"
	"MarketSnap/pkg/config"
	xhttp "MarketSnap/pkg/http"
	pkgkafka "MarketSnap/pkg/kafka"
	applogger "MarketSnap/pkg/logger"
	pkgmetrics "MarketSnap/pkg/metrics"
	"MarketSnap/pkg/queue"
	"MarketSnap/pkg/server"
	pkgsqlite "MarketSnap/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger creates the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus recorder, or a no-op one when metrics are off.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return pkgmetrics.Nop{}
	}
	return pkgmetrics.New(prometheus.DefaultRegisterer)
}

// Store is the opened snapshot database and the table names inside it.
type Store struct {
	DB     *sql.DB
	Driver string
	Tables repository.Tables
	health func(ctx context.Context) error
}

// Health pings the underlying database.
func (s *Store) Health(ctx context.Context) error { return s.health(ctx) }

// ProvideStore opens the configured driver and creates the tables.
func ProvideStore(cfg *config.Config, l *applogger.Logger) (*Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	tables := repository.Tables{
		Fundamentals: cfg.Storage.Tables.Fundamentals,
		Technicals:   cfg.Storage.Tables.Technicals,
		Positions:    cfg.Storage.Tables.Positions,
	}

	switch cfg.Storage.Driver {
	case repository.DriverClickHouse:
		// Connect to the default database so the target one can be created.
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase("default"),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		db := cfg.ClickHouse.Database
		tables = repository.Tables{
			Fundamentals: db + "." + tables.Fundamentals,
			Technicals:   db + "." + tables.Technicals,
			Positions:    db + "." + tables.Positions,
		}
		stmts, err := repository.Schema(repository.DriverClickHouse, tables)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		stmts = append([]string{"CREATE DATABASE IF NOT EXISTS " + db}, stmts...)
		if err := client.InitSchema(ctx, stmts); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		l.Info("clickhouse ready",
			applogger.String("host", cfg.ClickHouse.Host),
			applogger.String("database", db))
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close failed", applogger.Error(err))
			}
		}
		return &Store{DB: client.DB(), Driver: repository.DriverClickHouse, Tables: tables, health: client.Health}, cleanup, nil

	case repository.DriverSQLite:
		client, err := pkgsqlite.NewClient(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite client: %w", err)
		}
		stmts, err := repository.Schema(repository.DriverSQLite, tables)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := client.InitSchema(ctx, stmts); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("sqlite schema: %w", err)
		}
		l.Info("sqlite ready", applogger.String("path", cfg.Storage.SQLitePath))
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("sqlite close failed", applogger.Error(err))
			}
		}
		return &Store{DB: client.DB(), Driver: repository.DriverSQLite, Tables: tables, health: client.Health}, cleanup, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

func repoOptions(cfg *config.Config, l *applogger.Logger) []repository.Option {
	return []repository.Option{
		repository.WithLogger(l),
		repository.WithQueryTimeout(cfg.Storage.QueryTimeout),
	}
}

func ProvideFundamentalsRepository(store *Store, cfg *config.Config, l *applogger.Logger) domrepo.FundamentalsRepository {
	return repository.NewSQLFundamentalsRepository(store.DB, store.Tables.Fundamentals, repoOptions(cfg, l)...)
}

func ProvideTechnicalsRepository(store *Store, cfg *config.Config, l *applogger.Logger) domrepo.TechnicalsRepository {
	return repository.NewSQLTechnicalsRepository(store.DB, store.Tables.Technicals, repoOptions(cfg, l)...)
}

func ProvidePortfolioRepository(store *Store, cfg *config.Config, l *applogger.Logger) domrepo.PortfolioRepository {
	return repository.NewSQLPortfolioRepository(store.DB, store.Tables.Positions, repoOptions(cfg, l)...)
}

// ProvideFundamentalsSource loads the fundamentals seed file.
func ProvideFundamentalsSource(cfg *config.Config, l *applogger.Logger) (domsvc.FundamentalsProvider, error) {
	p, err := static.LoadFundamentals(cfg.Seeds.Fundamentals)
	if err != nil {
		return nil, fmt.Errorf("fundamentals seeds: %w", err)
	}
	l.Info("fundamentals seeds loaded", applogger.Int("symbols", p.Len()))
	return p, nil
}

// ProvideTechnicalsSource loads the technicals seed file.
func ProvideTechnicalsSource(cfg *config.Config, l *applogger.Logger) (domsvc.TechnicalsProvider, error) {
	p, err := static.LoadTechnicals(cfg.Seeds.Technicals)
	if err != nil {
		return nil, fmt.Errorf("technicals seeds: %w", err)
	}
	l.Info("technicals seeds loaded", applogger.Int("symbols", p.Len()))
	return p, nil
}

func ProvideHistorySource(cfg *config.Config, l *applogger.Logger) domsvc.HistoryProvider {
	return yahoo.New(yahoo.Config{
		BaseURL:       cfg.History.BaseURL,
		Timeout:       cfg.History.Timeout,
		RatePerSecond: cfg.History.RatePerSecond,
		Burst:         cfg.History.Burst,
		UserAgent:     cfg.History.UserAgent,
	}, l)
}

func ProvideTimeframePolicy(cfg *config.Config) (domrepo.TimeframePolicy, error) {
	p, err := domrepo.NewTimeframePolicy(cfg.Market.AllowedTimeframes, cfg.Market.DefaultTimeframe)
	if err != nil {
		return domrepo.TimeframePolicy{}, fmt.Errorf("timeframe policy: %w", err)
	}
	return p, nil
}

// ProvideCache returns Redis when enabled, otherwise a process-local cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		c := pkgcache.NewMemoryCache()
		return c, func() { _ = c.Close() }, nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 5*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	cleanup := func() {
		if err := c.Close(); err != nil {
			l.Warn("redis close failed", applogger.Error(err))
		}
	}
	return c, cleanup, nil
}

// ProvideKafkaProducer creates a Kafka producer. It is nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close failed", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

func ProvideSnapshotUseCase(
	cfg *config.Config,
	fundRepo domrepo.FundamentalsRepository,
	techRepo domrepo.TechnicalsRepository,
	fundSrc domsvc.FundamentalsProvider,
	techSrc domsvc.TechnicalsProvider,
	timeframes domrepo.TimeframePolicy,
	locks pkgcache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *usecase.SnapshotUseCase {
	policy := usecase.SnapshotPolicy{
		Timeframes:        timeframes,
		FundamentalsFresh: usecase.Staleness{Months: cfg.Market.FundamentalsStaleMonths},
		TechnicalsFresh:   usecase.Staleness{Days: cfg.Market.TechnicalsStaleDays},
		AppendLockTTL:     cfg.Market.AppendLockTTL,
	}
	return usecase.NewSnapshotUseCase(fundRepo, techRepo, fundSrc, techSrc, policy,
		usecase.WithAppendGuard(locks),
		usecase.WithSnapshotMetrics(metrics),
		usecase.WithSnapshotLogger(l),
	)
}

func ProvideHistoryUseCase(src domsvc.HistoryProvider, metrics domrepo.Metrics, l *applogger.Logger) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(src, metrics, l)
}

func ProvideAnalysisUseCase(cfg *config.Config, positions domrepo.PortfolioRepository, snapshots *usecase.SnapshotUseCase, l *applogger.Logger) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(positions, snapshots, cfg.Market.WeakestLimit, l)
}

func ProvideRefresher(
	fundRepo domrepo.FundamentalsRepository,
	techRepo domrepo.TechnicalsRepository,
	fundSrc domsvc.FundamentalsProvider,
	techSrc domsvc.TechnicalsProvider,
	timeframes domrepo.TimeframePolicy,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Refresher {
	return usecase.NewRefresher(fundRepo, techRepo, fundSrc, techSrc, timeframes, metrics, l)
}

// RefreshPipeline is the producer side of refresh jobs plus the worker that
// consumes them.
type RefreshPipeline struct {
	Dispatcher domsvc.RefreshDispatcher
	Worker     server.Component
}

// ProvideRefreshPipeline selects the refresh transport named by refresh.dispatcher.
func ProvideRefreshPipeline(
	cfg *config.Config,
	cache pkgcache.Service,
	producer *pkgkafka.Producer,
	refresher *usecase.Refresher,
	l *applogger.Logger,
) (*RefreshPipeline, error) {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Refresh.Workers,
		QueueSize:  cfg.Refresh.QueueSize,
		RetryLimit: cfg.Refresh.RetryLimit,
		RetryDelay: cfg.Refresh.RetryDelay,
		JobTimeout: cfg.Refresh.JobTimeout,
	}

	switch cfg.Refresh.Dispatcher {
	case "local":
		q := queue.NewMemoryQueue(l, qcfg)
		q.RegisterJob(usecase.NewRefreshQueueJob(refresher))
		return &RefreshPipeline{
			Dispatcher: usecase.NewQueueDispatcher("local", q),
			Worker:     server.NewComponent("refresh-queue", q.Start, q.Stop),
		}, nil

	case "redis":
		rc, ok := cache.(*pkgcache.RedisCache)
		if !ok {
			return nil, fmt.Errorf("refresh dispatcher redis requires the redis cache")
		}
		q := queue.NewRedisQueue(l, qcfg, rc.Client(), queue.ModeProducerConsumer,
			queue.WithKeyPrefix(pkgcache.Key(cfg.Redis.Prefix, "refresh")))
		q.RegisterJob(usecase.NewRefreshQueueJob(refresher))
		return &RefreshPipeline{
			Dispatcher: usecase.NewQueueDispatcher("redis", q),
			Worker:     server.NewComponent("refresh-queue", q.Start, q.Stop),
		}, nil

	case "kafka":
		if producer == nil {
			return nil, fmt.Errorf("refresh dispatcher kafka requires kafka.brokers")
		}
		consumer, err := pkgkafka.NewConsumer(
			pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
			pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
			pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
			pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
			pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
			pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
			pkgkafka.WithConsumerLogger(l),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.RegisterHandler(usecase.NewRefreshKafkaHandler(cfg.Refresh.Topic, refresher))
		consumer.WithConsumerHook(pkgkafka.LoggingHook{Log: l})
		return &RefreshPipeline{
			Dispatcher: usecase.NewKafkaDispatcher(producer, cfg.Refresh.Topic),
			Worker:     server.NewComponent("refresh-consumer", consumer.Start, consumer.Stop),
		}, nil
	}
	return nil, fmt.Errorf("unsupported refresh dispatcher %q", cfg.Refresh.Dispatcher)
}

func ProvideRefreshUseCase(cfg *config.Config, pipeline *RefreshPipeline, l *applogger.Logger) *usecase.RefreshUseCase {
	return usecase.NewRefreshUseCase(pipeline.Dispatcher, cfg.Market.Watchlist, l)
}

func ProvideRefreshScheduler(cfg *config.Config, refresh *usecase.RefreshUseCase, l *applogger.Logger) (*usecase.RefreshScheduler, error) {
	return usecase.NewRefreshScheduler(cfg.Refresh.Schedule, refresh, cfg.Refresh.JobTimeout, l)
}

// ProvideRefreshLimiter guards POST /market/refresh with the shared counters.
func ProvideRefreshLimiter(cfg *config.Config, counters pkgcache.Service, l *applogger.Logger) *ratelimit.Limiter {
	return ratelimit.New(counters, "refresh", cfg.Refresh.RateLimit.Requests, cfg.Refresh.RateLimit.Window, l)
}

func ProvideMarketHandler(
	l *applogger.Logger,
	snapshots *usecase.SnapshotUseCase,
	history *usecase.HistoryUseCase,
	analysis *usecase.AnalysisUseCase,
	refresh *usecase.RefreshUseCase,
	limiter *ratelimit.Limiter,
) *api.MarketHandler {
	return api.NewMarketHandler(l, snapshots, history, analysis, refresh, limiter.Middleware(nil))
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, market *api.MarketHandler, store *Store) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
		xhttp.WithHealthCheck(store.Health),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, cfg.Metrics.SlowThreshold))
	}
	return xhttp.NewServer([]xhttp.Handler{market}, opts...)
}

// ProvideApp assembles the background components around the HTTP server.
// When logging.collector_topic is set, error logs are aggregated and shipped
// to Kafka for the lifetime of the app.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	pipeline *RefreshPipeline,
	scheduler *usecase.RefreshScheduler,
	producer *pkgkafka.Producer,
) *server.App {
	components := []server.Component{pipeline.Worker}

	if cfg.Logging.CollectorTopic != "" && producer != nil {
		components = append(components, server.NewComponent("log-collector",
			func() error {
				l.AddCollector(&applogger.CollectionConfig{
					TimeInterval:   cfg.Logging.CollectorInterval,
					CountThreshold: 100,
					Topic:          cfg.Logging.CollectorTopic,
					Publisher:      producer,
					PublishTimeout: 5 * time.Second,
				})
				return nil
			},
			func(context.Context) error {
				l.RemoveCollector()
				return nil
			}))
	}

	if scheduler.Enabled() {
		components = append(components, server.NewComponent("refresh-scheduler",
			func() error {
				scheduler.Start()
				return nil
			},
			func(ctx context.Context) error {
				scheduler.Stop(ctx)
				return nil
			}))
	}

	return server.New(srv, l, cfg.Server.ShutdownTimeout, components...)
}
