package di

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/broadcast"
	domrepo "FinFusion/internal/domain/repository"
	domsvc "FinFusion/internal/domain/service"
	"FinFusion/internal/handler/api"
	"FinFusion/internal/middleware"
	internalrepo "FinFusion/internal/repository"
	"FinFusion/internal/scheduler"
	"FinFusion/internal/services/market"
	"FinFusion/internal/services/sources"
	"FinFusion/internal/usecase"
	"FinFusion/pkg/cache"
	pkgch "FinFusion/pkg/clickhouse"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/metrics"
	"FinFusion/pkg/postgres"
)

const (
	snapshotTable  = "market_snapshots"
	memoryHistory  = 1440
	connectTimeout = 10 * time.Second
)

// ProvideLogger builds the root logger from the log section. With Kafka
// enabled and a logs topic set, repeated errors are aggregated and shipped
// to that topic.
func ProvideLogger(cfg *config.Config, p *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if p != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      p,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

func ProvideMetricsSink(r *metrics.Recorder) domrepo.Metrics { return r }

// ProvideRedis connects to Redis, or returns nil when it is disabled.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis when Redis is enabled and falls
// back to a process-local cache otherwise. Either way backend failures
// degrade to misses.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache, rec *metrics.Recorder, l *applogger.Logger) cache.Service {
	var backend cache.Service
	if rc != nil {
		backend = cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMaxL1TTL(30*time.Second),
		)
	} else {
		backend = cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		)
	}
	return cache.NewResilient(backend, l,
		cache.WithOpTimeout(cfg.Cache.OpTimeout),
		cache.WithErrorHook(rec.RecordCacheError),
	)
}

// ProvidePostgres connects and migrates, or returns nil when disabled.
func ProvidePostgres(cfg *config.Config) (*postgres.Client, error) {
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	opts := []postgres.ClientOption{
		postgres.WithHostDB(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database),
		postgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		postgres.WithSSLMode(cfg.Postgres.SSLMode),
		postgres.WithPool(int32(cfg.Postgres.MaxConns), int32(cfg.Postgres.MinConns)),
	}
	if cfg.Postgres.DSN != "" {
		opts = append(opts, postgres.WithDSN(cfg.Postgres.DSN))
	}
	pg, err := postgres.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := pg.RunMigrations(ctx, internalrepo.Migrations, internalrepo.MigrationsDir); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func ProvideAlertStore(pg *postgres.Client) domrepo.AlertStore {
	if pg == nil {
		return internalrepo.NewMemoryAlertStore()
	}
	return internalrepo.NewPostgresAlertStore(pg.Pool())
}

// ProvideClickHouse connects and creates the snapshot table, or returns nil
// when disabled.
func ProvideClickHouse(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	ch, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := ch.InitSchema(ctx, internalrepo.SnapshotSchema(cfg.ClickHouse.Database, snapshotTable)); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return ch, nil
}

func ProvideSnapshotHistory(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) domrepo.SnapshotHistory {
	if ch == nil {
		return internalrepo.NewMemorySnapshotStore(memoryHistory)
	}
	return internalrepo.NewCHSnapshotStore(ch, cfg.ClickHouse.Database+"."+snapshotTable, l)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

func ProvideAlertEvents(cfg *config.Config, p *pkgkafka.Producer) domrepo.AlertEventPublisher {
	if p == nil || cfg.Kafka.AlertsTopic == "" {
		return internalrepo.NopAlertPublisher{}
	}
	return internalrepo.NewKafkaAlertPublisher(p, cfg.Kafka.AlertsTopic)
}

// ProvideKafkaConsumer returns nil unless Kafka is enabled with a snapshots
// topic to read.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.SnapshotsTopic == "" {
		return nil, nil
	}
	c, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return c, nil
}

func ProvideHub(m domrepo.Metrics) *broadcast.Hub {
	return broadcast.NewHub(m)
}

// ProvideRelay returns nil when Redis is disabled.
func ProvideRelay(cfg *config.Config, hub *broadcast.Hub, rc *cache.RedisCache, l *applogger.Logger) *broadcast.RedisRelay {
	if rc == nil {
		return nil
	}
	return broadcast.NewRedisRelay(hub, rc.Client(), cfg.Redis.Prefix, l)
}

// ProvideBroadcaster publishes through the relay when there is one.
func ProvideBroadcaster(hub *broadcast.Hub, relay *broadcast.RedisRelay) domrepo.Broadcaster {
	if relay != nil {
		return relay
	}
	return hub
}

func ProvideMarket(cfg *config.Config, c cache.Service, history domrepo.SnapshotHistory, m domrepo.Metrics, l *applogger.Logger) *market.Service {
	return market.NewService(c, history,
		market.WithBasePrices(cfg.Market.BasePrices),
		market.WithTTLs(cfg.Market.SnapshotTTL, cfg.Market.OptionsTTL),
		market.WithLogger(l),
		market.WithMetrics(m),
	)
}

func ProvideSentiment(cfg *config.Config) domsvc.SentimentProvider {
	if cfg.Sources.SentimentURL != "" {
		return sources.NewHTTPSentimentProvider(cfg.Sources.SentimentURL, cfg.Sources.SentimentTimeout, cfg.Sources.SentimentRetries)
	}
	return sources.NewGeneratedSentiment(nil)
}

// ProvideAdapters lists the five opinion sources in fusion order.
func ProvideAdapters(cfg *config.Config, c cache.Service, sentiment domsvc.SentimentProvider) []domsvc.SourceAdapter {
	r := sources.NewRand(time.Now().UnixNano())
	return []domsvc.SourceAdapter{
		sources.NewSatelliteAdapter(r),
		sources.NewNewsAdapter(sentiment, sources.Sectors(cfg.Fusion.Sectors)),
		sources.NewOptionsAdapter(c),
		sources.NewWebAdapter(r),
		sources.NewSocialAdapter(r),
	}
}

func ProvideFusionScorer(cfg *config.Config, adapters []domsvc.SourceAdapter, c cache.Service, m domrepo.Metrics, l *applogger.Logger) *usecase.FusionScorer {
	return usecase.NewFusionScorer(adapters, usecase.WeightsFromConfig(cfg.Fusion.Weights), c, m, l,
		cfg.Fusion.ScoreTTL, cfg.Fusion.AdapterTimeout)
}

func ProvideAlertGenerator(cfg *config.Config) *usecase.AlertGenerator {
	return usecase.NewAlertGenerator(sources.Sectors(cfg.Fusion.Sectors), cfg.Alerts.Expiry, usecase.NewAlertID)
}

func ProvideAlertService(
	cfg *config.Config,
	store domrepo.AlertStore,
	bcast domrepo.Broadcaster,
	events domrepo.AlertEventPublisher,
	scorer *usecase.FusionScorer,
	c cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.AlertService {
	return usecase.NewAlertService(store, bcast, events, scorer, c, m, l, usecase.AlertServiceConfig{
		Channel:         cfg.Alerts.Channel,
		PersistAttempts: cfg.Alerts.PersistAttempts,
		PersistBackoff:  cfg.Alerts.PersistBackoff,
		PersistTimeout:  cfg.Alerts.PersistTimeout,
		PublishTimeout:  cfg.Alerts.PublishTimeout,
		Expiry:          cfg.Alerts.Expiry,
		ActiveLimit:     cfg.Alerts.ActiveLimit,
		HistoryLimit:    cfg.Alerts.HistoryLimit,
	})
}

func ProvidePipeline(
	cfg *config.Config,
	mkt *market.Service,
	scorer *usecase.FusionScorer,
	gen *usecase.AlertGenerator,
	alerts *usecase.AlertService,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(cfg.Fusion.Symbols, cfg.Fusion.Workers, mkt, scorer, gen, alerts, m, l)
}

func ProvideSnapshotPipeline(mkt *market.Service, m domrepo.Metrics) *middleware.SnapshotPipeline {
	return middleware.NewSnapshotPipeline(mkt, m,
		middleware.WithMaxRPS(5),
		middleware.WithBufferSize(1000),
		middleware.WithTransform(middleware.NormalizeSymbols),
	)
}

// ProvideSnapshotsHandler returns nil when no snapshots topic is configured.
func ProvideSnapshotsHandler(cfg *config.Config, pipe *middleware.SnapshotPipeline, m domrepo.Metrics) *usecase.KafkaSnapshotsHandler {
	if cfg.Kafka.SnapshotsTopic == "" {
		return nil
	}
	return usecase.NewKafkaSnapshotsHandler(cfg.Kafka.SnapshotsTopic, pipe, m)
}

// Scheduler job names.
const (
	JobMarket  = "market"
	JobFusion  = "fusion"
	JobAlerts  = "alerts"
	JobCleanup = "cleanup"
)

// ProvideScheduler registers the pipeline stages. Only cleanup ignores the
// market calendar. Replicas coordinate through the cache lock.
func ProvideScheduler(cfg *config.Config, p *usecase.Pipeline, c cache.Service, m domrepo.Metrics, l *applogger.Logger) (*scheduler.Scheduler, error) {
	open, _ := config.ParseClock(cfg.Market.Open)
	closeAt, _ := config.ParseClock(cfg.Market.Close)
	cal, err := scheduler.NewCalendar(cfg.Location(), open, closeAt)
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}

	s := scheduler.New(cal,
		scheduler.WithLocker(c, cfg.Scheduler.LockTTL),
		scheduler.WithJobTimeout(cfg.Scheduler.JobTimeout),
		scheduler.WithMetrics(m),
		scheduler.WithLogger(l),
	)
	jobs := []scheduler.Job{
		{Name: JobMarket, Spec: cfg.Scheduler.MarketSpec, Gated: true, Run: p.RunMarket},
		{Name: JobFusion, Spec: cfg.Scheduler.FusionSpec, Gated: true, Run: p.RunFusion},
		{Name: JobAlerts, Spec: cfg.Scheduler.AlertsSpec, Gated: true, Run: p.RunAlerts},
		{Name: JobCleanup, Spec: cfg.Scheduler.CleanupSpec, Run: p.RunCleanup},
	}
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func ProvideWSHandler(cfg *config.Config, hub *broadcast.Hub, l *applogger.Logger) *broadcast.WSHandler {
	return broadcast.NewWSHandler(hub, []string{cfg.Alerts.Channel}, l)
}

// ProvideHTTPServer mounts the REST API and the push endpoint.
func ProvideHTTPServer(
	cfg *config.Config,
	alerts *usecase.AlertService,
	scorer *usecase.FusionScorer,
	mkt *market.Service,
	hub *broadcast.Hub,
	ws *broadcast.WSHandler,
	c cache.Service,
	l *applogger.Logger,
) *xhttp.Server {
	rest := xhttp.Mount(
		api.NewAlertsHandler(alerts, l),
		api.NewFusionHandler(scorer, cfg.Fusion.Symbols, l),
		api.NewMarketHandler(mkt, l),
		api.NewHealthHandler(alerts, hub, l),
	)
	handlers := []xhttp.Handler{rest, ws}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if cfg.RateLimit.Enabled {
		metricsPath := cfg.Metrics.Path
		opts = append(opts, xhttp.WithMiddleware(xhttp.RateLimit(c, xhttp.RateLimitConfig{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
			Skipper: func(ec echo.Context) bool {
				p := ec.Path()
				return p == "/ws" || p == metricsPath
			},
		}, l.Named("ratelimit"))))
	}
	return xhttp.NewServer(handlers, opts...)
}
