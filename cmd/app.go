package cmd

import (
	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/cache"
	"example.com/backstage/invoicing/internal/database"
	"example.com/backstage/invoicing/internal/messaging"
	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/recurrence"
	"example.com/backstage/invoicing/internal/repositories"
	"example.com/backstage/invoicing/internal/search"
	"example.com/backstage/invoicing/internal/services"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the wired components shared by every command
type app struct {
	cfg           config.Config
	db            *gorm.DB
	readOnlyDB    *gorm.DB
	cache         *cache.RedisCache
	elasticClient *search.ElasticClient
	metrics       *metrics.Metrics
	tracer        tracing.Tracer

	numbers    *services.NumberingService
	customers  *services.CustomerService
	invoices   *services.InvoiceService
	quotes     *services.QuoteService
	templates  *services.TemplateService
	users      *services.UserService
	recurrence *services.RecurrenceService
}

func newApp(cfg config.Config) (*app, error) {
	collector := metrics.NewMetrics()

	db, readOnlyDB, err := database.Open(cfg.DB, collector)
	if err != nil {
		collector.SetHealth("database", false)
		return nil, err
	}
	collector.SetHealth("database", true)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}
	if cfg.Redis.Enabled {
		collector.SetHealth("redis", redisCache.Enabled())
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewNoopTracer()
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = nil
	}

	sequences := repositories.NewSequenceRepository(db,
		repositories.WithLockTimeout(cfg.DB.LockTimeout),
		repositories.WithMaxRetries(cfg.Numbering.MaxRetries),
	)
	allocator := numbering.NewDocumentNumberAllocator(sequences, cfg.Numbering)
	numbers := services.NewNumberingService(allocator, collector, tracer)

	customers := services.NewCustomerService(db, readOnlyDB, redisCache)
	invoices := services.NewInvoiceService(db, readOnlyDB, customers, numbers, redisCache, elasticClient, tracer)

	runner, err := newRunner(cfg, db, readOnlyDB, numbers, redisCache, elasticClient, collector, tracer)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:           cfg,
		db:            db,
		readOnlyDB:    readOnlyDB,
		cache:         redisCache,
		elasticClient: elasticClient,
		metrics:       collector,
		tracer:        tracer,
		numbers:       numbers,
		customers:     customers,
		invoices:      invoices,
		quotes:        services.NewQuoteService(db, readOnlyDB, customers, numbers, invoices, tracer),
		templates:     services.NewTemplateService(db, readOnlyDB, customers),
		users:         services.NewUserService(db, readOnlyDB),
		recurrence:    services.NewRecurrenceService(runner, tracer),
	}, nil
}

func newRunner(
	cfg config.Config,
	db, readOnlyDB *gorm.DB,
	numbers *services.NumberingService,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) (*recurrence.Runner, error) {
	policy, err := recurrence.ParseCatchUpPolicy(cfg.Recurrence.CatchUp)
	if err != nil {
		return nil, err
	}

	templates := repositories.NewTemplateRepository(db, readOnlyDB)
	engine := recurrence.NewEngine(templates, policy)

	var indexer recurrence.InvoiceIndexer
	if elasticClient.Enabled() {
		indexer = elasticClient
	}
	materializer := recurrence.NewMaterializer(db, engine, templates, repositories.NewInvoiceRepository(db, readOnlyDB), numbers, indexer, tracer)

	var locker recurrence.PassLocker
	if redisCache.Enabled() {
		locker = redisCache
	}

	return recurrence.NewRunner(engine, materializer, locker, recurrence.RunnerOptions{
		Workers:       cfg.Recurrence.Workers,
		CatchUp:       policy,
		BackfillLimit: cfg.Recurrence.BackfillLimit,
		LockTTL:       cfg.Recurrence.LockTTL,
	}, collector, tracer), nil
}

// newBus connects to Service Bus when configured and otherwise falls back to
// an in-process queue, which only reaches consumers in the same process
func newBus(cfg config.Config, source string, collector *metrics.Metrics) (messaging.Dispatcher, messaging.Consumer, error) {
	if cfg.Azure.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus not configured, using in-process command queue")
		bus := messaging.NewLocalBus(16, collector)
		return bus, bus, nil
	}

	bus, err := messaging.NewServiceBus(cfg.Azure, source, collector)
	if err != nil {
		return nil, nil, err
	}
	return bus, bus, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis client")
	}
	a.tracer.Close()
	database.Close(a.db, a.readOnlyDB)
}
