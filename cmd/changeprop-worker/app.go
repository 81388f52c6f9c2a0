package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	redisclient "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"changeprop/internal/adminapi"
	"changeprop/internal/audit"
	"changeprop/internal/config"
	"changeprop/internal/constants"
	"changeprop/internal/executor"
	"changeprop/internal/logger"
	"changeprop/internal/rulesource"
	"changeprop/pkg/bootstrap"
	"changeprop/pkg/dedupwindow"
	"changeprop/pkg/health"
	"changeprop/pkg/httpclient"
	"changeprop/pkg/jsonschema"
	"changeprop/pkg/match"
	"changeprop/pkg/metrics"
	"changeprop/pkg/models"
	"changeprop/pkg/tracing"
)

// App wires every collaborator a changeprop-worker instance needs and
// owns their startup/shutdown order, grounded on the teacher's
// cmd/filtering-service.App (a Kafka consumer worker with an attached
// HTTP surface, the closest analog to this service's shape).
type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redisclient.Client
	tracerProvider *tracing.TracerProvider

	evaluator match.Evaluator
	source    rulesource.Source
	manager   *rulesource.Manager
	dedup     dedupwindow.Window
	executor  *executor.Executor
	admin     *adminapi.Server

	consumeDC string
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("changeprop-worker")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRuleSource(ctx); err != nil {
		return fmt.Errorf("failed to initialize rule source: %w", err)
	}

	if err := a.initExecutor(); err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "changeprop-worker")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterExecutorMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDedupWindowMetrics()
	metrics.RegisterFallbackMetrics()
	metrics.RegisterAdminMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.db != nil {
		metrics.RegisterDatabaseMetrics()
	}

	if err := a.initAdminAPI(); err != nil {
		return fmt.Errorf("failed to initialize admin API: %w", err)
	}

	a.consumeDC = resolveDC(a.Config.Broker.Kafka.ConsumeDC, a.Config.Broker.Kafka.DCName)

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient
	return nil
}

func (a *App) initRuleSource(ctx context.Context) error {
	evaluator, err := match.NewCELEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build match evaluator: %w", err)
	}
	a.evaluator = evaluator

	var source rulesource.Source
	switch a.Config.RuleSource.Type {
	case "postgres":
		if a.db == nil {
			return fmt.Errorf("rule_source.type is postgres but database.postgres is not configured")
		}
		source = rulesource.NewPostgresSource(a.db)
	default:
		source = rulesource.NewFileSource(a.Config.RuleSource.FilePath)
	}
	a.source = source
	a.manager = rulesource.NewManager(source, evaluator, a.Logger)
	return nil
}

func (a *App) initExecutor() error {
	doc, err := a.source.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load initial rule document: %w", err)
	}
	registry, err := rulesource.Build(doc, a.evaluator)
	if err != nil {
		return fmt.Errorf("failed to compile initial rule registry: %w", err)
	}

	onRedisError := dedupwindow.OnErrorAllow
	if strings.EqualFold(a.Config.DedupWindow.OnRedisError, "deny") {
		onRedisError = dedupwindow.OnErrorDeny
	}
	ttlSeconds := a.Config.DedupWindow.TTLSeconds
	if ttlSeconds == 0 {
		ttlSeconds = constants.DefaultRetryDelayMs / 1000
	}
	a.dedup = dedupwindow.New(a.redisClient, time.Duration(ttlSeconds)*time.Second, onRedisError)

	var validator *jsonschema.Validator
	if a.Config.SchemaValidate.Enabled {
		validator = jsonschema.New()
	}

	auditLogger := audit.New(a.db)

	produceDC := resolveDC(a.Config.Broker.Kafka.ProduceDC, a.Config.Broker.Kafka.DCName)
	emitterID := a.Config.Broker.Kafka.GroupID

	a.executor = executor.New(
		registry,
		httpclient.New(),
		a.Producer,
		a.dedup,
		validator,
		auditLogger,
		a.Logger,
		emitterID,
		produceDC,
		a.Config.CircuitBreaker,
	)
	a.manager.Register(a.executor)
	return nil
}

func (a *App) initAdminAPI() error {
	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	healthRegistry.Register(health.NewBrokerChecker(a.Config.Broker.Kafka.MetadataBrokerList))

	handler := adminapi.NewHandler(
		a.executor,
		a.executor,
		a.dedup,
		a.manager,
		healthRegistry,
		a.Logger,
	)
	a.admin = adminapi.NewServer(a.Config.Server.Port, handler, a.Config.Admin.RateLimit, a.Logger)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.admin.Run(gCtx)
	})

	registry := a.executor.Registry()

	for _, topic := range registry.Topics() {
		sourceTopic := a.consumeDC + "." + topic
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "starting source topic consumer", "topic", sourceTopic)
			return a.Consumer.Consume(gCtx, sourceTopic, a.executor.ExecuteTopic)
		})
	}

	for _, name := range registry.Names() {
		ruleName := name
		retryTopic := models.RetryTopicName(ruleName)
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "starting retry topic consumer", "topic", retryTopic)
			return a.Consumer.Consume(gCtx, retryTopic, a.retryHandler(ruleName))
		})
	}

	if a.Config.RuleSource.ConfigUpdateTopic != "" {
		reloadHandler := rulesource.NewReloadHandler(a.manager, a.Logger)
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "starting rule config update consumer", "topic", a.Config.RuleSource.ConfigUpdateTopic)
			return a.Consumer.Consume(gCtx, a.Config.RuleSource.ConfigUpdateTopic, reloadHandler.Handle)
		})
	}

	return g.Wait()
}

// retryHandler decodes the retry envelope a retry topic message
// carries back out of the generic *models.Event the consumer decodes
// every message into (round-tripping through Event's own JSON codec,
// which keeps every field the envelope needs in Extra), waits until
// the envelope's not_before time, then re-enters the executor.
func (a *App) retryHandler(ruleName string) func(ctx context.Context, event *models.Event) error {
	return func(ctx context.Context, event *models.Event) error {
		body, err := event.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to re-encode retry envelope: %w", err)
		}
		var env models.RetryEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("failed to decode retry envelope: %w", err)
		}

		if err := waitUntil(ctx, env.NotBefore); err != nil {
			return err
		}

		return a.executor.ExecuteRetry(ctx, ruleName, env)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "shutting down changeprop worker")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.admin != nil {
			if err := a.admin.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("admin API shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

// waitUntil blocks until t, or returns early if ctx is cancelled first.
// A retry envelope's not_before is computed at schedule time (spec.md
// §4.7 "delay before resubmission"); this is where that delay is
// actually honored, since the bus itself has no delayed-delivery
// primitive.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveDC implements spec.md §6's datacenter fallback: a dedicated
// consume/produce datacenter if set, else dc_name, else the default.
func resolveDC(specific, dcName string) string {
	if specific != "" {
		return specific
	}
	if dcName != "" {
		return dcName
	}
	return constants.DefaultDatacenter
}
