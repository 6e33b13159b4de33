package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medspa-sms-triage/internal/api/router"
	"github.com/wolfman30/medspa-sms-triage/internal/classifier"
	appconfig "github.com/wolfman30/medspa-sms-triage/internal/config"
	"github.com/wolfman30/medspa-sms-triage/internal/delivery"
	"github.com/wolfman30/medspa-sms-triage/internal/escalation"
	"github.com/wolfman30/medspa-sms-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-sms-triage/internal/http/middleware"
	"github.com/wolfman30/medspa-sms-triage/internal/interactions"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging/templates"
	"github.com/wolfman30/medspa-sms-triage/internal/notify"
	"github.com/wolfman30/medspa-sms-triage/internal/observability/metrics"
	"github.com/wolfman30/medspa-sms-triage/internal/patients"
	"github.com/wolfman30/medspa-sms-triage/internal/responder"
	"github.com/wolfman30/medspa-sms-triage/internal/scheduling"
	"github.com/wolfman30/medspa-sms-triage/internal/triage"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// Options carries the process-level dependencies the service is built on.
// AWS is nil when no AWS-backed feature is configured.
type Options struct {
	Config *appconfig.Config
	Logger *logging.Logger
	AWS    *aws.Config
	// Sender overrides the outbound SMS provider.
	Sender messaging.Sender
}

// App is the assembled triage service.
type App struct {
	Handler  http.Handler
	Pipeline *triage.Pipeline

	// Interactions and Statuses are exposed for inspection in tests and tools.
	Interactions interactions.Store
	Statuses     delivery.StatusStore

	pool   *pgxpool.Pool
	db     *sql.DB
	redis  *redis.Client
	logger *logging.Logger
}

// stores groups the persistence choices made for one process.
type stores struct {
	directory    patients.Directory
	appointments scheduling.Store
	unsubscribes responder.UnsubscribeStore
	statuses     delivery.StatusStore
	interactions interactions.Store
	clinical     *escalation.ClinicalLogAlerter
}

// NeedsAWS reports whether cfg enables anything backed by an AWS client.
func NeedsAWS(cfg *appconfig.Config) bool {
	switch cfg.ClassifierProvider {
	case ProviderBedrock, ProviderBedrockGemini:
		return true
	}
	return cfg.AlertQueueURL != "" || cfg.DeliveryStatusTable != "" || cfg.InteractionArchive != "" || cfg.SESFromEmail != ""
}

// Build wires every triage component from opts.
func Build(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load clinic timezone %q: %w", cfg.ClinicTimezone, err)
	}
	prices := responder.DefaultPrices()
	if cfg.PriceTableJSON != "" {
		if prices, err = responder.ParsePriceTable(cfg.PriceTableJSON); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	app := &App{logger: logger}
	if !cfg.UseMemoryStores {
		app.pool, app.db, err = ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}
	app.redis = BuildRedisClient(ctx, cfg, logger, true)

	st := app.buildStores(cfg, opts.AWS, loc)
	app.Interactions = st.interactions
	app.Statuses = st.statuses

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	triageMetrics := metrics.NewTriageMetrics(registry)

	rawSender, twilio := opts.Sender, (*messaging.TwilioSender)(nil)
	if rawSender == nil {
		rawSender, twilio = BuildSender(cfg, logger)
	}
	// Staff notifications use the raw sender so their own failures cannot raise delivery alerts.
	notifier := notify.NewService(BuildEmailSender(cfg, opts.AWS, logger), rawSender, notify.Recipients{
		Email:     cfg.AlertEmailRecipients,
		SMS:       cfg.AlertSMSRecipients,
		Operators: cfg.OperatorRecipients,
	}, logger)

	resolver := patients.NewResolver(st.directory, patients.NewBusinessHours(loc), logger)
	dispatcher := escalation.NewDispatcher(escalation.Config{
		Alerter:     BuildAlerter(cfg, notifier, opts.AWS, st.clinical, logger),
		Operator:    notifier,
		Voice:       buildVoiceCaller(cfg, twilio, logger),
		Treatments:  resolver,
		EnableCalls: cfg.EnableEmergencyCalls,
		Timeout:     cfg.AlertTimeout,
		Metrics:     triageMetrics,
		Logger:      logger,
	})

	primary, err := BuildClassifier(ctx, cfg, opts.AWS, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	reply := responder.New(responder.Config{
		Templates:    templates.NewCatalog(templates.NewRenderer(), cfg.ClinicPhone, cfg.ClinicPricingURL, loc),
		Sender:       delivery.NewTrackingSender(rawSender, st.statuses, logger),
		Appointments: st.appointments,
		Availability: scheduling.NewWeeklyAvailability(loc),
		Unsubscribes: st.unsubscribes,
		Prices:       prices,
		Location:     loc,
		SendTimeout:  cfg.SendTimeout,
		Metrics:      triageMetrics,
		Logger:       logger,
	})

	claims := BuildClaimStore(app.redis, cfg, app.pool, logger)
	app.Pipeline = triage.NewPipeline(triage.PipelineDeps{
		Claims:     claims,
		Resolver:   resolver,
		Classifier: primary,
		Fallback:   classifier.NewKeywordClassifier(),
		Dispatcher: dispatcher,
		Responder:  reply,
		Recorder:   interactions.NewRecorder(st.interactions, logger),
		Reconciler: delivery.NewReconciler(st.statuses, claims, dispatcher, triageMetrics, logger),
		Metrics:    triageMetrics,
		Logger:     logger,
	})

	webhook := messaging.NewHandler(messaging.HandlerConfig{
		Verifier:      messaging.Verifier{Production: cfg.IsProduction(), AuthToken: cfg.TwilioAuthToken},
		PublicBaseURL: cfg.PublicBaseURL,
		Processor:     app.Pipeline,
		Metrics:       triageMetrics,
		Logger:        logger,
	})

	var admin *handlers.AdminTriageHandler
	if cfg.AdminJWTSecret != "" {
		admin = handlers.NewAdminTriageHandler(st.interactions, st.statuses, logger)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
	}
	var limiter *httpmiddleware.RateLimiter
	if cfg.WebhookRateLimit > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	}

	app.Handler = router.New(&router.Config{
		Logger:           logger,
		MessagingHandler: webhook,
		AdminHandler:     admin,
		AdminAuthSecret:  cfg.AdminJWTSecret,
		AdminCORSOrigins: cfg.AdminCORSOrigins,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookLimiter:   limiter,
	})
	return app, nil
}

func (a *App) buildStores(cfg *appconfig.Config, awsCfg *aws.Config, loc *time.Location) stores {
	var st stores
	if a.pool == nil {
		a.logger.Warn("using in-memory stores with demo patients; data is lost on restart")
		dir := patients.NewMemoryDirectory()
		dir.SeedDemo(time.Now().In(loc))
		st.directory = dir
		st.appointments = scheduling.NewMemoryStore(dir)
		st.unsubscribes = messaging.NewMemoryUnsubscribes()
		st.statuses = delivery.NewMemoryStatusStore()
		st.interactions = interactions.NewMemoryStore()
	} else {
		msgStore := messaging.NewStore(a.pool)
		st.directory = patients.NewPostgresDirectory(a.pool)
		st.appointments = scheduling.NewPostgresStore(a.pool)
		st.unsubscribes = msgStore
		st.statuses = msgStore
		st.interactions = interactions.NewPostgresStore(a.pool)
		st.clinical = escalation.NewClinicalLogAlerter(a.db)
	}

	if awsCfg != nil && cfg.DeliveryStatusTable != "" {
		a.logger.Info("tracking delivery status in dynamodb", "table", cfg.DeliveryStatusTable)
		st.statuses = delivery.NewDynamoStatusStore(dynamodb.NewFromConfig(*awsCfg), cfg.DeliveryStatusTable)
	}
	if awsCfg != nil && cfg.InteractionArchive != "" {
		a.logger.Info("archiving interactions to s3", "bucket", cfg.InteractionArchive)
		st.interactions = interactions.NewArchivingStore(st.interactions, s3.NewFromConfig(*awsCfg), cfg.InteractionArchive, a.logger)
	}
	return st
}

func buildVoiceCaller(cfg *appconfig.Config, twilio *messaging.TwilioSender, logger *logging.Logger) escalation.VoiceCaller {
	if !cfg.EnableEmergencyCalls {
		return nil
	}
	if twilio == nil || cfg.EmergencyCallTwimlURL == "" {
		logger.Warn("emergency calls enabled but twilio or EMERGENCY_CALL_TWIML_URL is missing; calls disabled")
		return nil
	}
	return messaging.NewTwilioVoiceCaller(twilio, cfg.EmergencyCallTwimlURL)
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
