package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking/internal/api/router"
	"github.com/wolfman30/clinic-booking/internal/audit"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/coupons"
	"github.com/wolfman30/clinic-booking/internal/doctors"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/internal/holidays"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/realtime"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// API is the fully wired HTTP application plus the background loops it owns.
type API struct {
	Handler   http.Handler
	Doctors   *doctors.Service
	Bookings  *bookings.Service
	Processed events.ProcessedTracker
	// Queue is set when booking events leave the process. With
	// USE_MEMORY_QUEUE the caller runs the notification consumer on it.
	Queue events.Queue
	AWS   *aws.Config

	deliverer *events.Deliverer
	closers   []func()
}

// Start runs background loops until ctx is cancelled.
func (a *API) Start(ctx context.Context) {
	if a.deliverer != nil {
		go a.deliverer.Start(ctx)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *API) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type storage struct {
	doctors  doctors.Repository
	holidays holidays.Repository
	coupons  coupons.Repository
	bookings bookings.Store
}

// BuildAPI connects every configured backend and assembles the router.
func BuildAPI(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*API, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app := &API{}
	fail := func(err error) (*API, error) {
		app.Close()
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: clinic timezone %q: %w", cfg.ClinicTimezone, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	pool, sqlDB, err := ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		app.closers = append(app.closers, func() { _ = sqlDB.Close(); pool.Close() })
	}

	if needsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("bootstrap: load aws config: %w", err))
		}
		app.AWS = &awsCfg
	}

	store, mongoClient, err := buildStorage(ctx, cfg, app.AWS, logger)
	if err != nil {
		return fail(err)
	}
	if mongoClient != nil {
		app.closers = append(app.closers, func() { _ = mongoClient.Disconnect(context.Background()) })
	}

	switch {
	case cfg.UseMemoryQueue:
		app.Queue = events.NewMemoryQueue(256)
	case cfg.EventsQueueURL != "":
		app.Queue = events.NewSQSQueue(sqs.NewFromConfig(*app.AWS), cfg.EventsQueueURL)
	}

	var publisher events.Publisher
	switch {
	case pool != nil:
		outbox := events.NewOutboxStore(pool)
		publisher = events.NewOutboxPublisher(outbox)
		if app.Queue != nil {
			app.deliverer = events.NewDeliverer(outbox, events.NewQueueForwarder(app.Queue), logger).
				WithBatchSize(int32(cfg.OutboxBatchSize)).
				WithInterval(cfg.OutboxPollInterval)
		} else {
			logger.Warn("outbox enabled without a queue; events stay pending")
		}
	case app.Queue != nil:
		publisher = events.NewDirectPublisher(app.Queue)
	}

	var recorder audit.Recorder = audit.NopRecorder{}
	var auditHandler *audit.Handler
	if sqlDB != nil {
		auditSvc := audit.NewService(sqlDB, logger)
		recorder = auditSvc
		auditHandler = audit.NewHandler(auditSvc, logger)
	}

	hub := realtime.NewHub(cfg.CORSAllowedOrigins, logger)
	slotChanges := events.NewSlotChangePublisher(publisher, logger, hub)

	doctorOpts := []doctors.ServiceOption{doctors.WithAudit(recorder), doctors.WithNotifier(slotChanges)}
	if cfg.DoctorPhotosBucket != "" {
		doctorOpts = append(doctorOpts, doctors.WithPhotoStore(doctors.NewS3PhotoStore(
			s3.NewFromConfig(*app.AWS), cfg.DoctorPhotosBucket, cfg.AWSRegion, "",
		)))
	}
	doctorSvc := doctors.NewService(store.doctors, logger, doctorOpts...)
	app.Doctors = doctorSvc

	holidaySvc := holidays.NewService(store.holidays, logger,
		holidays.WithAudit(recorder),
		holidays.WithNotifier(slotChanges),
		holidays.WithDoctorLookup(doctorSvc),
	)

	resolver := availability.NewService(doctorSvc, holidaySvc, bookings.NewSlotSource(store.bookings),
		availability.WithLogger(logger),
		availability.WithMetrics(metrics.NewAvailabilityMetrics(reg)),
		availability.WithRetry(cfg.ReadRetryAttempts, cfg.ReadRetryBaseDelay),
		availability.WithLocation(loc),
	)

	couponSvc := coupons.NewService(store.coupons, logger, coupons.WithAudit(recorder))

	bookingOpts := []bookings.ServiceOption{
		bookings.WithCoupons(couponSvc),
		bookings.WithLocker(buildLocker(redisClient, cfg)),
		bookings.WithPublisher(publisher),
		bookings.WithNotifier(slotChanges),
		bookings.WithAudit(recorder),
		bookings.WithMetrics(metrics.NewBookingMetrics(reg)),
		bookings.WithCurrency(cfg.Currency),
	}
	gateway, webhookSecret := buildGateway(cfg, logger)
	if gateway != nil {
		bookingOpts = append(bookingOpts, bookings.WithGateway(gateway))
		if redisClient != nil {
			bookingOpts = append(bookingOpts, bookings.WithVelocity(payments.NewVelocityChecker(redisClient, payments.VelocityConfig{
				MaxCheckoutsPerPatient: cfg.CheckoutMaxAttempts,
				CheckoutWindow:         cfg.CheckoutWindow,
			}, logger)))
		}
	}
	bookingSvc := bookings.NewService(store.bookings, resolver, doctorSvc, logger, bookingOpts...)
	app.Bookings = bookingSvc

	app.Processed = BuildProcessedTracker(redisClient, pool)
	var webhook *payments.WebhookHandler
	if webhookSecret != "" {
		webhook = payments.NewWebhookHandler(webhookSecret, bookings.NewPaymentEvents(bookingSvc, logger),
			app.Processed, metrics.NewPaymentMetrics(reg), logger)
	}

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitRPS > 0 {
		if redisClient != nil {
			limiter = httpmiddleware.NewRedisRateLimiter(redisClient, cfg.RateLimitRPS, cfg.RateLimitBurst)
		} else {
			limiter = httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
		}
	}

	app.Handler = router.New(&router.Config{
		Logger:              logger,
		DoctorsHandler:      doctors.NewHandler(doctorSvc, logger),
		AvailabilityHandler: availability.NewHandler(resolver, logger),
		HolidaysHandler:     holidays.NewHandler(holidaySvc, logger),
		BookingsHandler:     bookings.NewHandler(bookingSvc, logger),
		CouponsHandler:      coupons.NewHandler(couponSvc, logger),
		AuditHandler:        auditHandler,
		PaymentsWebhook:     webhook,
		Realtime:            hub,
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:         limiter,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		HealthChecks:        healthChecks(redisClient, pool, mongoClient),
	})

	logger.Info("api wired",
		"storage", cfg.StorageBackend,
		"bookings_store", cfg.BookingsStore(),
		"redis", redisClient != nil,
		"postgres", pool != nil,
		"gateway", gateway != nil,
		"queue", app.Queue != nil,
	)
	return app, nil
}

// BuildNotifier wires the booking email notifier.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, names notify.DoctorNames, logger *logging.Logger) (*notify.BookingNotifier, error) {
	sender, err := BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	support := cfg.SendGridFromEmail
	if support == "" {
		support = cfg.SESFromEmail
	}
	return notify.NewBookingNotifier(sender, names, notify.ClinicInfo{
		Name:         cfg.ClinicName,
		SupportEmail: support,
		BaseURL:      cfg.PublicBaseURL,
	}, logger), nil
}

func needsAWS(cfg *appconfig.Config) bool {
	return cfg.BookingsStore() == "dynamodb" ||
		(!cfg.UseMemoryQueue && cfg.EventsQueueURL != "") ||
		cfg.DoctorPhotosBucket != "" ||
		cfg.SESFromEmail != ""
}

func buildStorage(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (storage, *mongo.Client, error) {
	st := storage{
		doctors:  doctors.NewInMemoryRepository(),
		holidays: holidays.NewInMemoryRepository(),
		coupons:  coupons.NewInMemoryRepository(),
		bookings: bookings.NewInMemoryStore(),
	}

	var (
		client *mongo.Client
		db     *mongo.Database
	)
	if cfg.StorageBackend == "mongo" || cfg.BookingsStore() == "mongo" {
		var err error
		client, db, err = ConnectMongo(ctx, cfg)
		if err != nil {
			return st, nil, err
		}
	}

	switch cfg.StorageBackend {
	case "memory", "":
		logger.Warn("using in-memory storage; data is lost on restart")
	case "mongo":
		hol := holidays.NewMongoRepository(db)
		if err := hol.EnsureIndexes(ctx); err != nil {
			return st, client, fmt.Errorf("bootstrap: holiday indexes: %w", err)
		}
		st.doctors = doctors.NewMongoRepository(db)
		st.holidays = hol
		st.coupons = coupons.NewMongoRepository(db)
	default:
		return st, client, fmt.Errorf("bootstrap: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	switch cfg.BookingsStore() {
	case "memory", "":
	case "mongo":
		ms := bookings.NewMongoStore(db)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return st, client, fmt.Errorf("bootstrap: booking indexes: %w", err)
		}
		st.bookings = ms
	case "dynamodb":
		st.bookings = bookings.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.BookingsTable, cfg.SlotClaimsTable, logger)
	default:
		return st, client, fmt.Errorf("bootstrap: unknown BOOKINGS_BACKEND %q", cfg.BookingsStore())
	}
	return st, client, nil
}

func buildLocker(client *redis.Client, cfg *appconfig.Config) bookings.SlotLocker {
	if client != nil {
		return bookings.NewRedisLocker(client, cfg.SlotLockTTL)
	}
	return bookings.NewLocalLocker()
}

// buildGateway returns the payment gateway and the secret that signs its
// webhooks. Both are empty when online payment is off.
func buildGateway(cfg *appconfig.Config, logger *logging.Logger) (bookings.PaymentGateway, string) {
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		client := payments.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger).WithBaseURL(cfg.RazorpayBaseURL)
		return client, cfg.RazorpayWebhookSecret
	}
	if cfg.AllowFakePayments {
		logger.Warn("fake payment gateway enabled; never use in production")
		secret := cfg.RazorpayWebhookSecret
		if secret == "" {
			secret = payments.FakeSecret
		}
		return payments.NewFakeGateway(logger), secret
	}
	return nil, ""
}

func healthChecks(redisClient *redis.Client, pool *pgxpool.Pool, mongoClient *mongo.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if mongoClient != nil {
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}
	return checks
}
