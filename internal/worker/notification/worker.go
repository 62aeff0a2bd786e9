package notificationworker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/clinic-booking/cmd/mainconfig"
	appbootstrap "github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/doctors"
	"github.com/wolfman30/clinic-booking/internal/events"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Run starts the notification worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("notification worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("notification worker cannot run when USE_MEMORY_QUEUE=true; the API consumes the queue inline instead")
	}
	if cfg.EventsQueueURL == "" {
		return fmt.Errorf("notification worker requires EVENTS_QUEUE_URL")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("notification worker: load aws config: %w", err)
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.EventsQueueURL)

	// Doctor names come from the shared store; the in-memory store would
	// be empty in a separate process.
	repo := doctors.Repository(doctors.NewInMemoryRepository())
	if cfg.StorageBackend == "mongo" {
		client, db, err := appbootstrap.ConnectMongo(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		repo = doctors.NewMongoRepository(db)
	} else {
		logger.Warn("notification worker without shared storage; emails omit doctor names")
	}
	names := doctors.NewService(repo, logger)

	notifier, err := appbootstrap.BuildNotifier(cfg, &awsCfg, names, logger)
	if err != nil {
		return err
	}

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	pool, sqlDB, err := appbootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		defer sqlDB.Close()
	}

	consumer := NewConsumer(queue, notifier, appbootstrap.BuildProcessedTracker(redisClient, pool), logger)
	logger.Info("notification worker started", "queue", cfg.EventsQueueURL)
	consumer.Run(ctx)
	return nil
}
