package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	server "github.com/fibli/story-service/internal/adapters/primary/http"
	entitlementController "github.com/fibli/story-service/internal/adapters/primary/http/controllers/entitlement"
	healthcheckController "github.com/fibli/story-service/internal/adapters/primary/http/controllers/healthcheck"
	storyController "github.com/fibli/story-service/internal/adapters/primary/http/controllers/story"
	kafkaConsumerAdapter "github.com/fibli/story-service/internal/adapters/primary/kafka"
	kafkaHandlers "github.com/fibli/story-service/internal/adapters/primary/kafka/handlers"
	alerterAdapter "github.com/fibli/story-service/internal/adapters/secondary/alerter"
	"github.com/fibli/story-service/internal/adapters/secondary/appstore"
	kafkaAdapter "github.com/fibli/story-service/internal/adapters/secondary/kafka"
	"github.com/fibli/story-service/internal/adapters/secondary/openai"
	"github.com/fibli/story-service/internal/adapters/secondary/stability"
	"github.com/fibli/story-service/internal/adapters/secondary/storage/pg"
	redisAdapter "github.com/fibli/story-service/internal/adapters/secondary/storage/redis"
	s3Adapter "github.com/fibli/story-service/internal/adapters/secondary/storage/s3"
	"github.com/fibli/story-service/internal/ports/counterstore"
	"github.com/fibli/story-service/internal/ports/events"
	"github.com/fibli/story-service/internal/ports/repository"
	"github.com/fibli/story-service/internal/ports/service"
	gistRepo "github.com/fibli/story-service/internal/repository/gist"
	purchaseRepo "github.com/fibli/story-service/internal/repository/purchase"
	storyRepo "github.com/fibli/story-service/internal/repository/story"
	jobScheduler "github.com/fibli/story-service/internal/services/jobs"
	"github.com/fibli/story-service/internal/usecases/entitlement"
	storyUsecase "github.com/fibli/story-service/internal/usecases/story"
)

type Dependencies struct {
	DB               *sqlx.DB
	HTTPServer       *http.Server
	Counters         counterstore.Store
	Reconciler       *entitlement.Reconciler
	PurchaseConsumer *kafkaConsumerAdapter.Consumer
	AuditProducer    events.IAuditProducer
	JobScheduler     *jobScheduler.Scheduler
}

// initDependencies инициализирует все зависимости приложения
func (a *App) initDependencies(_ context.Context) (*Dependencies, error) {
	db, err := a.initPostgres()
	if err != nil {
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	repos := a.initRepositories(db)

	counters, err := a.initCounterStore()
	if err != nil {
		return nil, fmt.Errorf("failed to init counter store: %w", err)
	}

	alerter := a.initAlerter()
	platform := appstore.NewClient(a.Cfg.AppStore, a.Log)

	auditProducer, err := a.initAuditProducer()
	if err != nil {
		return nil, fmt.Errorf("failed to init audit producer: %w", err)
	}

	ledger := entitlement.New(counters, repos.Purchase, platform, auditProducer, a.Cfg.Entitlement, a.Log)
	reconciler := entitlement.NewReconciler(ledger, platform, alerter, a.Log)

	purchaseConsumer, err := a.initPurchaseConsumer(reconciler)
	if err != nil {
		return nil, fmt.Errorf("failed to init purchase consumer: %w", err)
	}

	storyService, err := a.initStoryService(repos, ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to init story service: %w", err)
	}

	httpServer := server.NewHTTPServer(a.Cfg.Server, a.Log,
		healthcheckController.New(db, a.Log),
		entitlementController.New(ledger, a.Log),
		storyController.New(storyService, a.Log),
	)

	scheduler := a.initJobScheduler(alerter, ledger, repos.Purchase, platform.Supported())

	return &Dependencies{
		DB:               db,
		HTTPServer:       httpServer,
		Counters:         counters,
		Reconciler:       reconciler,
		PurchaseConsumer: purchaseConsumer,
		AuditProducer:    auditProducer,
		JobScheduler:     scheduler,
	}, nil
}

// repositories содержит инициализированные репозитории
type repositories struct {
	Purchase repository.IPurchaseRepo
	Gist     repository.IGistRepo
	Story    repository.IStoryRepo
}

// initRepositories инициализирует репозитории для работы с БД
func (a *App) initRepositories(db *sqlx.DB) *repositories {
	persistenceLayer := pg.NewDB(db)
	return &repositories{
		Purchase: purchaseRepo.New(persistenceLayer, a.Log),
		Gist:     gistRepo.New(persistenceLayer, a.Log),
		Story:    storyRepo.New(persistenceLayer, a.Log),
	}
}

// initCounterStore подключается к Redis. Хранилище счётчиков обязательное:
// без него леджер не может ни читать, ни списывать лимиты.
func (a *App) initCounterStore() (counterstore.Store, error) {
	if a.Cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration is missing")
	}

	client, err := a.Cfg.Redis.NewConnection()
	if err != nil {
		return nil, err
	}

	a.Log.Info("redis connected successfully")
	return redisAdapter.NewStore(client, a.Cfg.Redis.Namespace), nil
}

// initAlerter инициализирует опциональный телеграм-алертер
func (a *App) initAlerter() service.IAlerterService {
	if a.Cfg.Alerter == nil || a.Cfg.Alerter.BotToken == "" {
		a.Log.Warn("alerter is not configured, alerts disabled")
		return nil
	}
	return alerterAdapter.NewClient(a.Cfg.Alerter, a.Log)
}

// initAuditProducer инициализирует опциональный Kafka producer событий аудита
func (a *App) initAuditProducer() (events.IAuditProducer, error) {
	if a.Cfg.KafkaAudit == nil || a.Cfg.KafkaAudit.Brokers == "" {
		a.Log.Warn("audit producer is not configured, audit events disabled")
		return nil, nil
	}

	producer, err := kafkaAdapter.NewProducer(a.Cfg.KafkaAudit, a.Log)
	if err != nil {
		return nil, err
	}
	return producer, nil
}

// initPurchaseConsumer инициализирует consumer стрима обновлений покупок
func (a *App) initPurchaseConsumer(reconciler *entitlement.Reconciler) (*kafkaConsumerAdapter.Consumer, error) {
	if a.Cfg.KafkaPurchases == nil || a.Cfg.KafkaPurchases.Brokers == "" {
		a.Log.Warn("purchase update stream is not configured, live updates disabled")
		return nil, nil
	}

	handler := kafkaHandlers.NewPurchaseUpdateHandler(reconciler, a.Log)
	return kafkaConsumerAdapter.NewConsumer(a.Cfg.KafkaPurchases, handler, a.Log)
}

// initStoryService собирает пайплайн генерации историй
func (a *App) initStoryService(repos *repositories, ledger *entitlement.Ledger) (*storyUsecase.Service, error) {
	if a.Cfg.OpenAI == nil {
		return nil, fmt.Errorf("openai configuration is missing")
	}
	if a.Cfg.Stability == nil {
		return nil, fmt.Errorf("stability configuration is missing")
	}
	if a.Cfg.S3 == nil {
		return nil, fmt.Errorf("s3 configuration is missing")
	}

	llm := openai.NewClient(a.Cfg.OpenAI, a.Log)
	imageGen := stability.NewClient(a.Cfg.Stability, a.Log)

	minioClient, err := a.Cfg.S3.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to init s3 client: %w", err)
	}
	a.Log.Info("s3 connected successfully", "bucket", a.Cfg.S3.Bucket)
	imageStore := s3Adapter.NewClient(minioClient, a.Cfg.S3.Bucket, a.Cfg.S3.PublicBaseURL, a.Log)

	return storyUsecase.New(repos.Gist, repos.Story, llm, imageGen, imageStore, ledger, a.Log), nil
}

// initJobScheduler регистрирует периодические джобы
func (a *App) initJobScheduler(
	alerter service.IAlerterService,
	ledger *entitlement.Ledger,
	purchases repository.IPurchaseRepo,
	platformSupported bool,
) *jobScheduler.Scheduler {
	scheduler := jobScheduler.NewScheduler(a.Log, alerter)

	if platformSupported {
		scheduler.Register(jobScheduler.NewPurchaseResweep(ledger, purchases, a.Log))
	} else {
		a.Log.Warn("purchase platform is not configured, resweep job disabled")
	}

	return scheduler
}
