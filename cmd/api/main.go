package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/pkg/ai"
	"github.com/noah-isme/gema-lms-api/pkg/certificate"
	cloud "github.com/noah-isme/gema-lms-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured; caching disabled and recalculation locks are process-local")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var grader ai.Grader
	if cfg.OpenAIAPIKey != "" {
		openAIGrader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai grader: %v", err)
		}
		grader = openAIGrader
	} else {
		logger.Warn().Msg("openai api key not configured; submissions wait for mentor grading")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)
	certificationRepo := repository.NewCertificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	transactor := repository.NewTransactor(db, repository.WithRetryHook(func(attempt int, err error) {
		observability.RecalculationStale().Inc()
		logger.Warn().Err(err).Int("attempt", attempt).Msg("retrying score recalculation after serialization failure")
	}))

	var locker service.StudentLocker
	if redisClient != nil {
		locker = service.NewRedisLocker(redisClient, cfg.RecalculationLockTTL, logger)
	} else {
		locker = service.NewLocalLocker()
	}

	generator := certificate.NewGenerator(uploader, cfg.CertificateFolder, logger)
	engine := service.NewScoreEngine(generator, service.ScoreEngineConfig{
		QualificationScore: cfg.QualificationScore,
		Program:            cfg.CertificateProgram,
	}, logger)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, validate, redisClient, cfg.LeaderboardCacheTTL, logger)
	leaderboardHub := service.NewLeaderboardHub(leaderboardService, logger)
	reportService := service.NewStudentReportService(service.StudentReportDependencies{
		Students:       studentRepo,
		Assignments:    assignmentRepo,
		Submissions:    submissionRepo,
		Leaderboard:    leaderboardRepo,
		Certifications: certificationRepo,
	}, cfg.QualificationScore, redisClient, cfg.LeaderboardCacheTTL, logger)

	// Remote nodes only need their caches and websocket clients refreshed; auditing
	// happened where the recalculation ran.
	bridge := service.NewScoreEventBridge(natsConn, cfg.NATSScoreSubject, logger, leaderboardService, reportService, leaderboardHub)

	scoringService := service.NewScoringService(engine, transactor, locker, cfg.RecalculationLockWait, logger,
		leaderboardService,
		reportService,
		leaderboardHub,
		service.NewScoreAuditListener(activityService, logger),
		bridge,
	)

	assignmentService := service.NewAssignmentService(assignmentRepo, validate, uploader, cfg.SubmissionFolder, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions:    submissionRepo,
		Assignments:    assignmentRepo,
		Students:       studentRepo,
		Leaderboard:    leaderboardRepo,
		Certifications: certificationRepo,
		Scoring:        scoringService,
		Grader:         grader,
		Uploader:       uploader,
		Folders: service.SubmissionFolders{
			Submissions: cfg.SubmissionFolder,
			Feedback:    cfg.FeedbackFolder,
		},
		Recorder:  activityService,
		Validator: validate,
	}, logger)
	certificationService := service.NewCertificationService(certificationRepo, validate, logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	bridge.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    25 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:    handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler:    handler.NewSubmissionHandler(submissionService, logger),
		LeaderboardHandler:   handler.NewLeaderboardHandler(leaderboardService, scoringService, leaderboardHub, logger),
		CertificationHandler: handler.NewCertificationHandler(certificationService, logger),
		StudentReportHandler: handler.NewStudentReportHandler(reportService, logger),
		ActivityHandler:      handler.NewActivityHandler(activityService, logger),
		HealthProbes:         healthProbes(db, redisClient, natsConn),
		MetricsHandler:       observability.MetricsHandler(),
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
