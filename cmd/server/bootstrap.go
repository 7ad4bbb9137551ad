package main

import (
	"context"
	"time"

	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/handlers"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/internal/utils"
	"github.com/mentorhub/backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const usageRetentionDays = 90

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg *config.Config
	db  *gorm.DB

	hub      *services.RealtimeHub
	ws       *services.WSHub
	relay    *services.RedisRelay
	store    *services.FeedbackStore
	docs     *services.DocumentService
	auth     *services.AuthService
	users    *services.UserService
	ai       *services.AIService
	reviews  *services.AIReviewService
	usage    *services.AIUsageService
	llm      *services.LLMConfigService
	configs  *services.SystemConfigService
	logs     *services.SystemLogService
	sessions *services.SessionManager
	email    *services.EmailService
	holidays *services.HolidayService
	digests  *services.DigestService
	locks    *services.JobLocks

	scheduler *services.Scheduler
	taskQueue services.TaskQueue
	worker    *services.Worker

	cancel context.CancelFunc
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	db := models.GetDB()

	services.InitSystemLogger(db)

	ctx, cancel := context.WithCancel(context.Background())
	s := &appServices{cfg: cfg, db: db, cancel: cancel}

	// Realtime fan-out: SSE subscribers, websocket clients, other instances
	s.hub = services.GetRealtimeHub()
	s.ws = services.NewWSHub()
	s.ws.SetAuthorizer(services.VersionAuthorizer(db))
	s.hub.AddSink(s.ws)
	go s.ws.Run(ctx)
	if cfg.Redis.Enabled {
		relay, err := services.NewRedisRelay(cfg.RedisOptions(), cfg.Redis.Channel, s.hub)
		if err != nil {
			logger.Warnf("[Realtime] Redis relay unavailable, events stay local: %v", err)
		} else {
			s.relay = relay
			s.hub.SetRelay(relay)
			go relay.Run(ctx)
		}
	}

	s.configs = services.NewSystemConfigService(db)
	s.logs = services.NewSystemLogService(db)
	s.docs = services.NewDocumentService(db)
	s.users = services.NewUserService(db)
	s.usage = services.NewAIUsageService(db)
	s.llm = services.NewLLMConfigService(db)
	s.email = services.NewEmailService(db)
	s.holidays = services.NewHolidayService()
	s.locks = services.NewJobLocks(db)

	s.store = services.NewFeedbackStore(db, s.hub)
	s.store.OnCreated(func(item feedback.Item) {
		go func() {
			if err := s.email.NotifyNewFeedback(context.Background(), item); err != nil {
				logger.Warnf("[Email] Feedback notice for %s failed: %v", item.ID, err)
			}
		}()
	})

	// Automated review: in-process queue, or asynq with a worker when redis is on
	s.ai = services.NewAIService(db, &cfg.OpenAI)
	s.taskQueue = services.InitTaskQueue(cfg)
	s.reviews = services.NewAIReviewService(db, s.ai, s.store, s.taskQueue, s.hub)
	if syncQueue, ok := s.taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(s.reviews.Process)
	}
	if s.taskQueue.IsAsync() {
		s.worker = services.NewWorker(&cfg.Redis)
		if s.worker != nil {
			s.worker.SetProcessor(s.reviews.Process)
			if err := s.worker.Start(); err != nil {
				logger.Errorf("[Worker] Failed to start: %v", err)
			}
		}
	}

	s.sessions = services.NewSessionManager(db, s.store, cfg.Review)
	s.docs.SetRealtimeHub(s.hub)
	s.docs.OnVersionsRemoved(func(versionIDs []uint) { s.sessions.CloseVersions(versionIDs...) })
	s.digests = services.NewDigestService(db, s.email, s.holidays, s.locks)

	s.auth = services.NewAuthService(db, &cfg.JWT, cfg.LDAP)
	if err := s.auth.CreateAdminIfNotExists(cfg.Server.AdminPassword); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	// Schedulers
	s.scheduler = services.NewScheduler()
	jobs := &services.MaintenanceJobs{
		Sessions:  s.sessions,
		Logs:      s.logs,
		Usage:     s.usage,
		Reviews:   s.reviews,
		Locks:     s.locks,
		UsageDays: usageRetentionDays,
		StaleRuns: 15 * time.Minute,
	}
	if err := jobs.Register(s.scheduler, cfg.Review.ReaperCron); err != nil {
		logger.Errorf("[Scheduler] Failed to register maintenance jobs: %v", err)
	}
	if err := s.digests.Schedule(s.scheduler); err != nil {
		logger.Warnf("[Scheduler] Digest not scheduled: %v", err)
	}
	s.scheduler.Start()

	if cfg.Metrics.Enabled {
		if err := handlers.RegisterRuntimeGauges(prometheus.DefaultRegisterer, db, s.hub, s.ws); err != nil {
			logger.Warnf("Failed to register runtime gauges: %v", err)
		}
	}

	return s
}

// onConfigUpdate reacts to admin changes of a system config group.
func (s *appServices) onConfigUpdate(group string) {
	if group != "digest" {
		return
	}
	if err := s.digests.Schedule(s.scheduler); err != nil {
		logger.Warnf("[Scheduler] Digest not rescheduled: %v", err)
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.sessions.CloseAll()
	s.scheduler.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	s.cancel()
	if s.relay != nil {
		s.relay.Close()
	}
}
