package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/handlers"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))
	if svc.cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
		r.GET(svc.cfg.Metrics.Path, handlers.Metrics())
	}

	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub, svc.ws, svc.sessions)
	r.GET("/health", healthHandler.CheckHealth)

	authHandler := handlers.NewAuthHandler(svc.auth)
	documentHandler := handlers.NewDocumentHandler(svc.docs)
	feedbackHandler := handlers.NewFeedbackHandler(svc.docs, svc.store)
	aiReviewHandler := handlers.NewAIReviewHandler(svc.reviews, svc.usage)
	sessionHandler := handlers.NewReviewSessionHandler(svc.sessions)
	realtimeHandler := handlers.NewRealtimeHandler(svc.hub, svc.ws, svc.docs)
	digestHandler := handlers.NewDigestHandler(svc.digests, svc.holidays)

	aiLimiter := middleware.NewRateLimiter(svc.cfg.Review.AIReviewRPS, svc.cfg.Review.AIReviewBurst)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/config", authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Realtime; browsers pass the token as ?token=
			protected.GET("/events/feedbacks", realtimeHandler.StreamFeedbackEvents)
			protected.GET("/ws", realtimeHandler.ServeWebsocket)
		}

		protected.Use(middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", authHandler.Me)
			protected.PUT("/auth/password", authHandler.ChangePassword)

			// Documents
			protected.GET("/documents", documentHandler.List)
			protected.POST("/documents", documentHandler.Create)
			protected.GET("/documents/:id", documentHandler.Get)
			protected.PUT("/documents/:id", documentHandler.Update)
			protected.DELETE("/documents/:id", documentHandler.Delete)
			protected.GET("/documents/:id/versions", documentHandler.ListVersions)
			protected.POST("/documents/:id/versions", documentHandler.AddVersion)
			protected.GET("/documents/:id/versions/latest", documentHandler.LatestVersion)

			// Document versions
			protected.GET("/document-versions/:id", documentHandler.GetVersion)
			protected.GET("/document-versions/:id/feedbacks", feedbackHandler.List)
			protected.GET("/document-versions/:id/highlights", feedbackHandler.Highlights)
			protected.GET("/document-versions/:id/ai-review-runs", aiReviewHandler.ListRuns)
			protected.POST("/document-versions/:id/ai-review",
				middleware.MentorRequired(), aiLimiter.Middleware(), aiReviewHandler.Request)
			protected.GET("/ai-review-runs/:id", aiReviewHandler.GetRun)

			// Review sessions
			protected.POST("/review-sessions", sessionHandler.Open)
			protected.GET("/review-sessions/:id", sessionHandler.Get)
			protected.DELETE("/review-sessions/:id", sessionHandler.Close)
			protected.POST("/review-sessions/:id/reload", sessionHandler.Reload)
			protected.PUT("/review-sessions/:id/content", sessionHandler.SetContent)
			protected.POST("/review-sessions/:id/save", sessionHandler.Save)
			protected.POST("/review-sessions/:id/selection", sessionHandler.SetSelection)
			protected.POST("/review-sessions/:id/select", sessionHandler.Select)
			protected.POST("/review-sessions/:id/feedbacks", sessionHandler.Submit)
			protected.POST("/review-sessions/:id/feedbacks/:fid/:action", sessionHandler.Act)
			protected.POST("/review-sessions/:id/island/:op", sessionHandler.Island)

			// Digests
			protected.GET("/digests", digestHandler.Mine)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			userHandler := handlers.NewUserHandler(svc.users)
			admin.GET("/users", userHandler.List)
			admin.POST("/users", userHandler.Create)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			llmConfigHandler := handlers.NewLLMConfigHandler(svc.llm, svc.ai)
			admin.GET("/llm-configs", llmConfigHandler.List)
			admin.GET("/llm-configs/active", llmConfigHandler.GetActive)
			admin.GET("/llm-configs/:id", llmConfigHandler.GetByID)
			admin.POST("/llm-configs", llmConfigHandler.Create)
			admin.PUT("/llm-configs/:id", llmConfigHandler.Update)
			admin.DELETE("/llm-configs/:id", llmConfigHandler.Delete)
			admin.POST("/llm-configs/:id/test", llmConfigHandler.TestConnection)

			systemLogHandler := handlers.NewSystemLogHandler(svc.logs)
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)

			systemConfigHandler := handlers.NewSystemConfigHandler(svc.configs, svc.onConfigUpdate)
			admin.GET("/system-config/:group", systemConfigHandler.GetGroup)
			admin.PUT("/system-config/:group", systemConfigHandler.UpdateGroup)

			aiUsageHandler := handlers.NewAIUsageHandler(svc.usage)
			admin.GET("/ai-usage/stats", aiUsageHandler.GetStats)
			admin.GET("/ai-usage/trend", aiUsageHandler.GetDailyTrend)
			admin.GET("/ai-usage/runs", aiUsageHandler.GetRunBreakdown)
			admin.GET("/ai-usage/outcomes", aiUsageHandler.GetOutcomeBreakdown)

			admin.GET("/digests", digestHandler.List)
			admin.POST("/digests/run", digestHandler.Run)
			admin.POST("/digests/:id/resend", digestHandler.Resend)
			admin.GET("/holidays/countries", digestHandler.Countries)
			admin.GET("/holidays/workday", digestHandler.Workday)
		}
	}
}
