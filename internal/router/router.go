// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/docucontrol/tramites-portal/internal/backend"
	"github.com/docucontrol/tramites-portal/internal/config"
	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/handlers"
	"github.com/docucontrol/tramites-portal/internal/middleware"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

// Initialize wires the services and routes. The returned WizardService owns
// the open sessions and must be closed on shutdown. db may be nil.
func Initialize(db *gorm.DB, cfg *config.Config, rules estimator.Rules) (*gin.Engine, *services.WizardService, error) {
	// Backend client
	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithUploadTimeout(cfg.Backend.UploadTimeout),
	)
	catalog := backend.NewCachedCatalog(client, cfg.Backend.CacheSize, cfg.Backend.CacheTTL)

	// Initialize services
	stagingService, err := services.NewStagingService(cfg)
	if err != nil {
		return nil, nil, err
	}
	auditService := services.NewAuditService(db, client)
	notificationService := services.NewNotificationService(cfg)

	var paymentService *services.PaymentService
	if cfg.Payment.StripeSecretKey != "" {
		paymentService = services.NewPaymentService(cfg)
	}

	wizardService := services.NewWizardService(services.WizardServiceConfig{
		Catalog:       catalog,
		Requests:      client,
		Documents:     client,
		Staging:       stagingService,
		Audit:         auditService,
		Notifications: notificationService,
		Payments:      paymentService,
		Rules:         &rules,
		SessionTTL:    cfg.Wizard.SessionTTL,
	})

	// Initialize handlers
	wizardHandler := handlers.NewWizardHandler(wizardService)
	procedureHandler := handlers.NewProcedureHandler(catalog, rules)
	requestHandler := handlers.NewRequestHandler(auditService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.GeneralRateLimit())
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"version":         "1.0.0",
			"active_wizards":  wizardService.Count(),
			"audit_database":  db != nil,
			"cached_catalogs": catalog.Len(),
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Procedure routes (public)
		procedures := v1.Group("/procedures")
		procedures.Use(middleware.OptionalAuth())
		{
			procedures.GET("/:id", procedureHandler.GetProcedure)
			procedures.GET("/:id/estimate", procedureHandler.EstimateProcedure)
		}

		// Wizard routes
		wizards := v1.Group("/wizards")
		wizards.Use(middleware.AuthRequired())
		{
			wizards.POST("", wizardHandler.OpenWizard)
			wizards.GET("/:id", wizardHandler.GetWizard)
			wizards.DELETE("/:id", wizardHandler.AbandonWizard)
			wizards.PUT("/:id/applicant", wizardHandler.UpdateApplicant)
			wizards.PUT("/:id/details", wizardHandler.UpdateDetails)
			wizards.PUT("/:id/notes", wizardHandler.SetNotes)
			wizards.POST("/:id/attachments/:document_id", middleware.UploadRateLimit(), wizardHandler.AttachFile)
			wizards.DELETE("/:id/attachments/:document_id", wizardHandler.ClearAttachment)
			wizards.GET("/:id/validation", wizardHandler.ValidateStep)
			wizards.POST("/:id/advance", wizardHandler.Advance)
			wizards.POST("/:id/retreat", wizardHandler.Retreat)
			wizards.GET("/:id/estimate", wizardHandler.GetEstimate)
			wizards.POST("/:id/submit", wizardHandler.Submit)
			wizards.POST("/:id/payment-intent", wizardHandler.CreatePaymentIntent)
		}

		// Request history
		requests := v1.Group("/requests")
		requests.Use(middleware.AuthRequired())
		{
			requests.GET("", requestHandler.ListMyRequests)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound), nil)
	})

	logrus.WithFields(logrus.Fields{
		"backend":  cfg.Backend.BaseURL,
		"payments": paymentService != nil,
		"audit_db": db != nil,
	}).Info("Router initialized")

	return r, wizardService, nil
}
