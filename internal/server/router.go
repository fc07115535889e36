// Package server assembles the HTTP router from services and handlers.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"tattootrack/internal/cache"
	"tattootrack/internal/calendar"
	"tattootrack/internal/config"
	"tattootrack/internal/handlers"
	"tattootrack/internal/ledger"
	"tattootrack/internal/metrics"
	"tattootrack/internal/middleware"
	"tattootrack/internal/services"
	"tattootrack/internal/storage"

	_ "tattootrack/internal/docs" // swagger spec
)

// ServiceName identifies this process in traces.
const ServiceName = "tattootrack-api"

// Deps are the long-lived collaborators the router is built from.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Metrics *metrics.Metrics
	Cache   *cache.MonthCache
	Images  *storage.Local

	// Calendar is nil when Google credentials are not configured.
	Calendar calendar.Gateway

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Services groups the business services so main can run startup tasks.
type Services struct {
	Users        services.UserServicer
	Clients      services.ClientServicer
	Tags         services.TagServicer
	Tattoos      services.TattooServicer
	References   services.ReferenceServicer
	Appointments services.AppointmentServicer
	Categories   services.CategoryServicer
	Transactions services.TransactionServicer
	Finances     services.FinanceServicer
	Calendar     services.CalendarServicer
	Audit        services.AuditServicer
}

// NewServices wires the service layer.
func NewServices(d Deps) *Services {
	cfg := d.Config
	rules := ledger.Categories{Deposit: cfg.DepositCategoryName, Session: cfg.SessionCategoryName}

	calendarService := services.NewCalendarService(d.DB, services.CalendarDeps{
		Gateway:     d.Calendar,
		StateSecret: cfg.JWTSecret,
		Location:    cfg.Location,
		Timeout:     cfg.CalendarSyncTimeout,
		Metrics:     d.Metrics,
	})

	return &Services{
		Users:      services.NewUserService(d.DB),
		Clients:    services.NewClientService(d.DB),
		Tags:       services.NewTagService(d.DB),
		Tattoos:    services.NewTattooService(d.DB),
		References: services.NewReferenceService(d.DB, d.Images),
		Appointments: services.NewAppointmentService(d.DB, services.AppointmentDeps{
			Categories: rules,
			Cache:      d.Cache,
			Calendar:   calendarService,
			Metrics:    d.Metrics,
			Now:        d.Now,
		}),
		Categories:   services.NewCategoryService(d.DB, rules),
		Transactions: services.NewTransactionService(d.DB),
		Finances:     services.NewFinanceService(d.DB),
		Calendar:     calendarService,
		Audit:        services.NewAuditService(d.DB),
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps, svc *Services) *gin.Engine {
	cfg := d.Config
	issuer := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpirationDur)

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Calendar, svc.Audit, issuer, cfg.FrontendURL)
	clientHandler := handlers.NewClientHandler(svc.Clients, svc.Audit)
	tagHandler := handlers.NewTagHandler(svc.Tags)
	tattooHandler := handlers.NewTattooHandler(svc.Tattoos)
	referenceHandler := handlers.NewReferenceHandler(svc.References, d.Images, svc.Audit, cfg.MaxUploadBytes)
	appointmentHandler := handlers.NewAppointmentHandler(svc.Appointments, svc.Audit)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions, svc.Audit)
	financeHandler := handlers.NewFinanceHandler(svc.Finances)
	metricsHandler := handlers.NewMetricsHandler(d.Metrics)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing(ServiceName))
	router.Use(middleware.RequestLogging())
	router.Use(middleware.RequestMetrics(d.Metrics))
	router.Use(middleware.CORS(cfg.FrontendURL))
	router.Use(middleware.ErrorHandler())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", health)

	router.GET("/metrics", middleware.APIKeyMiddleware(cfg.MetricsAPIKey), gin.WrapH(d.Metrics.Handler()))

	if d.Images != nil {
		router.Static(storage.PublicPrefix, d.Images.Dir())
	}

	v1 := router.Group("/api/v1")
	v1.GET("/health", health)

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/google/callback", authHandler.GoogleCallback)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(issuer))

	protected.GET("/auth/me", authHandler.Me)
	protected.GET("/auth/google/url", authHandler.GoogleAuthURL)
	protected.POST("/auth/google/disconnect", authHandler.GoogleDisconnect)

	clients := protected.Group("/clients")
	clients.GET("", clientHandler.ListClients)
	clients.POST("", clientHandler.CreateClient)
	clients.GET("/:id", clientHandler.GetClient)
	clients.PUT("/:id", clientHandler.UpdateClient)
	clients.DELETE("/:id", clientHandler.DeleteClient)
	clients.POST("/:id/tags", clientHandler.AddTag)
	clients.DELETE("/:id/tags/:tagId", clientHandler.RemoveTag)
	clients.GET("/:id/tattoos", tattooHandler.ListTattoos)
	clients.POST("/:id/tattoos", tattooHandler.CreateTattoo)
	clients.POST("/:id/references", referenceHandler.CreateReference)

	tags := protected.Group("/tags")
	tags.GET("", tagHandler.ListTags)
	tags.POST("", tagHandler.CreateTag)
	tags.PUT("/:id", tagHandler.UpdateTag)
	tags.DELETE("/:id", tagHandler.DeleteTag)

	tattoos := protected.Group("/tattoos")
	tattoos.PUT("/:id", tattooHandler.UpdateTattoo)
	tattoos.DELETE("/:id", tattooHandler.DeleteTattoo)

	protected.DELETE("/references/:id", referenceHandler.DeleteReference)
	protected.POST("/upload", referenceHandler.Upload)

	appointments := protected.Group("/appointments")
	appointments.GET("", appointmentHandler.ListAppointments)
	appointments.POST("", appointmentHandler.CreateAppointment)
	appointments.GET("/calendar/:year/:month", appointmentHandler.GetCalendarMonth)
	appointments.GET("/check-conflict", appointmentHandler.CheckConflict)
	appointments.GET("/:id", appointmentHandler.GetAppointment)
	appointments.PUT("/:id", appointmentHandler.UpdateAppointment)
	appointments.PATCH("/:id/status", appointmentHandler.UpdateStatus)
	appointments.PATCH("/:id/deposit", appointmentHandler.UpdateDeposit)
	appointments.DELETE("/:id", appointmentHandler.DeleteAppointment)

	categories := protected.Group("/categories")
	categories.GET("", categoryHandler.ListCategories)
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	finances := protected.Group("/finances")
	finances.GET("/summary", financeHandler.Summary)
	finances.GET("/by-category", financeHandler.ByCategory)
	finances.GET("/report", financeHandler.Report)
	finances.GET("/export", financeHandler.Export)

	protected.GET("/metrics/summary", metricsHandler.Summary)

	return router
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
