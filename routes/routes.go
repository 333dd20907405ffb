package routes

import (
	"vitalwatch/config"
	"vitalwatch/controllers"
	"vitalwatch/middleware"
	"vitalwatch/models"
	"vitalwatch/repositories"
	"vitalwatch/services"
	"vitalwatch/utils"
	"vitalwatch/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// App is the wired application graph. main.go and the background workers
// reach the hub, services and repositories through it.
type App struct {
	Router   *gin.Engine
	Hub      *websocket.Hub
	Repos    *Repositories
	Services *Services
}

// SetupRoutes wires repositories, services, controllers and middleware into
// a ready-to-serve router.
func SetupRoutes(db *mongo.Database, mongoClient *mongo.Client, redisClient *redis.Client, cfg *config.Config) *App {
	router := gin.New()

	// Initialize repositories
	repos := initializeRepositories(db)

	// The hub resolves in-band auth frames through the auth service, and the
	// services publish through the hub, so both are built before the rest.
	authService := services.NewAuthService(repos.User, utils.NewJWTService(cfg.JWTSecret))
	hub := websocket.NewHub(authService)

	// Initialize services
	svcs := initializeServices(repos, redisClient, cfg, authService, hub)

	// Initialize controllers
	ctrls := initializeControllers(svcs, hub, mongoClient, redisClient)

	authMW := middleware.NewAuthMiddleware(svcs.Auth)

	// Global middleware
	setupGlobalMiddleware(router, redisClient, cfg)

	// Setup route groups
	setupPublicRoutes(router, ctrls, redisClient)
	setupAuthenticatedRoutes(router, ctrls, authMW, redisClient)
	setupAdminRoutes(router, ctrls, authMW)

	return &App{
		Router:   router,
		Hub:      hub,
		Repos:    repos,
		Services: svcs,
	}
}

// Repositories initialization
type Repositories struct {
	User    *repositories.UserRepository
	Patient *repositories.PatientRepository
	Vital   *repositories.VitalRepository
	Alert   *repositories.AlertRepository
}

func initializeRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		User:    repositories.NewUserRepository(db),
		Patient: repositories.NewPatientRepository(db),
		Vital:   repositories.NewVitalRepository(db),
		Alert:   repositories.NewAlertRepository(db),
	}
}

// Services initialization
type Services struct {
	Auth         *services.AuthService
	User         *services.UserService
	Patient      *services.PatientService
	Vitals       *services.VitalsService
	Alert        *services.AlertService
	Notification *services.NotificationService
}

func initializeServices(repos *Repositories, redisClient *redis.Client, cfg *config.Config, authService *services.AuthService, hub *websocket.Hub) *Services {
	emailService := cfg.InitEmailService()
	notifier := cfg.InitNotifier(emailService)

	notificationService := services.NewNotificationService(redisClient, repos.User, repos.Patient, repos.Alert, notifier, emailService)
	alertService := services.NewAlertService(repos.Alert, repos.Patient, hub, notificationService)

	return &Services{
		Auth:         authService,
		User:         services.NewUserService(repos.User, repos.Patient),
		Patient:      services.NewPatientService(repos.Patient, hub),
		Vitals:       services.NewVitalsService(repos.Vital, repos.Patient, alertService, hub),
		Alert:        alertService,
		Notification: notificationService,
	}
}

// Controllers initialization
type Controllers struct {
	User      *controllers.UserController
	Patient   *controllers.PatientController
	Vitals    *controllers.VitalsController
	Alert     *controllers.AlertController
	WebSocket *controllers.WebSocketController
	Health    *controllers.HealthController
}

func initializeControllers(svcs *Services, hub *websocket.Hub, mongoClient *mongo.Client, redisClient *redis.Client) *Controllers {
	return &Controllers{
		User:      controllers.NewUserController(svcs.User),
		Patient:   controllers.NewPatientController(svcs.Patient),
		Vitals:    controllers.NewVitalsController(svcs.Vitals),
		Alert:     controllers.NewAlertController(svcs.Alert),
		WebSocket: controllers.NewWebSocketController(hub, svcs.Auth),
		Health:    controllers.NewHealthController(mongoClient, redisClient, svcs.Notification),
	}
}

// Global middleware setup
func setupGlobalMiddleware(router *gin.Engine, redisClient *redis.Client, cfg *config.Config) {
	errorHandler := middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger())

	router.Use(errorHandler.Handle())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Environment))
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg.Environment))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, ctrls *Controllers, redisClient *redis.Client) {
	// Health checks
	router.GET("/health", ctrls.Health.Health)
	router.GET("/health/detailed", ctrls.Health.DetailedHealth)

	// WebSocket endpoint. The upgrade is unauthenticated; clients authenticate
	// in-band before they may subscribe.
	router.GET("/ws", middleware.WebSocketRateLimit(redisClient), ctrls.WebSocket.HandleWebSocket)
}

// Authenticated routes (requires valid JWT token)
func setupAuthenticatedRoutes(router *gin.Engine, ctrls *Controllers, authMW *middleware.AuthMiddleware, redisClient *redis.Client) {
	api := router.Group("/api/v1")
	api.Use(authMW.RequireAuth())

	SetupVitalsRoutes(api, ctrls.Vitals, redisClient)
	SetupAlertRoutes(api, ctrls.Alert, redisClient)
	SetupPatientRoutes(api, ctrls.Patient, authMW)
	SetupUserRoutes(api, ctrls.User)
}

// Admin routes (requires admin privileges)
func setupAdminRoutes(router *gin.Engine, ctrls *Controllers, authMW *middleware.AuthMiddleware) {
	admin := router.Group("/api/v1/admin")
	admin.Use(authMW.RequireAuth())
	admin.Use(authMW.RequireRole(models.RoleAdmin))

	admin.GET("/users", ctrls.User.ListByRole)
	admin.GET("/users/search", ctrls.User.SearchUsers)
	admin.POST("/users/:userId/patients/:patientId", ctrls.User.AssignPatient)
	admin.DELETE("/users/:userId/patients/:patientId", ctrls.User.UnassignPatient)
	admin.POST("/users/:userId/deactivate", ctrls.User.DeactivateUser)

	admin.GET("/ws/stats", ctrls.WebSocket.GetConnectionStats)
	admin.GET("/ws/users/:userId", ctrls.WebSocket.GetUserConnection)
}
