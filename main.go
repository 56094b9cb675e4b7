// File: salona/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salona/config"
	"salona/cron"
	"salona/database"
	appointmentRepo "salona/database/repository/appointment"
	conversationRepo "salona/database/repository/conversation"
	customerRepo "salona/database/repository/customer"
	"salona/handlers"
	"salona/routes"
	"salona/services/booking"
	"salona/services/conversation"
	"salona/services/intelligence"
	"salona/services/notification"
	"salona/services/scheduling"
	"salona/services/tasks"
	"salona/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitStateCache()

	hours, err := businessHours()
	if err != nil {
		logger.Sugar().Fatalf("main: invalid business hours config: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	appts := appointmentRepo.NewMongoAppointmentRepo()
	customers := customerRepo.NewMongoCustomerRepo()
	turns := conversationRepo.NewMongoConversationRepo()

	// services.
	modelClient, err := intelligence.NewGeminiClient(context.Background(),
		config.AppConfig.GeminiAPIKey, config.AppConfig.GeminiModel)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize gemini client: %v", err)
	}
	resolver := &intelligence.Resolver{
		Client:  modelClient,
		Hours:   hours,
		Window:  config.AppConfig.ConversationWindow,
		Timeout: time.Duration(config.AppConfig.ModelTimeoutSeconds) * time.Second,
	}

	asynqRedis := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}
	reminderScheduler := &tasks.Scheduler{
		Client:    asynq.NewClient(asynqRedis),
		Inspector: asynq.NewInspector(asynqRedis),
		Lead:      time.Duration(config.AppConfig.ReminderLeadMinutes) * time.Minute,
	}

	bookingSvc := &booking.DefaultTransactionManager{
		Appointments: appts,
		Customers:    customers,
		Hours:        hours,
		Reminders:    reminderScheduler,
	}

	stateTTL := time.Duration(config.AppConfig.StateTTLMinutes) * time.Minute
	stateStore := conversation.NewRedisStateStore(utils.GetStateCacheClient(), stateTTL)

	engine := conversation.NewEngine(resolver, bookingSvc, turns, customers, stateStore, hours,
		conversation.Options{
			ClarifyTurnCap: config.AppConfig.ClarifyTurnCap,
			ContextWindow:  config.AppConfig.ConversationWindow,
		})

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		Engine:    engine,
		Booking:   bookingSvc,
		Customers: customers,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)
	utils.StartHealthMonitor(utils.GetStateCacheClient(), database.MongoClient)
	cron.InitReminderWorker(appts, notification.NewTelegramNotifier(config.AppConfig.TelegramBotToken))

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// businessHours builds the slot policy from config.
func businessHours() (scheduling.BusinessHours, error) {
	open, err := scheduling.ParseClock(config.AppConfig.BusinessOpen)
	if err != nil {
		return scheduling.BusinessHours{}, err
	}
	closeAt, err := scheduling.ParseClock(config.AppConfig.BusinessClose)
	if err != nil {
		return scheduling.BusinessHours{}, err
	}
	return scheduling.BusinessHours{
		OpenMinute:  open,
		CloseMinute: closeAt,
		StepMinutes: config.AppConfig.SlotStepMinutes,
		SlotMinutes: config.AppConfig.DefaultDurationMinutes,
	}, nil
}
