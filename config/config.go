package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisStateDB         int    `mapstructure:"REDIS_STATE_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Gemini model access.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	// Telegram bot access.
	TelegramBotToken   string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	WebhookSecretToken string `mapstructure:"WEBHOOK_SECRET_TOKEN"`

	// Business-hours slot policy. Open/close are HH:MM clock strings.
	BusinessOpen           string `mapstructure:"BUSINESS_OPEN"`
	BusinessClose          string `mapstructure:"BUSINESS_CLOSE"`
	SlotStepMinutes        int    `mapstructure:"SLOT_STEP_MINUTES"`
	DefaultDurationMinutes int    `mapstructure:"DEFAULT_DURATION_MINUTES"`

	// Conversation behavior.
	ConversationWindow  int `mapstructure:"CONVERSATION_WINDOW"`
	ClarifyTurnCap      int `mapstructure:"CLARIFY_TURN_CAP"`
	StateTTLMinutes     int `mapstructure:"STATE_TTL_MINUTES"`
	ModelTimeoutSeconds int `mapstructure:"MODEL_TIMEOUT_SECONDS"`

	// Appointment reminders.
	ReminderLeadMinutes int `mapstructure:"REMINDER_LEAD_MINUTES"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_STATE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 1)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("TELEGRAM_BOT_TOKEN", "")
	viper.SetDefault("WEBHOOK_SECRET_TOKEN", "")
	viper.SetDefault("BUSINESS_OPEN", "09:00")
	viper.SetDefault("BUSINESS_CLOSE", "17:00")
	viper.SetDefault("SLOT_STEP_MINUTES", 30)
	viper.SetDefault("DEFAULT_DURATION_MINUTES", 30)
	viper.SetDefault("CONVERSATION_WINDOW", 10)
	viper.SetDefault("CLARIFY_TURN_CAP", 5)
	viper.SetDefault("STATE_TTL_MINUTES", 30)
	viper.SetDefault("MODEL_TIMEOUT_SECONDS", 20)
	viper.SetDefault("REMINDER_LEAD_MINUTES", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
