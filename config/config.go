package config

import (
	"os"
	"strconv"
	"vitalwatch/services"
	"vitalwatch/utils"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Monitoring settings
	SimulatorEnabled   bool
	SimulatorIntervalS int // seconds between simulated readings per patient
	WatchdogEnabled    bool
	VitalRetentionDays int

	EmailProvider string

	// SMTP Settings
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/vitalwatch"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-super-secret-jwt-key"),

		// Firebase
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		// Monitoring settings
		SimulatorEnabled:   getEnvAsBool("SIMULATOR_ENABLED", false),
		SimulatorIntervalS: getEnvAsInt("SIMULATOR_INTERVAL_SECONDS", 30),
		WatchdogEnabled:    getEnvAsBool("WATCHDOG_ENABLED", true),
		VitalRetentionDays: getEnvAsInt("VITAL_RETENTION_DAYS", 90),

		// Email settings
		EmailProvider: getEnv("EMAIL_PROVIDER", "smtp"),
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:      getEnv("SMTP_FROM", "alerts@vitalwatch.health"),
	}
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// InitEmailService initializes the email service based on configuration
func (c *Config) InitEmailService() utils.EmailService {
	switch c.EmailProvider {
	case "smtp":
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			logrus.Warn("SMTP credentials not configured, using mock email service")
			return services.NewMockEmailService()
		}
		return services.NewSMTPEmailService(
			c.SMTPHost,
			c.SMTPPort,
			c.SMTPUsername,
			c.SMTPPassword,
			c.SMTPFrom,
		)
	case "mock":
		return services.NewMockEmailService()
	default:
		logrus.Warn("Unknown email provider, using mock email service")
		return services.NewMockEmailService()
	}
}

// InitNotifier builds the push/SMS notifier. Returns nil when Firebase
// credentials are missing. A nil notifier disables push and SMS delivery
// while email keeps working.
func (c *Config) InitNotifier(emailService utils.EmailService) *utils.NotificationService {
	if c.FirebaseCredentials == "" {
		logrus.Warn("Firebase credentials not configured, push and SMS notifications disabled")
		return nil
	}

	notifier, err := utils.NewNotificationService(
		c.FirebaseCredentials,
		c.TwilioAccountSID,
		c.TwilioAuthToken,
		c.TwilioPhoneNumber,
		emailService,
	)
	if err != nil {
		logrus.Errorf("Failed to initialize notification service: %v", err)
		return nil
	}

	return notifier
}
