package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env not found, using system environment")
	}
}

func GetEnv(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func GetEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

type Config struct {
	Host          string
	Port          string
	LogLevel      string
	LogFormat     string
	PublicBaseURL string
	TimeZone      string

	DB    DBConfig
	Redis RedisConfig

	JWTSecret       string
	RecaptchaSecret string

	ArkeselAPIKey   string
	ArkeselSenderID string
	ArkeselBaseURL  string

	FunctionUser string
	FunctionPass string

	SMSWorkerInterval     time.Duration
	ReminderSweepInterval time.Duration
}

type DBConfig struct {
	DSN         string
	User        string
	Password    string
	Host        string
	Port        string
	Name        string
	Automigrate bool
	MaxOpen     int
	MaxIdle     int
}

// ConnString prefers an explicit DSN and otherwise assembles one from parts.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Load reads the process environment. Call LoadEnv first to pick up .env.
func Load() (Config, error) {
	cfg := Config{
		Host:          GetEnv("APP_HOST", "0.0.0.0"),
		Port:          GetEnv("APP_PORT", "8080"),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "text"),
		PublicBaseURL: GetEnv("PUBLIC_BASE_URL", ""),
		TimeZone:      GetEnv("APP_TIMEZONE", "Africa/Accra"),
		DB: DBConfig{
			DSN:         os.Getenv("DB_DSN"),
			User:        GetEnv("DB_USER", "root"),
			Password:    os.Getenv("DB_PASSWORD"),
			Host:        GetEnv("DB_HOST", "127.0.0.1"),
			Port:        GetEnv("DB_PORT", "3306"),
			Name:        GetEnv("DB_NAME", "admissions"),
			Automigrate: GetEnv("DB_AUTOMIGRATE", "true") == "true",
			MaxOpen:     GetEnvInt("DB_MAX_OPEN", 20),
			MaxIdle:     GetEnvInt("DB_MAX_IDLE", 5),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		JWTSecret:             os.Getenv("JWT_SECRET"),
		RecaptchaSecret:       os.Getenv("RECAPTCHA_SECRET_KEY"),
		ArkeselAPIKey:         os.Getenv("ARKESEL_API_KEY"),
		ArkeselSenderID:       GetEnv("ARKESEL_SENDER_ID", "GH_SCHOOLS"),
		ArkeselBaseURL:        GetEnv("ARKESEL_BASE_URL", "https://sms.arkesel.com/api/v2/sms/send"),
		FunctionUser:          os.Getenv("FUNCTION_USER"),
		FunctionPass:          os.Getenv("FUNCTION_PASS"),
		SMSWorkerInterval:     GetEnvDuration("SMS_WORKER_INTERVAL", 30*time.Second),
		ReminderSweepInterval: GetEnvDuration("REMINDER_SWEEP_INTERVAL", time.Minute),
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		slog.Warn("unknown time zone, using UTC", slog.String("tz", c.TimeZone))
		return time.UTC
	}
	return loc
}
