package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Portal   PortalConfig
	LLM      LLMConfig
	Booking  BookingConfig
	Operator OperatorConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PortalConfig points the booking client at the room portal and its SSO.
type PortalConfig struct {
	BaseURL            string
	StudentLoginURL    string
	StaffLoginURL      string
	Username           string
	Password           string
	Staff              bool
	ParticipantSearch  string
	ParticipantID      string
	RevalidateInterval time.Duration
	Timeout            time.Duration
	UserAgent          string
}

// LLMConfig configures the chat completion backend used for request extraction.
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// BookingConfig tunes the plan and confirm flow.
type BookingConfig struct {
	ProposalTTL       time.Duration
	ScheduleCacheTTL  time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	Timezone          string
	DefaultTitle      string
	BookableDays      int
}

// OperatorConfig holds the single operator allowed to drive the API.
type OperatorConfig struct {
	ID      string
	KeyHash string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Portal = PortalConfig{
		BaseURL:            strings.TrimRight(v.GetString("PORTAL_BASE_URL"), "/"),
		StudentLoginURL:    v.GetString("PORTAL_STUDENT_LOGIN_URL"),
		StaffLoginURL:      v.GetString("PORTAL_STAFF_LOGIN_URL"),
		Username:           v.GetString("PORTAL_USERNAME"),
		Password:           v.GetString("PORTAL_PASSWORD"),
		Staff:              v.GetBool("PORTAL_STAFF"),
		ParticipantSearch:  v.GetString("PORTAL_PARTICIPANT_SEARCH"),
		ParticipantID:      v.GetString("PORTAL_PARTICIPANT_ID"),
		RevalidateInterval: parseDuration(v.GetString("PORTAL_REVALIDATE_INTERVAL"), time.Hour),
		Timeout:            parseDuration(v.GetString("PORTAL_TIMEOUT"), 20*time.Second),
		UserAgent:          v.GetString("PORTAL_USER_AGENT"),
	}

	burst := v.GetInt("LLM_BURST")
	if burst <= 0 {
		burst = 1
	}
	cfg.LLM = LLMConfig{
		BaseURL:           v.GetString("LLM_BASE_URL"),
		APIKey:            v.GetString("LLM_API_KEY"),
		Model:             v.GetString("LLM_MODEL"),
		MaxRetries:        v.GetInt("LLM_MAX_RETRIES"),
		RequestsPerSecond: v.GetFloat64("LLM_REQUESTS_PER_SECOND"),
		Burst:             burst,
		Timeout:           parseDuration(v.GetString("LLM_TIMEOUT"), 30*time.Second),
	}

	cfg.Booking = BookingConfig{
		ProposalTTL:       parseDuration(v.GetString("BOOKING_PROPOSAL_TTL"), 30*time.Minute),
		ScheduleCacheTTL:  parseDuration(v.GetString("BOOKING_SCHEDULE_CACHE_TTL"), 2*time.Minute),
		WorkerConcurrency: v.GetInt("BOOKING_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("BOOKING_WORKER_RETRIES"),
		Timezone:          v.GetString("BOOKING_TIMEZONE"),
		DefaultTitle:      v.GetString("BOOKING_DEFAULT_TITLE"),
		BookableDays:      v.GetInt("BOOKING_BOOKABLE_DAYS"),
	}

	cfg.Operator = OperatorConfig{
		ID:      v.GetString("OPERATOR_ID"),
		KeyHash: v.GetString("OPERATOR_KEY_HASH"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "room_booker")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "room-booker")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PORTAL_BASE_URL", "https://daisy.dsv.su.se")
	v.SetDefault("PORTAL_STUDENT_LOGIN_URL", "https://daisy.dsv.su.se/Shibboleth.sso/Login?entityID=https://idp.it.su.se/idp/shibboleth&target=https://daisy.dsv.su.se/login_sso_student.jspa")
	v.SetDefault("PORTAL_STAFF_LOGIN_URL", "https://daisy.dsv.su.se/Shibboleth.sso/Login?entityID=https://idp.it.su.se/idp/shibboleth&target=https://daisy.dsv.su.se/login_sso_employee.jspa")
	v.SetDefault("PORTAL_STAFF", false)
	v.SetDefault("PORTAL_REVALIDATE_INTERVAL", "1h")
	v.SetDefault("PORTAL_TIMEOUT", "20s")
	v.SetDefault("PORTAL_USER_AGENT", "room-booker/1.0")

	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_MAX_RETRIES", 5)
	v.SetDefault("LLM_REQUESTS_PER_SECOND", 1.0)
	v.SetDefault("LLM_BURST", 2)
	v.SetDefault("LLM_TIMEOUT", "30s")

	v.SetDefault("BOOKING_PROPOSAL_TTL", "30m")
	v.SetDefault("BOOKING_SCHEDULE_CACHE_TTL", "2m")
	v.SetDefault("BOOKING_WORKER_CONCURRENCY", 1)
	v.SetDefault("BOOKING_WORKER_RETRIES", 2)
	v.SetDefault("BOOKING_TIMEZONE", "Europe/Stockholm")
	v.SetDefault("BOOKING_DEFAULT_TITLE", "Group work")
	v.SetDefault("BOOKING_BOOKABLE_DAYS", 15)

	v.SetDefault("OPERATOR_ID", "operator")
	v.SetDefault("OPERATOR_KEY_HASH", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
