package config

import (
	"errors"
	"fmt"
	"io/fs"
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
	Mongo    MongoConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Planner  PlannerConfig
	Agent    AgentConfig
	Mail     MailConfig
	Cache    CacheConfig
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
	AutoMigrate  bool
}

// MongoConfig points at the document store holding mirrored calendar events.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig validates tokens issued by the identity store. An empty secret
// leaves the API unauthenticated.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// CalendarConfig configures the Google Calendar gateway.
type CalendarConfig struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
	TimeZone        string
	SyncDaysAhead   int
	MaxResults      int64
	RequestTimeout  time.Duration
}

// PlannerConfig holds study session placement defaults.
type PlannerConfig struct {
	PreferredHour   int
	DurationMinutes int
	MinHour         int
	MaxHour         int
	Step            time.Duration
}

// AgentConfig drives the background sync and reminder loop.
type AgentConfig struct {
	Enabled       bool
	UserEmail     string
	SyncInterval  time.Duration
	CheckOffset   time.Duration
	CheckDays     int
	SyncDaysAhead int
	Workers       int
	MaxRetries    int
	RetryDelay    time.Duration
}

// MailConfig selects and configures the outgoing mail driver.
type MailConfig struct {
	Driver         string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendgridAPIKey string
	FromName       string
	FromAddress    string
	FrontendURL    string
}

// CacheConfig toggles Redis backed response caching.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Mongo = MongoConfig{
		URI:        v.GetString("MONGO_URI"),
		Database:   v.GetString("MONGO_DATABASE"),
		Collection: v.GetString("MONGO_EVENTS_COLLECTION"),
		Timeout:    parseDuration(v.GetString("MONGO_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.Calendar = CalendarConfig{
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		TokenFile:       v.GetString("GOOGLE_TOKEN_FILE"),
		CalendarID:      v.GetString("GOOGLE_CALENDAR_ID"),
		TimeZone:        v.GetString("CALENDAR_TIME_ZONE"),
		SyncDaysAhead:   v.GetInt("CALENDAR_SYNC_DAYS_AHEAD"),
		MaxResults:      v.GetInt64("CALENDAR_MAX_RESULTS"),
		RequestTimeout:  parseDuration(v.GetString("CALENDAR_REQUEST_TIMEOUT"), 15*time.Second),
	}

	cfg.Planner = PlannerConfig{
		PreferredHour:   v.GetInt("PLANNER_PREFERRED_HOUR"),
		DurationMinutes: v.GetInt("PLANNER_DURATION_MINUTES"),
		MinHour:         v.GetInt("PLANNER_MIN_HOUR"),
		MaxHour:         v.GetInt("PLANNER_MAX_HOUR"),
		Step:            parseDuration(v.GetString("PLANNER_STEP"), 30*time.Minute),
	}

	cfg.Agent = AgentConfig{
		Enabled:       v.GetBool("AGENT_ENABLED"),
		UserEmail:     v.GetString("USER_EMAIL"),
		SyncInterval:  parseDuration(v.GetString("AGENT_SYNC_INTERVAL"), 5*time.Minute),
		CheckOffset:   parseDuration(v.GetString("AGENT_CHECK_OFFSET"), time.Minute),
		CheckDays:     v.GetInt("AGENT_CHECK_DAYS_AHEAD"),
		SyncDaysAhead: v.GetInt("CALENDAR_SYNC_DAYS_AHEAD"),
		Workers:       v.GetInt("AGENT_WORKERS"),
		MaxRetries:    v.GetInt("AGENT_MAX_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("AGENT_RETRY_DELAY"), 10*time.Second),
	}

	cfg.Mail = MailConfig{
		Driver:         strings.ToLower(v.GetString("MAIL_DRIVER")),
		SMTPHost:       v.GetString("SMTP_SERVER"),
		SMTPPort:       v.GetInt("SMTP_PORT"),
		SMTPUser:       v.GetString("SENDER_EMAIL"),
		SMTPPassword:   strings.ReplaceAll(strings.TrimSpace(v.GetString("SENDER_PASSWORD")), " ", ""),
		SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		FrontendURL:    v.GetString("FRONTEND_URL"),
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.Mail.SMTPUser
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 2*time.Minute),
	}

	return cfg
}

// Validate rejects settings the planner cannot work with.
func (c *Config) Validate() error {
	p := c.Planner
	if p.MinHour < 0 || p.MaxHour > 24 || p.MinHour >= p.MaxHour {
		return fmt.Errorf("planner window [%d,%d) is invalid", p.MinHour, p.MaxHour)
	}
	if p.PreferredHour < 0 || p.PreferredHour > 23 {
		return fmt.Errorf("planner preferred hour %d out of range", p.PreferredHour)
	}
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("planner duration must be positive")
	}
	if p.Step <= 0 {
		return fmt.Errorf("planner step must be positive")
	}
	if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		return fmt.Errorf("calendar time zone: %w", err)
	}
	switch c.Mail.Driver {
	case "smtp", "sendgrid", "console":
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "study_companion")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "study_companion")
	v.SetDefault("MONGO_EVENTS_COLLECTION", "calendar_events")
	v.SetDefault("MONGO_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	v.SetDefault("GOOGLE_TOKEN_FILE", "token.json")
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("CALENDAR_TIME_ZONE", "Europe/Amsterdam")
	v.SetDefault("CALENDAR_SYNC_DAYS_AHEAD", 90)
	v.SetDefault("CALENDAR_MAX_RESULTS", 100)
	v.SetDefault("CALENDAR_REQUEST_TIMEOUT", "15s")

	v.SetDefault("PLANNER_PREFERRED_HOUR", 18)
	v.SetDefault("PLANNER_DURATION_MINUTES", 60)
	v.SetDefault("PLANNER_MIN_HOUR", 7)
	v.SetDefault("PLANNER_MAX_HOUR", 23)
	v.SetDefault("PLANNER_STEP", "30m")

	v.SetDefault("AGENT_ENABLED", false)
	v.SetDefault("USER_EMAIL", "student@example.com")
	v.SetDefault("AGENT_SYNC_INTERVAL", "5m")
	v.SetDefault("AGENT_CHECK_OFFSET", "1m")
	v.SetDefault("AGENT_CHECK_DAYS_AHEAD", 7)
	v.SetDefault("AGENT_WORKERS", 1)
	v.SetDefault("AGENT_MAX_RETRIES", 2)
	v.SetDefault("AGENT_RETRY_DELAY", "10s")

	v.SetDefault("MAIL_DRIVER", "console")
	v.SetDefault("SMTP_SERVER", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SENDER_EMAIL", "")
	v.SetDefault("SENDER_PASSWORD", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Study Companion")
	v.SetDefault("MAIL_FROM_ADDRESS", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:8080")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "2m")
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
