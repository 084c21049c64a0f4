package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Synth    SynthConfig
	Announce AnnounceConfig
	Schedule ScheduleConfig
	Facility FacilityConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
	Namespace   string // path prefix for cached audio artifacts
}

type SynthConfig struct {
	Backend       string // "openai" or "http"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	HTTPBaseURL   string // self-hosted synthesis gateway
	Voice         string
	SpeakingRate  float64
	Pitch         float64
}

type AnnounceConfig struct {
	QueueSize           int
	MaxPlaybackSeconds  int
	SynthTimeoutSeconds int
	PrecacheDelayMS     int
}

type ScheduleConfig struct {
	TickSeconds int
}

type FacilityConfig struct {
	Name string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	queueSize, err := getEnvInt("ANNOUNCE_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ANNOUNCE_QUEUE_SIZE: %w", err)
	}

	maxPlayback, err := getEnvInt("ANNOUNCE_MAX_PLAYBACK_SECONDS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid ANNOUNCE_MAX_PLAYBACK_SECONDS: %w", err)
	}

	synthTimeout, err := getEnvInt("ANNOUNCE_SYNTH_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid ANNOUNCE_SYNTH_TIMEOUT_SECONDS: %w", err)
	}

	precacheDelay, err := getEnvInt("PRECACHE_DELAY_MS", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid PRECACHE_DELAY_MS: %w", err)
	}

	tickSeconds, err := getEnvInt("SCHEDULE_TICK_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TICK_SECONDS: %w", err)
	}

	rate, err := getEnvFloat("SYNTH_SPEAKING_RATE", 1.0)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_SPEAKING_RATE: %w", err)
	}

	pitch, err := getEnvFloat("SYNTH_PITCH", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTH_PITCH: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "announcements"),
			Namespace:   getEnv("STORAGE_NAMESPACE", "audio"),
		},
		Synth: SynthConfig{
			Backend:       getEnv("SYNTH_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("SYNTH_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("SYNTH_OPENAI_MODEL", ""),
			HTTPBaseURL:   getEnv("SYNTH_HTTP_BASE_URL", "http://localhost:8178"),
			Voice:         getEnv("SYNTH_VOICE", "pt-BR-Wavenet-A"),
			SpeakingRate:  rate,
			Pitch:         pitch,
		},
		Announce: AnnounceConfig{
			QueueSize:           queueSize,
			MaxPlaybackSeconds:  maxPlayback,
			SynthTimeoutSeconds: synthTimeout,
			PrecacheDelayMS:     precacheDelay,
		},
		Schedule: ScheduleConfig{
			TickSeconds: tickSeconds,
		},
		Facility: FacilityConfig{
			Name: getEnv("FACILITY_NAME", "default"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Synth.Backend == "openai" && c.Synth.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
