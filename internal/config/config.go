package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	CORSAllowOrigins      string
	DatabaseURL           string
	DatabaseMaxOpenConns  int
	DatabaseMaxIdleConns  int
	DatabaseConnLifetime  time.Duration
	RedisURL              string
	NATSURL               string
	NATSScoreSubject      string
	JWTSecret             string
	CloudinaryCloudName   string
	CloudinaryAPIKey      string
	CloudinaryAPISecret   string
	SubmissionFolder      string
	FeedbackFolder        string
	CertificateFolder     string
	OpenAIAPIKey          string
	OpenAIModel           string
	QualificationScore    float64
	CertificateProgram    string
	LeaderboardCacheTTL   time.Duration
	RecalculationLockTTL  time.Duration
	RecalculationLockWait time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA LMS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("nats.score_subject", "gema.scores.changed")
	v.SetDefault("cloudinary.submission_folder", "gema/submissions")
	v.SetDefault("cloudinary.feedback_folder", "gema/feedback")
	v.SetDefault("cloudinary.certificate_folder", "gema/certificates")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("scoring.qualification_score", 80)
	v.SetDefault("scoring.certificate_program", "General Qualification")
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("scoring.lock_ttl", "30s")
	v.SetDefault("scoring.lock_wait", "10s")

	connLifetime, err := parseDuration(v, "database.conn_max_lifetime")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "leaderboard.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	lockTTL, err := parseDuration(v, "scoring.lock_ttl")
	if err != nil {
		return Config{}, err
	}
	lockWait, err := parseDuration(v, "scoring.lock_wait")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		CORSAllowOrigins:      v.GetString("app.cors_allow_origins"),
		DatabaseURL:           v.GetString("database.url"),
		DatabaseMaxOpenConns:  v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:  v.GetInt("database.max_idle_conns"),
		DatabaseConnLifetime:  connLifetime,
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		NATSScoreSubject:      v.GetString("nats.score_subject"),
		JWTSecret:             v.GetString("jwt.secret"),
		CloudinaryCloudName:   v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:      v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:   v.GetString("cloudinary.api_secret"),
		SubmissionFolder:      v.GetString("cloudinary.submission_folder"),
		FeedbackFolder:        v.GetString("cloudinary.feedback_folder"),
		CertificateFolder:     v.GetString("cloudinary.certificate_folder"),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		OpenAIModel:           v.GetString("openai.model"),
		QualificationScore:    v.GetFloat64("scoring.qualification_score"),
		CertificateProgram:    strings.TrimSpace(v.GetString("scoring.certificate_program")),
		LeaderboardCacheTTL:   cacheTTL,
		RecalculationLockTTL:  lockTTL,
		RecalculationLockWait: lockWait,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	// Scores are stored on a 0-100 scale; a threshold outside it can never be met.
	if cfg.QualificationScore <= 0 || cfg.QualificationScore > 100 {
		return Config{}, fmt.Errorf("qualification score must be within (0, 100], got %v", cfg.QualificationScore)
	}

	if cfg.CertificateProgram == "" {
		cfg.CertificateProgram = "General Qualification"
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
