package config

import (
	"errors"
	"os"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Cache     ScheduleCacheConfig
	Jobs      JobsConfig
	Export    ExportConfig
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
	// ConnectRetries is how many extra pings are attempted before startup fails.
	ConnectRetries int
	RetryDelay     time.Duration
	AutoMigrate    bool
}

// RedisConfig addresses the schedule cache. URL, when set, wins over the
// individual host fields.
type RedisConfig struct {
	URL         string
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig toggles bearer token checks on the schedule routes.
type AuthConfig struct {
	Enabled bool
}

// SchedulerConfig carries the optimizer tuning and request limits.
type SchedulerConfig struct {
	PopulationSize   int
	Generations      int
	CrossoverRate    float64
	MutationRate     float64
	GeneMutationRate float64
	TournamentSize   int
	Workers          int
	FillPlaceholders bool
	MaxSubjects      int
	Timeout          time.Duration
	ProposalTTL      time.Duration
}

// ScheduleCacheConfig governs caching of generated schedules in redis.
type ScheduleCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ExportConfig tunes CSV downloads for spreadsheet tools.
type ExportConfig struct {
	CSVDelimiter string
	CSVBOM       bool
}

// JobsConfig controls the in-process generation queue.
type JobsConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
	BufferSize int
	ResultTTL  time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

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

		ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("DB_RETRY_DELAY"), 2*time.Second),
		AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		URL:         v.GetString("REDIS_URL"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{Enabled: v.GetBool("ENABLE_AUTH")}

	cfg.Scheduler = SchedulerConfig{
		PopulationSize:   v.GetInt("SCHEDULER_POPULATION_SIZE"),
		Generations:      v.GetInt("SCHEDULER_GENERATIONS"),
		CrossoverRate:    v.GetFloat64("SCHEDULER_CROSSOVER_RATE"),
		MutationRate:     v.GetFloat64("SCHEDULER_MUTATION_RATE"),
		GeneMutationRate: v.GetFloat64("SCHEDULER_GENE_MUTATION_RATE"),
		TournamentSize:   v.GetInt("SCHEDULER_TOURNAMENT_SIZE"),
		Workers:          v.GetInt("SCHEDULER_WORKERS"),
		FillPlaceholders: v.GetBool("SCHEDULER_FILL_PLACEHOLDERS"),
		MaxSubjects:      v.GetInt("SCHEDULER_MAX_SUBJECTS"),
		Timeout:          parseDuration(v.GetString("SCHEDULER_TIMEOUT"), 30*time.Second),
		ProposalTTL:      parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
	}

	cfg.Cache = ScheduleCacheConfig{
		Enabled: v.GetBool("ENABLE_SCHEDULE_CACHE"),
		TTL:     parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Enabled:    v.GetBool("ENABLE_ASYNC_JOBS"),
		Workers:    v.GetInt("JOBS_WORKERS"),
		Retries:    v.GetInt("JOBS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		ResultTTL:  parseDuration(v.GetString("JOBS_RESULT_TTL"), time.Hour),
	}

	cfg.Export = ExportConfig{
		CSVDelimiter: v.GetString("EXPORT_CSV_DELIMITER"),
		CSVBOM:       v.GetBool("EXPORT_CSV_BOM"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_RETRIES", 3)
	v.SetDefault("DB_RETRY_DELAY", "2s")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("EXPORT_CSV_DELIMITER", ",")
	v.SetDefault("EXPORT_CSV_BOM", false)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUTH", false)

	v.SetDefault("SCHEDULER_POPULATION_SIZE", 50)
	v.SetDefault("SCHEDULER_GENERATIONS", 30)
	v.SetDefault("SCHEDULER_CROSSOVER_RATE", 0.8)
	v.SetDefault("SCHEDULER_MUTATION_RATE", 0.2)
	v.SetDefault("SCHEDULER_GENE_MUTATION_RATE", 0.2)
	v.SetDefault("SCHEDULER_TOURNAMENT_SIZE", 3)
	v.SetDefault("SCHEDULER_WORKERS", 0)
	v.SetDefault("SCHEDULER_FILL_PLACEHOLDERS", false)
	v.SetDefault("SCHEDULER_MAX_SUBJECTS", 128)
	v.SetDefault("SCHEDULER_TIMEOUT", "30s")
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")

	v.SetDefault("ENABLE_SCHEDULE_CACHE", false)
	v.SetDefault("SCHEDULE_CACHE_TTL", "30m")

	v.SetDefault("ENABLE_ASYNC_JOBS", false)
	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")
	v.SetDefault("JOBS_BUFFER_SIZE", 32)
	v.SetDefault("JOBS_RESULT_TTL", "1h")
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
