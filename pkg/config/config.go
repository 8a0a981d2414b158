package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	devJWTSecret       = "dev_secret"
	devSignedURLSecret = "dev_storage_secret"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Documents DocumentsConfig
	Blog      BlogConfig
	Dashboard DashboardConfig
	Events    EventsConfig
	Cleanup   CleanupConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectAttempts int
}

// DSN renders the lib/pq keyword connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// URL renders the postgres:// form expected by golang-migrate.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig backs sessions and the dashboard cache.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	TLS          bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// JWTConfig signs the session tokens handed to browsers.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// SessionConfig governs admin inactivity handling.
type SessionConfig struct {
	Timeout       time.Duration
	CheckInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects and tunes the blob storage backend.
type StorageConfig struct {
	Driver          string
	LocalDir        string
	SignedURLSecret string
	BlogBucket      string
	DocumentsBucket string
	S3Region        string
	S3Endpoint      string
	S3UsePathStyle  bool
}

// DocumentsConfig controls document uploads.
type DocumentsConfig struct {
	MaxFileSizeBytes int64
	Categories       []string
}

// BlogConfig controls blog publishing.
type BlogConfig struct {
	MaxImageSizeBytes int64
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL       time.Duration
	CacheNamespace string
	CacheEnabled   bool
}

// EventsConfig toggles the Kafka domain event publisher.
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// CleanupConfig sizes the superseded-blob cleanup queue.
type CleanupConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// Load reads .env and the environment, applies defaults and validates the result.
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnMaxIdleTime: parseDuration(v.GetString("DB_CONN_MAX_IDLE_TIME"), 30*time.Minute),
		ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
	}

	cfg.Redis = RedisConfig{
		Host:         v.GetString("REDIS_HOST"),
		Port:         v.GetInt("REDIS_PORT"),
		Password:     v.GetString("REDIS_PASSWORD"),
		DB:           v.GetInt("REDIS_DB"),
		PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
		TLS:          v.GetBool("REDIS_TLS"),
		DialTimeout:  parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		ReadTimeout:  parseDuration(v.GetString("REDIS_READ_TIMEOUT"), 3*time.Second),
		WriteTimeout: parseDuration(v.GetString("REDIS_WRITE_TIMEOUT"), 3*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Session = SessionConfig{
		Timeout:       parseDuration(v.GetString("SESSION_TIMEOUT"), 30*time.Minute),
		CheckInterval: parseDuration(v.GetString("SESSION_CHECK_INTERVAL"), time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:        v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		BlogBucket:      v.GetString("STORAGE_BLOG_BUCKET"),
		DocumentsBucket: v.GetString("STORAGE_DOCUMENTS_BUCKET"),
		S3Region:        v.GetString("S3_REGION"),
		S3Endpoint:      v.GetString("S3_ENDPOINT"),
		S3UsePathStyle:  v.GetBool("S3_USE_PATH_STYLE"),
	}

	maxDocSize := v.GetInt64("DOCUMENTS_MAX_FILE_SIZE")
	if maxDocSize <= 0 {
		maxDocSize = 25 * 1024 * 1024
	}
	cfg.Documents = DocumentsConfig{
		MaxFileSizeBytes: maxDocSize,
		Categories:       splitAndTrim(v.GetString("DOCUMENTS_CATEGORIES")),
	}

	maxImageSize := v.GetInt64("BLOG_MAX_IMAGE_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Blog = BlogConfig{MaxImageSizeBytes: maxImageSize}

	cfg.Dashboard = DashboardConfig{
		CacheTTL:       parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		CacheNamespace: v.GetString("CACHE_NAMESPACE"),
		CacheEnabled:   v.GetBool("ENABLE_CACHE"),
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("ENABLE_EVENTS"),
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_TOPIC"),
	}

	cfg.Cleanup = CleanupConfig{
		Workers:    v.GetInt("CLEANUP_WORKERS"),
		MaxRetries: v.GetInt("CLEANUP_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("CLEANUP_RETRY_DELAY"), 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Storage.Driver != StorageDriverLocal && c.Storage.Driver != StorageDriverS3 {
		problems = append(problems, fmt.Sprintf("STORAGE_DRIVER %q is not one of local, s3", c.Storage.Driver))
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		problems = append(problems, "KAFKA_BROKERS is required when ENABLE_EVENTS is set")
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret {
			problems = append(problems, "JWT_SECRET must be set in production")
		}
		if c.Storage.Driver == StorageDriverLocal && (c.Storage.SignedURLSecret == "" || c.Storage.SignedURLSecret == devSignedURLSecret) {
			problems = append(problems, "STORAGE_SIGNED_URL_SECRET must be set in production")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "taxdesk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_ATTEMPTS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_TLS", false)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "taxdesk-api")

	v.SetDefault("SESSION_TIMEOUT", "30m")
	v.SetDefault("SESSION_CHECK_INTERVAL", "60s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./storage")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", devSignedURLSecret)
	v.SetDefault("STORAGE_BLOG_BUCKET", "blog-images")
	v.SetDefault("STORAGE_DOCUMENTS_BUCKET", "tax-documents")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("DOCUMENTS_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("DOCUMENTS_CATEGORIES", "us-tax-forms,india-tax-forms,client-resources,tax-treaties")
	v.SetDefault("BLOG_MAX_IMAGE_SIZE", 5*1024*1024)

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("CACHE_NAMESPACE", "taxdesk")
	v.SetDefault("ENABLE_CACHE", true)

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "taxdesk.events")

	v.SetDefault("CLEANUP_WORKERS", 1)
	v.SetDefault("CLEANUP_MAX_RETRIES", 3)
	v.SetDefault("CLEANUP_RETRY_DELAY", "5s")
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
