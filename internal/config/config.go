package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Audit      AuditConfig
	ClientInfo ClientInfoConfig
	Retention  RetentionConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AuditConfig tunes the batching middleware.
type AuditConfig struct {
	BatchInterval time.Duration
	BatchSize     int
	QueueCapacity int
}

// ClientInfoConfig points the collector at the external IP and geolocation lookups.
// Empty URLs disable the lookup; the collector then reports "unknown".
type ClientInfoConfig struct {
	IPLookupURL  string
	GeoLookupURL string
	Timeout      time.Duration
	CacheTTL     time.Duration
	RPS          int
}

type RetentionConfig struct {
	// Schedule is a cron spec (robfig/cron syntax, descriptors allowed).
	Schedule string

	ArchiveBucket string
	ArchivePrefix string
	ArchiveRegion string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Audit.BatchInterval = mustDuration("AUDIT_BATCH_INTERVAL")
	{
		n, err := optionalInt("AUDIT_BATCH_SIZE")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Audit.BatchSize = n
	}
	{
		n, err := optionalInt("AUDIT_QUEUE_CAPACITY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Audit.QueueCapacity = n
	}

	c.ClientInfo.IPLookupURL = strings.TrimSpace(os.Getenv("CLIENTINFO_IP_URL"))
	c.ClientInfo.GeoLookupURL = strings.TrimSpace(os.Getenv("CLIENTINFO_GEO_URL"))
	c.ClientInfo.Timeout = mustDuration("CLIENTINFO_TIMEOUT")
	c.ClientInfo.CacheTTL = mustDuration("CLIENTINFO_CACHE_TTL")
	{
		n, err := optionalInt("CLIENTINFO_RPS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.ClientInfo.RPS = n
	}

	c.Retention.Schedule = strings.TrimSpace(os.Getenv("RETENTION_SCHEDULE"))
	c.Retention.ArchiveBucket = strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET"))
	c.Retention.ArchivePrefix = strings.TrimSpace(os.Getenv("ARCHIVE_S3_PREFIX"))
	c.Retention.ArchiveRegion = strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Audit.BatchInterval <= 0 {
		c.Audit.BatchInterval = time.Second
	}
	if c.Audit.BatchSize <= 0 {
		c.Audit.BatchSize = 10
	}
	if c.Audit.QueueCapacity <= 0 {
		c.Audit.QueueCapacity = 1000
	}
	if c.Audit.QueueCapacity < c.Audit.BatchSize {
		errs = append(errs, fmt.Errorf("AUDIT_QUEUE_CAPACITY must be >= AUDIT_BATCH_SIZE, got %d < %d", c.Audit.QueueCapacity, c.Audit.BatchSize))
	}

	if c.ClientInfo.Timeout <= 0 {
		c.ClientInfo.Timeout = 3 * time.Second
	}
	if c.ClientInfo.CacheTTL <= 0 {
		c.ClientInfo.CacheTTL = 24 * time.Hour
	}
	if c.ClientInfo.RPS <= 0 {
		c.ClientInfo.RPS = 5
	}

	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "@daily"
	}
	if c.Retention.ArchiveBucket != "" && c.Retention.ArchiveRegion == "" {
		errs = append(errs, errors.New("ARCHIVE_S3_REGION is required when ARCHIVE_S3_BUCKET is set"))
	}
	if c.Retention.ArchivePrefix == "" {
		c.Retention.ArchivePrefix = "audit-archive"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
