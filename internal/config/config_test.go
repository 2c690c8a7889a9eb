package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "casino"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Audit.BatchInterval != time.Second || c.Audit.BatchSize != 10 || c.Audit.QueueCapacity != 1000 {
		t.Fatalf("unexpected audit defaults: %+v", c.Audit)
	}
	if c.ClientInfo.Timeout != 3*time.Second || c.ClientInfo.RPS != 5 {
		t.Fatalf("unexpected clientinfo defaults: %+v", c.ClientInfo)
	}
	if c.Retention.Schedule != "@daily" || c.Retention.ArchivePrefix != "audit-archive" {
		t.Fatalf("unexpected retention defaults: %+v", c.Retention)
	}
}

func TestValidate_ArchiveBucketNeedsRegion(t *testing.T) {
	c := validLocal()
	c.Retention.ArchiveBucket = "audit-archive"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for bucket without region")
	}
}

func TestValidate_QueueSmallerThanBatch(t *testing.T) {
	c := validLocal()
	c.Audit.BatchSize = 50
	c.Audit.QueueCapacity = 10
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for queue capacity below batch size")
	}
}

func TestLoad_ReadsAuditEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "casino")
	t.Setenv("DB_NAME", "casino")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("AUDIT_BATCH_SIZE", "25")
	t.Setenv("AUDIT_BATCH_INTERVAL", "500ms")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Audit.BatchSize != 25 || c.Audit.BatchInterval != 500*time.Millisecond {
		t.Fatalf("unexpected audit config: %+v", c.Audit)
	}
}

func TestLoad_RejectsNonIntegerBatchSize(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "casino")
	t.Setenv("DB_NAME", "casino")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("AUDIT_BATCH_SIZE", "ten")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
