package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/pagetext/internal/core"
)

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	unsetEnv(t, "PAGES_PER_CHUNK", "EXTRACT_CONCURRENCY", "EXTRACT_MAX_ATTEMPTS", "EXTRACT_PACING",
		"RATE_LIMIT_WAIT", "FALLBACK_PAGES", "EXTRACT_BACKEND", "EXTRACT_MODEL")

	c := LoadConfig()
	if c.PagesPerChunk != 5 || c.Concurrency != 2 || c.MaxAttempts != 4 {
		t.Errorf("unexpected chunking defaults %+v", c)
	}
	if c.Pacing != 6*time.Second || c.RateLimitWait != 30*time.Second || c.FallbackPages != 30 {
		t.Errorf("unexpected timing defaults %+v", c)
	}
	if c.Backend != BackendGemini || c.ExtractModel != "gemini-2.5-flash" {
		t.Errorf("unexpected backend defaults %+v", c)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PAGES_PER_CHUNK", "3")
	t.Setenv("EXTRACT_PACING", "1500ms")
	t.Setenv("RATE_LIMIT_WAIT", "10")
	t.Setenv("EXTRACT_BACKEND", "LOCAL")
	t.Setenv("EXTRACT_CONCURRENCY", "many")

	c := LoadConfig()
	if c.PagesPerChunk != 3 {
		t.Errorf("PagesPerChunk=%d", c.PagesPerChunk)
	}
	if c.Pacing != 1500*time.Millisecond {
		t.Errorf("Pacing=%s", c.Pacing)
	}
	if c.RateLimitWait != 10*time.Second {
		t.Errorf("RateLimitWait=%s", c.RateLimitWait)
	}
	if c.Backend != BackendLocal {
		t.Errorf("Backend=%q", c.Backend)
	}
	if c.Concurrency != 2 {
		t.Errorf("bad int should fall back to default, got %d", c.Concurrency)
	}
}

func validConfig() *Config {
	return &Config{
		Backend: BackendLocal, PagesPerChunk: 5, Concurrency: 2, MaxAttempts: 4, FallbackPages: 30,
		Pacing: time.Second, RateLimitWait: time.Second, TransportWait: time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"zero chunk", func(c *Config) { c.PagesPerChunk = 0 }, "PAGES_PER_CHUNK"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "EXTRACT_CONCURRENCY"},
		{"negative pacing", func(c *Config) { c.Pacing = -time.Second }, "durations"},
		{"gemini without key", func(c *Config) { c.Backend = BackendGemini }, "GEMINI_API_KEY"},
		{"unknown backend", func(c *Config) { c.Backend = "ocr" }, "unknown extraction backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, core.ErrInvalidConfig) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err=%v want ErrInvalidConfig mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateService(t *testing.T) {
	c := validConfig()
	err := c.ValidateService()
	for _, want := range []string{"DATABASE_URL", "BUCKET_NAME", "JWT_SECRET"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("err=%v should mention %s", err, want)
		}
	}

	c.DatabaseURL, c.BucketName, c.JWTSecret, c.Workers = "postgres://x", "b", "s", 1
	if err := c.ValidateService(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}
