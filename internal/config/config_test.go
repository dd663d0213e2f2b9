package config

import (
	"strings"
	"testing"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.Port != 8000 {
		t.Errorf("Port = %v, want 8000", c.Port)
	}
	if c.DBPath != "pedidos.db" {
		t.Errorf("DBPath = %v, want pedidos.db", c.DBPath)
	}
	if c.TokenTTLMinutes != 720 {
		t.Errorf("TokenTTLMinutes = %v, want 720", c.TokenTTLMinutes)
	}
	if c.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %v, want %v", c.MaxUploadBytes, 10<<20)
	}
	if c.ParseWorkers != 4 {
		t.Errorf("ParseWorkers = %v, want 4", c.ParseWorkers)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("DB_PATH", "/tmp/test-pedidos.db")
	t.Setenv("TOKEN_TTL_MINUTES", "60")
	t.Setenv("PARSE_WORKERS", "2")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Port != 9100 {
		t.Errorf("Port = %v, want 9100", c.Port)
	}
	if c.DBPath != "/tmp/test-pedidos.db" {
		t.Errorf("DBPath = %v", c.DBPath)
	}
	if c.TokenTTLMinutes != 60 {
		t.Errorf("TokenTTLMinutes = %v, want 60", c.TokenTTLMinutes)
	}
	if c.ParseWorkers != 2 {
		t.Errorf("ParseWorkers = %v, want 2", c.ParseWorkers)
	}
}

func TestFromEnv_BadNumber(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestValidate_ProductionSecret(t *testing.T) {
	c := Default()
	c.Environment = "production"
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error: production with dev secret")
	}
	if !strings.Contains(err.Error(), "secret") {
		t.Errorf("error should mention the secret, got %v", err)
	}

	c.JWTSecret = "short"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error: production secret too short")
	}

	c.JWTSecret = strings.Repeat("x", 32)
	if err := c.Validate(); err != nil {
		t.Errorf("32-byte secret should validate, got %v", err)
	}
}

func TestValidate_Ranges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad environment", func(c *Config) { c.Environment = "staging" }},
		{"zero ttl", func(c *Config) { c.TokenTTLMinutes = 0 }},
		{"zero upload", func(c *Config) { c.MaxUploadBytes = 0 }},
		{"zero workers", func(c *Config) { c.ParseWorkers = 0 }},
	}
	for _, tc := range cases {
		c := Default()
		tc.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
