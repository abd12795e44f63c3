package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func parseEnv(t *testing.T, vars map[string]string) (*Config, error) {
	t.Helper()
	return Parse(env.Options{Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parseEnv(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/matchroom",
		"JWT_SECRET_KEY": "secret",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.StoreDriver != StoreDriverPostgres {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverPostgres)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.AccessTokenTTL != 7*24*time.Hour {
		t.Errorf("AccessTokenTTL = %s, want 168h", cfg.AccessTokenTTL)
	}
	if cfg.TurnTimeoutPolicy != "none" {
		t.Errorf("TurnTimeoutPolicy = %q, want none", cfg.TurnTimeoutPolicy)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.R2Configured() {
		t.Error("R2Configured() = true without R2 variables")
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parseEnv(t, map[string]string{
		"STORE_DRIVER":              "MEMORY",
		"JWT_SECRET_KEY":            "secret",
		"SERVER_PORT":               "9090",
		"LOG_LEVEL":                 "DEBUG",
		"ACCESS_TOKEN_TTL":          "24h",
		"PHASE_SKIP_OPTIONAL":       "true",
		"AUTO_FINALIZE_ON_ACCEPT":   "true",
		"REJECT_STALE_VERIFICATION": "true",
		"TURN_TIMEOUT_POLICY":       "pass_turn",
		"CORS_ALLOWED_ORIGINS":      "https://a.example,https://b.example",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverMemory)
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.AccessTokenTTL != 24*time.Hour {
		t.Errorf("AccessTokenTTL = %s, want 24h", cfg.AccessTokenTTL)
	}
	if !cfg.PhaseSkipOptional || !cfg.AutoFinalizeOnAccept || !cfg.RejectStaleVerification {
		t.Errorf("policy flags not parsed: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins = %v, want 2 entries", cfg.CORSAllowedOrigins)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			vars:    map[string]string{"STORE_DRIVER": "memory"},
			wantErr: "JWT_SECRET_KEY",
		},
		{
			name:    "postgres without database url",
			vars:    map[string]string{"JWT_SECRET_KEY": "s"},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown store driver",
			vars:    map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "mysql"},
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "port out of range",
			vars:    map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "SERVER_PORT": "70000"},
			wantErr: "SERVER_PORT",
		},
		{
			name:    "unknown turn policy",
			vars:    map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "TURN_TIMEOUT_POLICY": "forfeit"},
			wantErr: "TURN_TIMEOUT_POLICY",
		},
		{
			name:    "zero token ttl",
			vars:    map[string]string{"JWT_SECRET_KEY": "s", "STORE_DRIVER": "memory", "ACCESS_TOKEN_TTL": "0s"},
			wantErr: "ACCESS_TOKEN_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEnv(t, tt.vars)
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
