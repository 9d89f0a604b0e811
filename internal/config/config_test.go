package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" || cfg.StorageDriver != DriverPostgres || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("unexpected pool defaults %d/%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.BreakerTimeout != 30*time.Second || cfg.BreakerFailureThreshold != 5 {
		t.Errorf("unexpected duration defaults %+v", cfg)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "3")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageDriver != DriverSQLite || cfg.SQLitePath != "/tmp/x.db" {
		t.Errorf("unexpected storage %+v", cfg)
	}
	if cfg.CacheTTL != 90*time.Second || cfg.BreakerFailureThreshold != 3 {
		t.Errorf("unexpected values %v %d", cfg.CacheTTL, cfg.BreakerFailureThreshold)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORT=9100\nREDIS_URL=redis://cache:6379/0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" || cfg.RedisURL != "redis://cache:6379/0" {
		t.Errorf("expected values from .env, got %+v", cfg)
	}
}

func TestResolvedAuthMode(t *testing.T) {
	if got := (&Config{Env: "development"}).ResolvedAuthMode(); got != AuthDevelopment {
		t.Errorf("expected development, got %s", got)
	}
	if got := (&Config{Env: "production"}).ResolvedAuthMode(); got != AuthJWT {
		t.Errorf("expected jwt, got %s", got)
	}
	if got := (&Config{Env: "development", AuthMode: AuthJWT}).ResolvedAuthMode(); got != AuthJWT {
		t.Errorf("explicit mode must win, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory dev", Config{Env: "development", StorageDriver: DriverMemory}, false},
		{"postgres without url", Config{Env: "development", StorageDriver: DriverPostgres}, true},
		{"postgres ok", Config{Env: "development", StorageDriver: DriverPostgres, DatabaseURL: "postgres://x", DBMaxConns: 2, DBMinConns: 1}, false},
		{"min above max", Config{Env: "development", StorageDriver: DriverPostgres, DatabaseURL: "postgres://x", DBMaxConns: 1, DBMinConns: 2}, true},
		{"sqlite without path", Config{Env: "development", StorageDriver: DriverSQLite}, true},
		{"unknown driver", Config{Env: "development", StorageDriver: "mysql"}, true},
		{"jwt without keys", Config{Env: "production", StorageDriver: DriverMemory}, true},
		{"jwt with signing key", Config{Env: "production", StorageDriver: DriverMemory, AuthSigningKey: "k"}, false},
		{"dev auth in production", Config{Env: "production", StorageDriver: DriverMemory, AuthMode: AuthDevelopment}, true},
		{"unknown auth", Config{Env: "development", StorageDriver: DriverMemory, AuthMode: "saml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
