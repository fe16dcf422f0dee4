package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/texflow/pkg/config"
)

func TestAuthConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         AuthConfig
		wantErr     string
		wantMode    string
		wantEnabled bool
	}{
		{name: "disabled", cfg: AuthConfig{Mode: "disabled"}, wantMode: AuthModeDisabled},
		{name: "empty mode", cfg: AuthConfig{}, wantMode: AuthModeDisabled},
		{name: "token", cfg: AuthConfig{Mode: "token", Token: "s3cret"}, wantMode: AuthModeToken, wantEnabled: true},
		{name: "token without secret", cfg: AuthConfig{Mode: "token"}, wantErr: "token is empty"},
		{name: "unknown mode", cfg: AuthConfig{Mode: "magic", Token: "x"}, wantErr: "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if tt.cfg.Mode != tt.wantMode || tt.cfg.AuthEnabled() != tt.wantEnabled {
				t.Errorf("mode = %q enabled = %v", tt.cfg.Mode, tt.cfg.AuthEnabled())
			}
		})
	}
}

func TestConfig_NamesFailingSection(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = AuthModeToken
	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "auth: ") {
		t.Fatalf("Validate() = %v", err)
	}

	cfg = NewDefaultConfig()
	cfg.Mirror.Path = "./paper"
	if err := cfg.Validate(); err == nil || !strings.HasPrefix(err.Error(), "mirror: ") {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Mirror.Enabled() {
		t.Error("mirror should be off by default")
	}
	if cfg.Preview.AuthorDefault != "Unknown Author" {
		t.Errorf("author default = %q", cfg.Preview.AuthorDefault)
	}
}

func TestMirrorConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MirrorConfig
		wantErr bool
	}{
		{"disabled", MirrorConfig{}, false},
		{"enabled", MirrorConfig{Path: "./paper", ProjectID: "p1", Debounce: time.Second}, false},
		{"missing project", MirrorConfig{Path: "./paper"}, true},
		{"negative debounce", MirrorConfig{Path: "./paper", ProjectID: "p1", Debounce: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("TEXFLOW_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: /tmp/texflow.db
auth:
  mode: token
  token: ${TEXFLOW_TEST_TOKEN}
  default_owner: alice
preview:
  author_default: Anonymous
mirror:
  path: ./paper
  project_id: p1
  debounce: 500ms
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Address() != ":9090" || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "s3cret" || cfg.Auth.DefaultOwner != "alice" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Mirror.Debounce != 500*time.Millisecond || !cfg.Mirror.Enabled() {
		t.Errorf("mirror = %+v", cfg.Mirror)
	}
	if cfg.Preview.AuthorDefault != "Anonymous" {
		t.Errorf("preview = %+v", cfg.Preview)
	}
}
