package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/texflow/internal/latex"
	"github.com/starford/texflow/internal/mirror"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config is the texflow configuration file.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Preview PreviewConfig     `yaml:"preview"`
	Mirror  MirrorConfig      `yaml:"mirror"`
}

// ApplicationConfig holds process-wide settings.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// SQLiteConfig locates the document store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// DefaultOwner is the owner assumed for requests without an X-Owner-ID
// header and for the MCP server. Leaving it empty makes the header
// mandatory.
type AuthConfig struct {
	Mode         string `yaml:"mode"`
	Token        string `yaml:"token"`
	DefaultOwner string `yaml:"default_owner"`
}

// PreviewConfig holds preview rendering options.
type PreviewConfig struct {
	// AuthorDefault is shown by the compile endpoint when a document has no
	// \author.
	AuthorDefault string `yaml:"author_default"`
}

// MirrorConfig binds a local directory to a project. The mirror is off
// when Path is empty.
type MirrorConfig struct {
	Path      string        `yaml:"path"`
	ProjectID string        `yaml:"project_id"`
	Debounce  time.Duration `yaml:"debounce"`
}

// NewDefaultConfig returns the configuration used for keys the file omits.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8080},
		},
		SQLite: SQLiteConfig{Path: "./texflow.db"},
		Auth: AuthConfig{
			Mode:         AuthModeDisabled,
			DefaultOwner: "local",
		},
		Preview: PreviewConfig{AuthorDefault: latex.DefaultAuthorCompile},
		Mirror:  MirrorConfig{Debounce: mirror.DefaultDebounce},
	}
}

// Validate checks every section and names the first one that fails.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"sqlite", &c.SQLite},
		{"auth", &c.Auth},
		{"mirror", &c.Mirror},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate normalises an empty mode to disabled and checks the token.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// Enabled reports whether a directory mirror is configured.
func (c *MirrorConfig) Enabled() bool {
	return c.Path != ""
}

// Validate requires a project for an enabled mirror.
func (c *MirrorConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ProjectID, validation.Required),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}
