package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Capture     CaptureConfig     `yaml:"capture"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Logseq      LogseqConfig      `yaml:"logseq"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if err := c.Recognition.Validate(); err != nil {
		return err
	}
	if err := c.Logseq.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// LedgerConfig holds the path to the stroke ledger database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CaptureConfig holds stroke capture ingest configuration.
// Inbox is the directory watched for capture files dropped by the pen's
// companion software.
type CaptureConfig struct {
	Inbox string `yaml:"inbox"`
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Inbox, validation.Required),
	)
}

// RecognitionConfig holds handwriting recognition service configuration.
type RecognitionConfig struct {
	Endpoint string `yaml:"endpoint"`
	AppKey   string `yaml:"app_key"`
	HMACKey  string `yaml:"hmac_key"`
	Language string `yaml:"language"`
}

// Validate validates the recognition configuration.
func (c *RecognitionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AppKey, validation.Required),
		validation.Field(&c.HMACKey, validation.Required),
	)
}

// LogseqConfig holds Logseq HTTP API configuration.
type LogseqConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
	Container string `yaml:"container"`
}

// Validate validates the Logseq configuration.
func (c *LogseqConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.Token, validation.Required),
	)
}

// AuthConfig holds control API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Ledger: LedgerConfig{
			Path: "./penbridge.db",
		},
		Capture: CaptureConfig{
			Inbox: "./inbox",
		},
		Recognition: RecognitionConfig{
			Language: "en_US",
		},
		Logseq: LogseqConfig{
			Endpoint:  "http://127.0.0.1:12315",
			Container: "Recognized Content",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
