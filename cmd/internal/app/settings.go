package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"swapi/cmd/internal/auth/roles"
	"swapi/cmd/internal/auth/session"
	"swapi/cmd/internal/notify"
	"swapi/cmd/internal/rpc"

	"gopkg.in/yaml.v3"
)

// FileSettings is the YAML domain settings document.
type FileSettings struct {
	DefaultRole string              `yaml:"default_role"`
	AdminUser   string              `yaml:"admin_user"`
	AdminEmail  string              `yaml:"admin_email"`
	Roles       map[string][]string `yaml:"roles"`

	Cookie CookieSettings `yaml:"cookie"`
	Notify NotifySettings `yaml:"notify"`
}

// CookieSettings configures the session cookie (and the body token key).
type CookieSettings struct {
	Name   string `yaml:"name"`
	Secure bool   `yaml:"secure"`
	Path   string `yaml:"path"`
}

// NotifySettings selects and configures the OTP mail transport.
type NotifySettings struct {
	// Debug logs messages instead of sending them.
	Debug        bool   `yaml:"debug"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from"`
}

// DefaultFileSettings is used when no settings file is configured: three roles, debug mail.
func DefaultFileSettings() FileSettings {
	return FileSettings{
		DefaultRole: "user",
		Roles: map[string][]string{
			session.RootRole: {"accountmanager", "user"},
			"accountmanager": nil,
			"user":           nil,
		},
		Cookie: CookieSettings{Name: "token", Path: "/"},
		Notify: NotifySettings{Debug: true, SMTPPort: 587},
	}
}

// LoadSettings reads path (or the defaults when path is empty) and applies env overrides.
func LoadSettings(path string) (FileSettings, error) {
	s := DefaultFileSettings()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path.
		if err != nil {
			return FileSettings{}, fmt.Errorf("read settings: %w", err)
		}
		if s, err = decodeSettings(b); err != nil {
			return FileSettings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	s.Notify.Debug = EnvBool("SWAPI_NOTIFY_DEBUG", s.Notify.Debug)
	if pw, ok := envValue("SWAPI_SMTP_PASSWORD"); ok {
		s.Notify.SMTPPassword = pw
	}
	return s, s.Validate()
}

// decodeSettings overlays a YAML document on the defaults. Unknown keys are errors.
func decodeSettings(b []byte) (FileSettings, error) {
	s := DefaultFileSettings()
	// A file that declares roles replaces the default graph entirely.
	s.Roles = nil

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return FileSettings{}, err
	}
	if s.Roles == nil {
		s.Roles = DefaultFileSettings().Roles
	}
	return s, nil
}

// Validate checks everything ApplySettings and the notifier constructors would reject.
func (s FileSettings) Validate() error {
	if err := s.Session().Validate(); err != nil {
		return err
	}
	if !s.Notify.Debug {
		if err := s.smtpConfig().Validate(); err != nil {
			return fmt.Errorf("%w (set notify.debug to log mail instead)", err)
		}
	}
	return nil
}

// Session returns the settings applied to the session manager.
func (s FileSettings) Session() session.Settings {
	return session.Settings{
		DefaultRole: s.DefaultRole,
		AdminUser:   s.AdminUser,
		AdminEmail:  s.AdminEmail,
		Roles:       roles.Graph(s.Roles),
	}
}

// CookieConfig returns the dispatcher cookie configuration.
func (s FileSettings) CookieConfig() rpc.CookieConfig {
	c := rpc.DefaultCookieConfig()
	if v := strings.TrimSpace(s.Cookie.Name); v != "" {
		c.Name = v
	}
	if v := strings.TrimSpace(s.Cookie.Path); v != "" {
		c.Path = v
	}
	c.Secure = s.Cookie.Secure
	return c
}

func (s FileSettings) smtpConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     s.Notify.SMTPHost,
		Port:     s.Notify.SMTPPort,
		Username: s.Notify.SMTPUsername,
		Password: s.Notify.SMTPPassword,
		From:     s.Notify.From,
	}
}

// Notifier builds the delivery transport selected by the settings.
func (s FileSettings) Notifier(log *slog.Logger) (notify.Notifier, error) {
	if s.Notify.Debug {
		return notify.NewLogNotifier(log), nil
	}
	return notify.NewSMTPNotifier(s.smtpConfig())
}
