package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
// Domain settings (roles, admin, cookie, notifier) live in the settings file instead.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	// DBMigrate applies the embedded schema at startup.
	DBMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// SettingsFile is the YAML domain settings path; reloaded on SIGHUP.
	SettingsFile string

	// SweepInterval enables the background expired-challenge sweeper when > 0.
	SweepInterval time.Duration

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SWAPI_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SWAPI_LOG_LEVEL", "info"),
		LogFormat: EnvString("SWAPI_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SWAPI_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SWAPI_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SWAPI_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SWAPI_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("SWAPI_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("SWAPI_HTTP_MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:   EnvInt("SWAPI_HTTP_MAX_BODY_BYTES", 1<<20),

		DatabaseURL: EnvString("SWAPI_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SWAPI_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SWAPI_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("SWAPI_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("SWAPI_READINESS_REQUIRE_DB", false),

		SettingsFile: EnvString("SWAPI_SETTINGS_FILE", ""),

		SweepInterval: EnvDuration("SWAPI_CHALLENGE_SWEEP_INTERVAL", 0),

		CORSAllowedOrigins:   EnvCSV("SWAPI_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("SWAPI_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SWAPI_CORS_MAX_AGE_SECONDS", 600),
	}
}
