package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	koanf "github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "CINEPUMA_"

// Supported document store backends.
const (
	StoreNone      = ""
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string `koanf:"port"`
	Env              string `koanf:"env"`
	LogLevel         string `koanf:"log_level"`
	LogFile          string `koanf:"log_file"`
	ReadTimeoutSecs  int    `koanf:"server_read_timeout"`
	WriteTimeoutSecs int    `koanf:"server_write_timeout"`
	IdleTimeoutSecs  int    `koanf:"server_idle_timeout"`

	AppID           string `koanf:"app_id"`
	SessionSecret   string `koanf:"session_secret"`
	SessionTTLHours int    `koanf:"session_ttl_hours"`
	CookieSecure    bool   `koanf:"cookie_secure"`

	StoreBackend      string `koanf:"store_backend"`
	DBURL             string `koanf:"db_url"`
	DBMaxConns        int    `koanf:"db_max_conns"`
	DBMinConns        int    `koanf:"db_min_conns"`
	DBMaxIdleSecs     int    `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs     int    `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs int    `koanf:"db_conn_timeout_secs"`
	DBStatementCache  int    `koanf:"db_statement_cache_capacity"`
	DBMigrate         bool   `koanf:"db_migrate"`

	FirebaseProjectID       string `koanf:"firebase_project_id"`
	FirebaseCredentialsFile string `koanf:"firebase_credentials_file"`
	FirebaseAPIKey          string `koanf:"firebase_api_key"`
	IdentityToolkitURL      string `koanf:"identity_toolkit_url"`
	AuthTimeoutSecs         int    `koanf:"auth_timeout_secs"`

	TMDBURL         string `koanf:"tmdb_url"`
	TMDBAPIKey      string `koanf:"tmdb_api_key"`
	TMDBLanguage    string `koanf:"tmdb_language"`
	TMDBImageURL    string `koanf:"tmdb_image_url"`
	TMDBTimeoutSecs int    `koanf:"tmdb_timeout_secs"`
}

func defaults() Config {
	return Config{
		Port:               "8080",
		Env:                "production",
		LogLevel:           "info",
		ReadTimeoutSecs:    15,
		WriteTimeoutSecs:   15,
		IdleTimeoutSecs:    60,
		AppID:              "cinepuma",
		SessionTTLHours:    24 * 14,
		DBMaxConns:         20,
		DBMinConns:         2,
		DBMaxIdleSecs:      300,
		DBMaxLifeSecs:      3600,
		DBConnTimeoutSecs:  10,
		DBStatementCache:   256,
		DBMigrate:          true,
		IdentityToolkitURL: "https://identitytoolkit.googleapis.com",
		AuthTimeoutSecs:    10,
		TMDBURL:            "https://api.themoviedb.org/3",
		TMDBLanguage:       "es-ES",
		TMDBImageURL:       "https://image.tmdb.org/t/p/w500",
		TMDBTimeoutSecs:    5,
	}
}

// Load reads an optional .env file, overlays CINEPUMA_* environment variables on
// the defaults and validates the result.
func Load() (Config, error) {
	envFile := os.Getenv(EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.SessionSecret == "" {
		return fmt.Errorf("%sSESSION_SECRET is required", EnvPrefix)
	}
	if cfg.SessionTTLHours <= 0 {
		return fmt.Errorf("%sSESSION_TTL_HOURS must be positive", EnvPrefix)
	}
	if strings.TrimSpace(cfg.AppID) == "" || strings.Contains(cfg.AppID, "/") {
		return fmt.Errorf("%sAPP_ID must be a non-empty path segment", EnvPrefix)
	}

	switch cfg.StoreBackend {
	case StoreNone, StoreMemory:
	case StorePostgres:
		if cfg.DBURL == "" {
			return fmt.Errorf("%sDB_URL is required for the postgres store", EnvPrefix)
		}
	case StoreFirestore:
		if cfg.FirebaseProjectID == "" {
			return fmt.Errorf("%sFIREBASE_PROJECT_ID is required for the firestore store", EnvPrefix)
		}
	default:
		return fmt.Errorf("%sSTORE_BACKEND %q is not one of memory, postgres, firestore", EnvPrefix, cfg.StoreBackend)
	}

	if cfg.TMDBTimeoutSecs <= 0 {
		return fmt.Errorf("%sTMDB_TIMEOUT_SECS must be positive", EnvPrefix)
	}
	if cfg.AuthTimeoutSecs <= 0 {
		return fmt.Errorf("%sAUTH_TIMEOUT_SECS must be positive", EnvPrefix)
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("%sDB_MAX_CONNS must be positive", EnvPrefix)
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("%sDB_MIN_CONNS must be non-negative", EnvPrefix)
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("%sDB_MIN_CONNS cannot exceed DB_MAX_CONNS", EnvPrefix)
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("%sDB_STATEMENT_CACHE_CAPACITY must be non-negative", EnvPrefix)
	}
	return nil
}

// Development reports whether the server runs in a development environment.
func (cfg Config) Development() bool {
	return cfg.Env == "development" || cfg.Env == "dev"
}

// AuthEnabled reports whether password and anonymous sign-in can be offered.
func (cfg Config) AuthEnabled() bool {
	return cfg.FirebaseAPIKey != ""
}

// TokenSignInEnabled reports whether ID tokens can be verified with the Admin SDK.
func (cfg Config) TokenSignInEnabled() bool {
	return cfg.FirebaseProjectID != ""
}
