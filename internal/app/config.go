package app

import (
	"fmt"
	"os"
	"strings"
	"time"
	// STREAK_TIMEZONE must resolve in minimal images.
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"github.com/yungbote/progression-backend/internal/data/db"
	"github.com/yungbote/progression-backend/internal/platform/envutil"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/services"
	"github.com/yungbote/progression-backend/internal/session"
	"github.com/yungbote/progression-backend/internal/temporalx"
)

// Config is read from CONFIG_FILE (TOML) when set; environment variables
// override whatever the file provides.
type Config struct {
	Port           string `toml:"port"`
	LogMode        string `toml:"log_mode"`
	Environment    string `toml:"environment"`
	ServiceName    string `toml:"service_name"`
	ServiceVersion string `toml:"service_version"`

	JWTSecretKey          string `toml:"jwt_secret_key"`
	AccessTokenTTLSeconds int    `toml:"access_token_ttl"`

	DB DatabaseConfig `toml:"database"`

	CatalogPath       string `toml:"catalog_path"`
	CatalogDir        string `toml:"catalog_dir"`
	StreakTimezone    string `toml:"streak_timezone"`
	DailyMissionCount int    `toml:"daily_mission_count"`
	UnlockMode        string `toml:"unlock_mode"`

	RedisAddr    string `toml:"redis_addr"`
	RedisChannel string `toml:"redis_channel"`
	MetricsAddr  string `toml:"metrics_addr"`

	AllowedOrigins []string `toml:"allowed_origins"`

	CertificateDir     string `toml:"certificate_dir"`
	CertificateBucket  string `toml:"certificate_bucket"`
	CertificateBaseURL string `toml:"certificate_base_url"`
	StorageEmulator    string `toml:"storage_emulator_host"`

	SessionViewCacheSize int `toml:"session_view_cache_size"`

	// Temporal settings come from TEMPORAL_* only.
	Temporal temporalx.Config `toml:"-"`
}

type DatabaseConfig struct {
	Driver           string `toml:"driver"`
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"postgres_password"`
	PostgresName     string `toml:"postgres_name"`
	PostgresSSLMode  string `toml:"postgres_sslmode"`
	SQLitePath       string `toml:"sqlite_path"`
}

func (d DatabaseConfig) toDB() db.Config {
	return db.Config{
		Driver:           d.Driver,
		PostgresHost:     d.PostgresHost,
		PostgresPort:     d.PostgresPort,
		PostgresUser:     d.PostgresUser,
		PostgresPassword: d.PostgresPassword,
		PostgresName:     d.PostgresName,
		PostgresSSLMode:  d.PostgresSSLMode,
		SQLitePath:       d.SQLitePath,
	}
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

func (c Config) Addr() string {
	p := strings.TrimSpace(c.Port)
	if strings.HasPrefix(p, ":") {
		return p
	}
	return ":" + p
}

func defaultConfig() Config {
	return Config{
		Port:                  "8080",
		LogMode:               "development",
		Environment:           "development",
		ServiceName:           "progression-backend",
		JWTSecretKey:          "defaultsecret",
		AccessTokenTTLSeconds: 3600,
		DB: DatabaseConfig{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "progression",
			SQLitePath:   "progression.db",
		},
		StreakTimezone:       "UTC",
		DailyMissionCount:    3,
		UnlockMode:           services.UnlockModeInline,
		RedisChannel:         "progression",
		MetricsAddr:          ":9090",
		CertificateDir:       "certificates",
		SessionViewCacheSize: session.DefaultViewCacheSize,
	}
}

// LoadConfig applies defaults, then the TOML file named by CONFIG_FILE, then
// the environment.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if log != nil && cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.ServiceVersion = envutil.String("SERVICE_VERSION", cfg.ServiceVersion)

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTLSeconds = envutil.Int("ACCESS_TOKEN_TTL", cfg.AccessTokenTTLSeconds)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName)
	cfg.DB.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.PostgresSSLMode)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.CatalogPath = envutil.String("CATALOG_PATH", cfg.CatalogPath)
	cfg.CatalogDir = envutil.String("CATALOG_DIR", cfg.CatalogDir)
	cfg.StreakTimezone = envutil.String("STREAK_TIMEZONE", cfg.StreakTimezone)
	cfg.DailyMissionCount = envutil.Int("DAILY_MISSION_COUNT", cfg.DailyMissionCount)
	cfg.UnlockMode = strings.ToLower(envutil.String("UNLOCK_MODE", cfg.UnlockMode))

	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisChannel = envutil.String("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)

	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}

	cfg.CertificateDir = envutil.String("CERTIFICATE_DIR", cfg.CertificateDir)
	cfg.CertificateBucket = envutil.String("CERTIFICATE_BUCKET", cfg.CertificateBucket)
	cfg.CertificateBaseURL = envutil.String("CERTIFICATE_BASE_URL", cfg.CertificateBaseURL)
	cfg.StorageEmulator = envutil.String("STORAGE_EMULATOR_HOST", cfg.StorageEmulator)

	cfg.SessionViewCacheSize = envutil.Int("SESSION_VIEW_CACHE_SIZE", cfg.SessionViewCacheSize)

	cfg.Temporal = temporalx.LoadConfig()
}

func (c Config) validate() error {
	switch c.UnlockMode {
	case services.UnlockModeInline, services.UnlockModeTemporal:
	default:
		return fmt.Errorf("UNLOCK_MODE must be %q or %q, got %q", services.UnlockModeInline, services.UnlockModeTemporal, c.UnlockMode)
	}
	if c.UnlockMode == services.UnlockModeTemporal && !c.Temporal.Enabled() {
		return fmt.Errorf("UNLOCK_MODE=temporal requires TEMPORAL_ADDRESS")
	}
	if c.AccessTokenTTLSeconds <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.DailyMissionCount < 0 {
		return fmt.Errorf("DAILY_MISSION_COUNT must be non-negative")
	}
	if _, err := services.NewClock(c.StreakTimezone); err != nil {
		return fmt.Errorf("STREAK_TIMEZONE: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
