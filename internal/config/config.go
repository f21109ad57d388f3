package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Discord   DiscordConfig
	Engine    EngineConfig
	NATS      NATSConfig
	Scheduler SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BatchTimeoutSeconds   int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator token parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// DiscordConfig holds chat platform credentials.
type DiscordConfig struct {
	BotToken       string
	GuildIDs       []string
	MemberPageSize int
	LogChannelID   string
}

// EngineConfig tunes the role lifecycle engine.
type EngineConfig struct {
	StaffRoles           string
	MinLawyerLevel       int
	MinLeadAttorneyLevel int
	SeniorStaffLevel     int
	BatchPauseEvery      int
	BatchPauseMillis     int
	HistoryLimit         int
	HistoryBackend       string
	RoleChannels         map[string][]string
}

// NATSConfig configures outbound event fan-out.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
}

// SchedulerConfig configures periodic reconciliation jobs.
type SchedulerConfig struct {
	Enabled  bool
	SyncCron string
	ScanCron string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	roleChannels, err := ParseRoleChannels(os.Getenv("ROLE_CHANNELS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ROLE_CHANNELS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "firm-roster"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BatchTimeoutSeconds:   getEnvAsInt("BATCH_TIMEOUT_SECONDS", 1800),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "roster:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_ISSUER", "firm-roster"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Discord: DiscordConfig{
			BotToken:       os.Getenv("DISCORD_BOT_TOKEN"),
			GuildIDs:       splitList(os.Getenv("DISCORD_GUILD_IDS")),
			MemberPageSize: getEnvAsInt("DISCORD_MEMBER_PAGE_SIZE", 1000),
			LogChannelID:   os.Getenv("DISCORD_LOG_CHANNEL_ID"),
		},
		Engine: EngineConfig{
			StaffRoles:           os.Getenv("STAFF_ROLES"),
			MinLawyerLevel:       getEnvAsInt("MIN_LAWYER_LEVEL", 2),
			MinLeadAttorneyLevel: getEnvAsInt("MIN_LEAD_ATTORNEY_LEVEL", 3),
			SeniorStaffLevel:     getEnvAsInt("SENIOR_STAFF_LEVEL", 5),
			BatchPauseEvery:      getEnvAsInt("BATCH_PAUSE_EVERY", 50),
			BatchPauseMillis:     getEnvAsInt("BATCH_PAUSE_MS", 1000),
			HistoryLimit:         getEnvAsInt("CONFLICT_HISTORY_LIMIT", 100),
			HistoryBackend:       strings.ToLower(getEnv("CONFLICT_HISTORY_BACKEND", "memory")),
			RoleChannels:         roleChannels,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			Name:          getEnv("NATS_NAME", "firm-roster"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "roster.events"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", false),
			SyncCron: getEnv("SYNC_CRON", "0 */6 * * *"),
			ScanCron: getEnv("SCAN_CRON", "30 * * * *"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// BatchTimeout bounds guild-wide scans, syncs and bulk resolution; zero means
// no bound.
func (a AppConfig) BatchTimeout() time.Duration {
	if a.BatchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.BatchTimeoutSeconds) * time.Second
}

// Hierarchy builds the staff-role vocabulary, falling back to the default ladder.
func (e EngineConfig) Hierarchy() (*domain.RoleHierarchy, error) {
	if strings.TrimSpace(e.StaffRoles) == "" {
		return domain.DefaultRoleHierarchy(), nil
	}
	return domain.ParseRoleHierarchy(e.StaffRoles)
}

// BatchPause returns the cooperative delay between batch chunks.
func (e EngineConfig) BatchPause() time.Duration {
	if e.BatchPauseMillis <= 0 {
		return 0
	}
	return time.Duration(e.BatchPauseMillis) * time.Millisecond
}

// ParseRoleChannels reads "Role=chan1|chan2;Other Role=chan3".
func ParseRoleChannels(raw string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		role, channels, ok := strings.Cut(entry, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			return nil, fmt.Errorf("entry %q must look like Role=channel|channel", entry)
		}
		for _, ch := range strings.Split(channels, "|") {
			if ch = strings.TrimSpace(ch); ch != "" {
				out[role] = append(out[role], ch)
			}
		}
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
