package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the tubedrop server and bots.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Jobs      JobsConfig
	Fetcher   FetcherConfig
	Admin     AdminConfig
	Retention RetentionConfig
	Telegram  TelegramConfig
	Discord   DiscordConfig
	Bot       BotConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type JobsConfig struct {
	// Mode is "unbounded" or "exclusive". Empty means the binary's default.
	Mode            string
	DownloadDir     string
	DownloadEnabled bool
	SourcePattern   string
	StatusTTL       time.Duration
}

type FetcherConfig struct {
	Provider         string
	BinaryPath       string
	AudioQuality     string
	ProgressInterval time.Duration
}

type AdminConfig struct {
	User         string
	Password     string
	PasswordHash string
	SessionTTL   time.Duration
}

// Enabled reports whether admin login is configured.
func (a AdminConfig) Enabled() bool {
	return a.User != "" && (a.Password != "" || a.PasswordHash != "")
}

type RetentionConfig struct {
	// Schedule is a cron spec; empty disables the sweeper.
	Schedule string
	MaxAge   time.Duration
}

type TelegramConfig struct {
	Token        string
	AllowedUsers []int64
}

type DiscordConfig struct {
	Token        string
	AppID        string
	GuildID      string
	AllowedUsers []string
}

type BotConfig struct {
	KeepArtifacts bool
	EditInterval  time.Duration
}

var (
	validModes     = map[string]bool{"": true, "unbounded": true, "exclusive": true}
	validProviders = map[string]bool{"ytdlp": true, "mock": true}
)

// Load reads configuration from environment variables and returns a validated Config.
// When TUBEDROP_CONFIG names a TOML file, its top-level keys (the same names as the
// environment variables) supply values for anything the environment leaves unset.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("TUBEDROP_CONFIG"))
	if err != nil {
		return nil, err
	}

	telegramUsers, err := parseInt64List(src.get("TELEGRAM_ALLOWED_USERS"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ALLOWED_USERS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               src.envInt("TUBEDROP_PORT", 8080),
			Env:                src.envString("TUBEDROP_ENV", "development"),
			RateLimitPerMinute: src.envInt("RATE_LIMIT_PER_MINUTE", 30),
		},
		Database: DatabaseConfig{
			URL:             src.get("DATABASE_URL"),
			MaxOpenConns:    src.envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    src.envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: src.envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: src.get("REDIS_URL"),
		},
		Jobs: JobsConfig{
			Mode:            strings.ToLower(src.get("JOBS_MODE")),
			DownloadDir:     src.envString("DOWNLOAD_DIR", "downloads"),
			DownloadEnabled: src.envBool("DOWNLOAD_ENABLED", true),
			SourcePattern:   src.get("SOURCE_PATTERN"),
			StatusTTL:       src.envDuration("JOB_STATUS_TTL", 30*time.Minute),
		},
		Fetcher: FetcherConfig{
			Provider:         src.envString("FETCHER", "ytdlp"),
			BinaryPath:       src.get("YTDLP_PATH"),
			AudioQuality:     src.envString("YTDLP_AUDIO_QUALITY", "192K"),
			ProgressInterval: src.envDuration("YTDLP_PROGRESS_INTERVAL", 500*time.Millisecond),
		},
		Admin: AdminConfig{
			User:         src.get("PANEL_USER"),
			Password:     src.get("PANEL_PASS"),
			PasswordHash: src.get("PANEL_PASS_HASH"),
			SessionTTL:   src.envDuration("ADMIN_SESSION_TTL", 12*time.Hour),
		},
		Retention: RetentionConfig{
			Schedule: src.get("RETENTION_SCHEDULE"),
			MaxAge:   src.envDuration("RETENTION_MAX_AGE", 24*time.Hour),
		},
		Telegram: TelegramConfig{
			Token:        src.get("TELEGRAM_TOKEN"),
			AllowedUsers: telegramUsers,
		},
		Discord: DiscordConfig{
			Token:        src.get("DISCORD_TOKEN"),
			AppID:        src.get("DISCORD_APP_ID"),
			GuildID:      src.get("DISCORD_GUILD_ID"),
			AllowedUsers: parseStringList(src.get("DISCORD_ALLOWED_USERS")),
		},
		Bot: BotConfig{
			KeepArtifacts: src.envBool("BOT_KEEP_ARTIFACTS", false),
			EditInterval:  src.envDuration("BOT_EDIT_INTERVAL", 2*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("TUBEDROP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.Server.RateLimitPerMinute)
	}

	if c.Database.URL != "" &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}

	if !validModes[c.Jobs.Mode] {
		return fmt.Errorf("JOBS_MODE must be one of unbounded, exclusive; got %q", c.Jobs.Mode)
	}
	if c.Jobs.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR must not be empty")
	}
	if c.Jobs.SourcePattern != "" {
		if _, err := regexp.Compile(c.Jobs.SourcePattern); err != nil {
			return fmt.Errorf("SOURCE_PATTERN is not a valid regular expression: %w", err)
		}
	}
	if c.Jobs.StatusTTL <= 0 {
		return fmt.Errorf("JOB_STATUS_TTL must be positive")
	}

	if !validProviders[c.Fetcher.Provider] {
		return fmt.Errorf("FETCHER must be one of ytdlp, mock; got %q", c.Fetcher.Provider)
	}
	if c.Fetcher.ProgressInterval <= 0 {
		return fmt.Errorf("YTDLP_PROGRESS_INTERVAL must be positive")
	}

	if (c.Admin.Password != "" || c.Admin.PasswordHash != "") && c.Admin.User == "" {
		return fmt.Errorf("PANEL_USER is required when PANEL_PASS or PANEL_PASS_HASH is set")
	}

	if c.Retention.Schedule != "" && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be positive when RETENTION_SCHEDULE is set")
	}

	if c.Discord.Token != "" && c.Discord.AppID == "" {
		return fmt.Errorf("DISCORD_APP_ID is required when DISCORD_TOKEN is set")
	}
	if c.Bot.EditInterval <= 0 {
		return fmt.Errorf("BOT_EDIT_INTERVAL must be positive")
	}

	return nil
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// RequireBot checks that at least one bot front-end is configured.
func (c *Config) RequireBot() error {
	if c.Telegram.Token == "" && c.Discord.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN or DISCORD_TOKEN is required")
	}
	return nil
}

// source resolves keys from the environment first, then the optional file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			s.file[strings.ToUpper(k)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config file %s: key %q must not be a table", path, k)
		default:
			s.file[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return s, nil
}

func (s *source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s *source) envString(key, defaultVal string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *source) envInt(key string, defaultVal int) int {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *source) envBool(key string, defaultVal bool) bool {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s *source) envDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseStringList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64List(v string) ([]int64, error) {
	var out []int64
	for _, p := range parseStringList(v) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}
