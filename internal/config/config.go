package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
	"github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot      BotConfig
	Iris     IrisConfig
	Reddit   RedditConfig
	Markov   MarkovConfig
	Commands CommandsConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Logging  LoggingConfig
}

type BotConfig struct {
	Prefix       string
	Name         string
	Version      string
	Presence     string
	UserID       string
	AdminUserIDs []string
	LaneBuffer   int
}

// UserAgent is the label sent with corpus requests.
func (b BotConfig) UserAgent() string {
	return fmt.Sprintf("%s - %s", b.Name, b.Version)
}

type IrisConfig struct {
	BaseURL string
	WSURL   string
	Token   string
}

type RedditConfig struct {
	BaseURL      string
	CommentLimit int
	Timeout      time.Duration
}

type MarkovConfig struct {
	Order           int
	MaxTries        int
	MaxOverlapRatio float64
	MaxOverlapTotal int
	MaxWords        int
}

type CommandsConfig struct {
	// Cooldowns holds the window per command; scope comes from Scopes or
	// defaults to user.
	Cooldowns  map[string]time.Duration
	Scopes     map[string]cooldown.Scope
	PolicyFile string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type LoggingConfig struct {
	Level string
	File  string
}

// commandNames are the commands whose cooldown can be set from the
// environment as COOLDOWN_<NAME>.
var commandNames = []string{"markov", "ping", "help", "restart"}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bot: BotConfig{
			Prefix:       getEnv("BOT_PREFIX", "!"),
			Name:         getEnv("BOT_NAME", "markov-bot"),
			Version:      getEnv("BOT_VERSION", "1.0.0"),
			Presence:     getEnv("BOT_PRESENCE", ""),
			UserID:       getEnv("BOT_USER_ID", ""),
			AdminUserIDs: util.SplitCommaSeparated(getEnv("ADMIN_USER_IDS", "")),
			LaneBuffer:   getEnvInt("LANE_BUFFER", constants.LaneConfig.Buffer),
		},
		Iris: IrisConfig{
			BaseURL: getEnv("IRIS_BASE_URL", "http://localhost:3000"),
			WSURL:   getEnv("IRIS_WS_URL", "ws://localhost:3000/ws"),
			Token:   getEnv("IRIS_TOKEN", ""),
		},
		Reddit: RedditConfig{
			BaseURL:      getEnv("REDDIT_BASE_URL", constants.RedditConfig.BaseURL),
			CommentLimit: getEnvInt("REDDIT_COMMENT_LIMIT", constants.RedditConfig.CommentLimit),
			Timeout:      getEnvDuration("REDDIT_TIMEOUT", constants.RedditConfig.Timeout),
		},
		Markov: MarkovConfig{
			Order:           getEnvInt("MARKOV_ORDER", constants.MarkovDefaults.Order),
			MaxTries:        getEnvInt("MARKOV_MAX_TRIES", constants.MarkovDefaults.MaxTries),
			MaxOverlapRatio: getEnvFloat("MARKOV_MAX_OVERLAP_RATIO", constants.MarkovDefaults.MaxOverlapRatio),
			MaxOverlapTotal: getEnvInt("MARKOV_MAX_OVERLAP_TOTAL", constants.MarkovDefaults.MaxOverlapTotal),
			MaxWords:        getEnvInt("MARKOV_MAX_WORDS", constants.MarkovDefaults.MaxWords),
		},
		Commands: CommandsConfig{
			Cooldowns:  loadCooldowns(),
			Scopes:     make(map[string]cooldown.Scope),
			PolicyFile: getEnv("COMMAND_POLICY_FILE", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("CORPUS_CACHE_TTL", constants.RedditConfig.CacheTTL),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "markov"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "markov_bot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if cfg.Commands.PolicyFile != "" {
		if err := cfg.Commands.applyPolicyFile(cfg.Commands.PolicyFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return errors.NewValidationError("BOT_PREFIX is required", "BOT_PREFIX", c.Bot.Prefix)
	}
	if c.Iris.BaseURL == "" {
		return errors.NewValidationError("IRIS_BASE_URL is required", "IRIS_BASE_URL", c.Iris.BaseURL)
	}
	if c.Iris.WSURL == "" {
		return errors.NewValidationError("IRIS_WS_URL is required", "IRIS_WS_URL", c.Iris.WSURL)
	}
	if c.Markov.Order < 1 {
		return errors.NewValidationError("MARKOV_ORDER must be at least 1", "MARKOV_ORDER", c.Markov.Order)
	}
	if c.Markov.MaxTries < 1 {
		return errors.NewValidationError("MARKOV_MAX_TRIES must be at least 1", "MARKOV_MAX_TRIES", c.Markov.MaxTries)
	}
	if c.Markov.MaxOverlapRatio <= 0 || c.Markov.MaxOverlapRatio > 1 {
		return errors.NewValidationError("MARKOV_MAX_OVERLAP_RATIO must be in (0, 1]", "MARKOV_MAX_OVERLAP_RATIO", c.Markov.MaxOverlapRatio)
	}
	if c.Markov.MaxWords < 1 {
		return errors.NewValidationError("MARKOV_MAX_WORDS must be at least 1", "MARKOV_MAX_WORDS", c.Markov.MaxWords)
	}
	if c.Bot.LaneBuffer < 1 {
		return errors.NewValidationError("LANE_BUFFER must be at least 1", "LANE_BUFFER", c.Bot.LaneBuffer)
	}
	for name, window := range c.Commands.Cooldowns {
		if window < 0 {
			return errors.NewValidationError("cooldown must not be negative", "COOLDOWN_"+strings.ToUpper(name), window.String())
		}
	}
	return nil
}

// Policies returns the cooldown policy of every command with a window.
func (c *Config) Policies() map[string]cooldown.Policy {
	policies := make(map[string]cooldown.Policy, len(c.Commands.Cooldowns))
	for name, window := range c.Commands.Cooldowns {
		if window <= 0 {
			continue
		}
		scope, ok := c.Commands.Scopes[name]
		if !ok {
			scope = cooldown.ScopeUser
		}
		policies[name] = cooldown.Policy{Window: window, Scope: scope}
	}
	return policies
}

// IsAdmin reports whether id is listed in ADMIN_USER_IDS.
func (b BotConfig) IsAdmin(id string) bool {
	for _, admin := range b.AdminUserIDs {
		if admin == id {
			return true
		}
	}
	return false
}

type policyFile struct {
	Commands map[string]struct {
		Window string `yaml:"window"`
		Scope  string `yaml:"scope"`
	} `yaml:"commands"`
}

// applyPolicyFile overrides cooldowns from a YAML file of the form
//
//	commands:
//	  markov:
//	    window: 30s
//	    scope: channel
func (c *CommandsConfig) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("failed to read policy file: %v", err), "COMMAND_POLICY_FILE", path)
	}
	return c.applyPolicies(data)
}

func (c *CommandsConfig) applyPolicies(data []byte) error {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid policy file: %v", err), "COMMAND_POLICY_FILE", c.PolicyFile)
	}

	for name, entry := range file.Commands {
		name = util.Normalize(name)
		if entry.Window != "" {
			window, err := time.ParseDuration(entry.Window)
			if err != nil {
				return errors.NewValidationError(fmt.Sprintf("invalid window for %s: %v", name, err), "window", entry.Window)
			}
			c.Cooldowns[name] = window
		}
		if entry.Scope != "" {
			scope, err := cooldown.ParseScope(entry.Scope)
			if err != nil {
				return errors.NewValidationError(fmt.Sprintf("invalid scope for %s: %v", name, err), "scope", entry.Scope)
			}
			c.Scopes[name] = scope
		}
	}
	return nil
}

func loadCooldowns() map[string]time.Duration {
	cooldowns := make(map[string]time.Duration, len(commandNames))
	for _, name := range commandNames {
		fallback := constants.DefaultCooldowns[name]
		cooldowns[name] = getEnvDuration("COOLDOWN_"+strings.ToUpper(name), fallback)
	}
	return cooldowns
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
