package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Redis    RedisConfig    `yaml:"redis"`
	Review   ReviewConfig   `yaml:"review"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Host          string   `yaml:"host"`
	Port          string   `yaml:"port"`
	Mode          string   `yaml:"mode"` // debug, release, test
	LogLevel      string   `yaml:"log_level"`
	CORSOrigins   []string `yaml:"cors_origins"` // empty allows any origin
	AdminPassword string   `yaml:"admin_password"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// OpenAIConfig is the fallback LLM used when no LLM config row is enabled.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RedisConfig for the optional async task queue and realtime relay
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// ReviewConfig tunes review sessions and the review island.
type ReviewConfig struct {
	IslandIdleDelay    time.Duration `yaml:"island_idle_delay"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	ReaperCron         string        `yaml:"reaper_cron"`
	AIReviewRPS        float64       `yaml:"ai_review_rps"`
	AIReviewBurst      int           `yaml:"ai_review_burst"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var GlobalConfig *Config

// Load reads configPath (default config.yaml) and applies environment
// overrides. A .env file next to the binary is loaded first when present.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "mentorhub.db",
		},
		JWT: JWTConfig{
			Secret:     "mentorhub-secret-key-change-in-production",
			ExpireHour: 24,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			Channel: "mentorhub:feedback",
		},
		Review: ReviewConfig{
			IslandIdleDelay:    4 * time.Second,
			SessionIdleTimeout: 30 * time.Minute,
			ReaperCron:         "*/5 * * * *",
			AIReviewRPS:        0.2,
			AIReviewBurst:      3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
		c.Server.AdminPassword = pw
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.OpenAI.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.OpenAI.Model = model
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := c.applyRedisURL(redisURL); err == nil {
			c.Redis.Enabled = true
		}
	}
	if d := os.Getenv("REVIEW_SESSION_IDLE_TIMEOUT"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			c.Review.SessionIdleTimeout = v
		}
	}
	if d := os.Getenv("REVIEW_ISLAND_IDLE_DELAY"); d != "" {
		if v, err := time.ParseDuration(d); err == nil {
			c.Review.IslandIdleDelay = v
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
}

func (c *Config) applyRedisURL(redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	c.Redis.Addr = opts.Addr
	c.Redis.Password = opts.Password
	c.Redis.DB = opts.DB
	return nil
}

// RedisOptions builds go-redis client options from the config.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
