package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Archive drivers
const (
	ArchivePostgres = "postgres"
	ArchiveMongo    = "mongo"
	ArchiveMySQL    = "mysql"
	ArchiveMemory   = "memory"
)

type ArchiveConfig struct {
	Driver      string `mapstructure:"driver"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	Migrations  string `mapstructure:"migrations"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`

	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN returns a go-sql-driver DSN with time parsing enabled
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Optional marks Redis as best effort: the server starts without it and
	// falls back to in-process rate limiting.
	Optional    bool          `mapstructure:"optional"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LLMConfig struct {
	Provider       string           `mapstructure:"provider"`
	Model          string           `mapstructure:"model"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
	MaxRetries     uint64           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration    `mapstructure:"retry_backoff"`
	MaxTokens      int              `mapstructure:"max_tokens"`
	Temperature    float64          `mapstructure:"temperature"`
	OpenRouter     OpenRouterConfig `mapstructure:"openrouter"`
	OpenAI         OpenAIConfig     `mapstructure:"openai"`
	Anthropic      AnthropicConfig  `mapstructure:"anthropic"`
	Ollama         OllamaConfig     `mapstructure:"ollama"`
	DeepSeek       DeepSeekConfig   `mapstructure:"deepseek"`
	Gemini         GeminiConfig     `mapstructure:"gemini"`
}

type OpenRouterConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Referer string `mapstructure:"referer"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type SecurityConfig struct {
	MaxMessageLength int             `mapstructure:"max_message_length"`
	RateLimit        RateLimitConfig `mapstructure:"rate_limit"`
	ChatRateLimit    RateLimitConfig `mapstructure:"chat_rate_limit"`
}

// RateLimitConfig is a fixed window: Requests per Window
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level    string        `mapstructure:"level"`
	Format   string        `mapstructure:"format"`
	File     string        `mapstructure:"file"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Rotation time.Duration `mapstructure:"rotation"`
}

type ClientConfig struct {
	ServerURL        string        `mapstructure:"server_url"`
	Token            string        `mapstructure:"token"`
	UserID           string        `mapstructure:"user_id"`
	Store            string        `mapstructure:"store"`
	StorePath        string        `mapstructure:"store_path"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
	OutboxMaxEntries int           `mapstructure:"outbox_max_entries"`
	OutboxMaxAge     time.Duration `mapstructure:"outbox_max_age"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Archive
	v.SetDefault("archive.driver", ArchivePostgres)
	v.SetDefault("archive.auto_migrate", false)
	v.SetDefault("archive.migrations", "file://migrations")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bloombuddy")
	v.SetDefault("database.database", "bloombuddy")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")

	// Mongo
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "bloombuddy")
	v.SetDefault("mongo.timeout", "10s")

	// MySQL
	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "bloombuddy")
	v.SetDefault("mysql.database", "bloombuddy")
	v.SetDefault("mysql.max_conns", 10)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.optional", true)
	v.SetDefault("redis.dial_timeout", "3s")

	// Auth
	v.SetDefault("auth.enabled", false)

	// LLM
	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.request_timeout", "20s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_backoff", "500ms")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.openrouter.model", "openai/gpt-3.5-turbo")
	v.SetDefault("llm.openrouter.referer", "http://localhost:3000")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3")

	// Security
	v.SetDefault("security.max_message_length", 4000)
	v.SetDefault("security.rate_limit.requests", 100)
	v.SetDefault("security.rate_limit.window", "15m")
	v.SetDefault("security.chat_rate_limit.requests", 10)
	v.SetDefault("security.chat_rate_limit.window", "1m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation", "24h")

	// Client
	v.SetDefault("client.server_url", "http://localhost:3000")
	v.SetDefault("client.store", "sqlite")
	v.SetDefault("client.store_path", "bloombuddy.db")
	v.SetDefault("client.request_timeout", "30s")
	v.SetDefault("client.probe_interval", "5s")
	v.SetDefault("client.outbox_max_entries", 100)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")

	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")
	v.BindEnv("mongo.uri", "MONGODB_URI")
	v.BindEnv("mysql.password", "MYSQL_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// LLM API Keys
	v.BindEnv("llm.openrouter.api_key", "OPENROUTER_API_KEY")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")

	// Client
	v.BindEnv("client.server_url", "BLOOMBUDDY_SERVER_URL")
	v.BindEnv("client.token", "BLOOMBUDDY_TOKEN")
	v.BindEnv("client.user_id", "BLOOMBUDDY_USER_ID")
}
