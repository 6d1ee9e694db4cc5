package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Engine  EngineConfig
	Updates UpdatesConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	RequestsPerMin int
	MaxQueryLength int
	IsDevelopment  bool
	AllowedOrigins []string
}

type SQLiteConfig struct {
	Path string
	Seed bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type EngineConfig struct {
	KnowledgeCapacity  int
	CycleInterval      time.Duration
	RankLimit          int
	InteractionWindow  int
	InteractionLogSize int
	RandomSeed         int64
	LexiconFile        string
}

type UpdatesConfig struct {
	Enabled    bool
	FeedURL    string
	Weight     float64
	TimeoutSec int
	MaxItems   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables still win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vilaw")

	v.SetEnvPrefix("VILAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Engine.KnowledgeCapacity <= 0 {
		return fmt.Errorf("engine.knowledgeCapacity must be positive, got %d", c.Engine.KnowledgeCapacity)
	}
	if c.Engine.CycleInterval <= 0 {
		return fmt.Errorf("engine.cycleInterval must be positive, got %s", c.Engine.CycleInterval)
	}
	if c.Updates.Weight < 0 || c.Updates.Weight > 1 {
		return fmt.Errorf("updates.weight must be within [0,1], got %v", c.Updates.Weight)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.requestsPerMin", 60)
	v.SetDefault("server.maxQueryLength", 2000)
	v.SetDefault("server.isDevelopment", false)
	v.SetDefault("server.allowedOrigins", []string{})

	v.SetDefault("sqlite.path", "./data/vilaw.db")
	v.SetDefault("sqlite.seed", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 300)

	v.SetDefault("engine.knowledgeCapacity", 1000)
	v.SetDefault("engine.cycleInterval", "60s")
	v.SetDefault("engine.rankLimit", 5)
	v.SetDefault("engine.interactionWindow", 100)
	v.SetDefault("engine.interactionLogSize", 1000)
	v.SetDefault("engine.randomSeed", 1)
	v.SetDefault("engine.lexiconFile", "")

	v.SetDefault("updates.enabled", false)
	v.SetDefault("updates.feedURL", "")
	v.SetDefault("updates.weight", 0.8)
	v.SetDefault("updates.timeoutSec", 10)
	v.SetDefault("updates.maxItems", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
