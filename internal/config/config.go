package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	MarketData MarketDataConfig `yaml:"marketdata"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type ScoringConfig struct {
	BenchmarkSymbol      string   `yaml:"benchmark_symbol"`
	ReferenceCapital     float64  `yaml:"reference_capital"`
	LookupTimeoutSeconds int      `yaml:"lookup_timeout_seconds"`
	AI                   AIConfig `yaml:"ai"`
}

type AIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MarketDataConfig struct {
	BaseURL string `yaml:"base_url"`
}

type WorkerConfig struct {
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
	StalenessMinutes       int `yaml:"staleness_minutes"`
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// Auth
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}

	// Scoring
	if v := os.Getenv("BENCHMARK_SYMBOL"); v != "" {
		c.Scoring.BenchmarkSymbol = v
	}
	if v := os.Getenv("REFERENCE_CAPITAL"); v != "" {
		if capital, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scoring.ReferenceCapital = capital
		}
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.Scoring.AI.APIKey = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		c.Scoring.AI.BaseURL = v
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		c.Scoring.AI.Model = v
	}
}

func (c *Config) applyDefaults() {
	if c.Scoring.BenchmarkSymbol == "" {
		c.Scoring.BenchmarkSymbol = "SPY"
	}
	if c.Scoring.ReferenceCapital <= 0 {
		c.Scoring.ReferenceCapital = 10000
	}
	if c.Scoring.LookupTimeoutSeconds <= 0 {
		c.Scoring.LookupTimeoutSeconds = 10
	}
	if c.Scoring.AI.TimeoutSeconds <= 0 {
		c.Scoring.AI.TimeoutSeconds = 15
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Worker.RefreshIntervalSeconds <= 0 {
		c.Worker.RefreshIntervalSeconds = 300
	}
	if c.Worker.StalenessMinutes <= 0 {
		c.Worker.StalenessMinutes = 60
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
