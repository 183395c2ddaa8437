package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingJWTSecret = errors.New("jwt secret is required")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Mail      MailConfig      `yaml:"mail"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	NATS      NATSConfig      `yaml:"nats"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
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

type JWTConfig struct {
	Secret string `yaml:"secret"`
	// EmailTokenHours bounds confirmation and recovery tokens.
	EmailTokenHours int `yaml:"email_token_hours"`
}

// MailConfig selects the outbound mail transport: "sendgrid", "resend" or "log".
type MailConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	Sender     string `yaml:"sender"`
	SenderName string `yaml:"sender_name"`
}

// UploadsConfig selects where avatar images live: "local" or "s3".
type UploadsConfig struct {
	Backend   string   `yaml:"backend"`
	Dir       string   `yaml:"dir"`
	MaxSizeMB int      `yaml:"max_size_mb"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// NATSConfig enables account event publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MailPerHour       int     `yaml:"mail_per_hour"`
}

type LogConfig struct {
	Dir string `yaml:"dir"`
}

type SweeperConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// Load loads configuration from file, an optional .env file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("[Config] No %s file found, using process environment", envFile)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used for any value the file leaves out
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3000,
			Mode:    "debug",
			BaseURL: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		JWT: JWTConfig{
			EmailTokenHours: 48,
		},
		Mail: MailConfig{
			Provider:   "log",
			SenderName: "Social Hub",
		},
		Uploads: UploadsConfig{
			Backend:   "local",
			Dir:       "public/uploads/users",
			MaxSizeMB: 5,
		},
		NATS: NATSConfig{
			SubjectPrefix: "accounts",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			MailPerHour:       5,
		},
		Log: LogConfig{
			Dir: "logs",
		},
		Sweeper: SweeperConfig{
			IntervalMinutes: 60,
		},
	}
}

// Validate checks settings the service cannot run without
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// EmailTokenTTL returns the lifetime of confirmation and recovery tokens
func (c *JWTConfig) EmailTokenTTL() time.Duration {
	if c.EmailTokenHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.EmailTokenHours) * time.Hour
}

// SweepInterval returns the orphan image sweeper period; zero disables it
func (c *SweeperConfig) SweepInterval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
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

	// JWT
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}

	// Mail
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		c.Mail.Provider = v
	}
	if v := os.Getenv("EMAIL_API_KEY"); v != "" {
		c.Mail.APIKey = v
	}
	if v := os.Getenv("EMAIL_SENDER"); v != "" {
		c.Mail.Sender = v
	}

	// Uploads
	if v := os.Getenv("UPLOADS_BACKEND"); v != "" {
		c.Uploads.Backend = v
	}
	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Uploads.S3.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Uploads.S3.Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Uploads.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.Uploads.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.Uploads.S3.SecretAccessKey = v
	}

	// NATS
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
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
