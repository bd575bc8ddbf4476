package config

import (
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/policy"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
)

type Config struct {
	HTTP       HTTPConfig     `mapstructure:"http"`
	Database   DatabaseConfig `mapstructure:"database"`
	Store      StoreConfig    `mapstructure:"store"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Roster     RosterConfig   `mapstructure:"roster"`
	Review     ReviewConfig   `mapstructure:"review"`
	Visibility policy.Rules   `mapstructure:"visibility"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Logging    LoggingConfig  `mapstructure:"logging"`
}

type HTTPConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	MigrationsDir    string        `mapstructure:"migrations_dir"`
	ConnectAttempts  int           `mapstructure:"connect_attempts"`
	ConnectRetryWait time.Duration `mapstructure:"connect_retry_wait"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

const (
	RosterSourceFile     = "file"
	RosterSourceRedis    = "redis"
	RosterSourcePostgres = "postgres"
)

type RosterConfig struct {
	Source          string           `mapstructure:"source"`
	Path            string           `mapstructure:"path"`
	RedisKey        string           `mapstructure:"redis_key"`
	RefreshInterval time.Duration    `mapstructure:"refresh_interval"`
	EmailDomain     string           `mapstructure:"email_domain"`
	Hierarchy       roster.Hierarchy `mapstructure:"hierarchy"`
}

type ReviewConfig struct {
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
	QueueLimit    int           `mapstructure:"queue_limit"`
}

type AuthConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	AllowHeaderIdentity bool   `mapstructure:"allow_header_identity"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
