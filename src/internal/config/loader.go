package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/policy"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configFile (or configs/config.yaml when empty), then applies
// environment overrides such as DATABASE_URL or REVIEW_LEASE_DURATION.
// A .env file in the working directory or the module root is loaded first.
func Load(configFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values. A placeholder
// whose variable is unset becomes empty.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok && strings.Contains(s, "${") {
			v.Set(key, os.ExpandEnv(s))
		}
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.request_timeout", 5*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_dir", "./migrations")
	v.SetDefault("database.connect_attempts", 15)
	v.SetDefault("database.connect_retry_wait", 2*time.Second)

	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("redis.url", "")

	h := roster.DefaultHierarchy()
	v.SetDefault("roster.source", RosterSourceFile)
	v.SetDefault("roster.path", "./configs/roster.csv")
	v.SetDefault("roster.redis_key", roster.DefaultRedisKey)
	v.SetDefault("roster.refresh_interval", 5*time.Minute)
	v.SetDefault("roster.email_domain", "")
	v.SetDefault("roster.hierarchy.executive_keywords", h.ExecutiveKeywords)
	v.SetDefault("roster.hierarchy.director_keywords", h.DirectorKeywords)
	v.SetDefault("roster.hierarchy.chief_keywords", h.ChiefKeywords)
	v.SetDefault("roster.hierarchy.lead_keywords", h.LeadKeywords)

	v.SetDefault("review.lease_duration", model.DefaultLeaseDuration)
	v.SetDefault("review.queue_limit", 100)

	rules := policy.DefaultRules()
	v.SetDefault("visibility.director_role_keywords", rules.DirectorRoleKeywords)
	v.SetDefault("visibility.chief_hidden_role_keywords", rules.ChiefHiddenRoleKeywords)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.allow_header_identity", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case StoreDriverPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for store.driver=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", cfg.Store.Driver)
	}

	switch cfg.Roster.Source {
	case RosterSourceFile:
		if cfg.Roster.Path == "" {
			return fmt.Errorf("roster.path is required for roster.source=file")
		}
	case RosterSourceRedis:
		if cfg.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for roster.source=redis")
		}
	case RosterSourcePostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for roster.source=postgres")
		}
	default:
		return fmt.Errorf("roster.source must be file, redis or postgres, got %q", cfg.Roster.Source)
	}

	if cfg.Review.LeaseDuration <= 0 {
		return fmt.Errorf("review.lease_duration must be positive")
	}
	if cfg.Review.QueueLimit <= 0 {
		return fmt.Errorf("review.queue_limit must be positive")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowHeaderIdentity {
		return fmt.Errorf("auth.jwt_secret is required unless auth.allow_header_identity is set")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}
	return nil
}
