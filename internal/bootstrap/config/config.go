package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/errs"
)

const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
	Security     SecurityConfig     `mapstructure:"security"`
	Auth         AuthConfig         `mapstructure:"auth"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// BusyTimeout is how long sqlite waits on a locked database.
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	Backend         string        `mapstructure:"backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisDB         int           `mapstructure:"redis_db"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type ConfirmationConfig struct {
	PostTypes       []string          `mapstructure:"post_types"`
	TypeLabels      map[string]string `mapstructure:"type_labels"`
	MaxWriteRetries int               `mapstructure:"max_write_retries"`
}

type SecurityConfig struct {
	NonceSecret   string        `mapstructure:"nonce_secret"`
	NonceLifetime time.Duration `mapstructure:"nonce_lifetime"`
}

type AuthConfig struct {
	// UserHeader carries the numeric id of the signed-in user, set by the fronting proxy.
	UserHeader string `mapstructure:"user_header"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.normalize(logCtx); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Any("post_types", cfg.Confirmation.PostTypes),
	)

	return cfg, nil
}

func (c *Config) normalize(ctx context.Context) error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendMemory, CacheBackendNone:
	case CacheBackendRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}

	types := make([]string, 0, len(c.Confirmation.PostTypes))
	for _, t := range c.Confirmation.PostTypes {
		// Env overrides arrive as one comma separated value.
		for _, part := range strings.Split(t, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				types = append(types, part)
			}
		}
	}
	if len(types) == 0 {
		return errors.New("confirmation.post_types must not be empty")
	}
	c.Confirmation.PostTypes = types

	if c.Security.NonceLifetime < 2*time.Second {
		return fmt.Errorf("security.nonce_lifetime %s is shorter than 2s", c.Security.NonceLifetime)
	}
	if strings.TrimSpace(c.Security.NonceSecret) == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return errs.Wrap(err, "generate nonce secret")
		}
		c.Security.NonceSecret = hex.EncodeToString(secret)
		logging.Warn(ctx, "security.nonce_secret not set, tokens will not survive a restart")
	}

	if strings.TrimSpace(c.Auth.UserHeader) == "" {
		return errors.New("auth.user_header is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "readconfirm")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".readconfirm/state/readconfirm.sqlite")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("cache.backend", CacheBackendSQLite)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.cleanup_interval", "5m")
	v.SetDefault("confirmation.post_types", []string{"post", "page"})
	v.SetDefault("confirmation.type_labels", map[string]string{"post": "post", "page": "page"})
	v.SetDefault("confirmation.max_write_retries", 16)
	v.SetDefault("security.nonce_secret", "")
	v.SetDefault("security.nonce_lifetime", "24h")
	v.SetDefault("auth.user_header", "X-Remote-User")
}
