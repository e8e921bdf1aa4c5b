// Package config loads the server configuration from defaults, an optional
// config file, a .env file, KANBAN_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/ordering"
)

const EnvPrefix = "KANBAN"

const minSecretLength = 32

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Ordering ordering.Strategy
	Redis    RedisConfig
	SignIn   SignInConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// TrustProxy honours X-Forwarded-For when keying sign-in rate limits.
	TrustProxy bool
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver string
	URL    string
	Pool   db.PoolConfig
}

type JWTConfig struct {
	Secret    string
	Algorithm string
	AccessTTL time.Duration
}

type AuthConfig struct {
	BcryptCost int
}

type RedisConfig struct {
	URL string
}

type SignInConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", db.DefaultPool.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.DefaultPool.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.DefaultPool.ConnMaxLifetime)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_ttl", 30*time.Minute)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("ordering.strategy", string(ordering.Weak))
	v.SetDefault("redis.url", "")
	v.SetDefault("signin.rate_limit", 5)
	v.SetDefault("signin.rate_window", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"database-url": "database.url",
}

// Load builds a Config. cmd may be nil; otherwise any of its flags listed in
// flagKeys override the environment. configFile is optional.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if cmd != nil {
		for name, key := range flagKeys {
			if flag := cmd.Flags().Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Host:       v.GetString("server.host"),
			Port:       v.GetInt("server.port"),
			TrustProxy: v.GetBool("server.trust_proxy"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			URL:    v.GetString("database.url"),
			Pool: db.PoolConfig{
				MaxOpenConns:    v.GetInt("database.max_open_conns"),
				MaxIdleConns:    v.GetInt("database.max_idle_conns"),
				ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			},
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Algorithm: v.GetString("jwt.algorithm"),
			AccessTTL: v.GetDuration("jwt.access_ttl"),
		},
		Auth:     AuthConfig{BcryptCost: v.GetInt("auth.bcrypt_cost")},
		Ordering: ordering.Strategy(v.GetString("ordering.strategy")),
		Redis:    RedisConfig{URL: v.GetString("redis.url")},
		SignIn: SignInConfig{
			RateLimit:  v.GetInt("signin.rate_limit"),
			RateWindow: v.GetDuration("signin.rate_window"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if len(c.JWT.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength))
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported jwt algorithm %q", c.JWT.Algorithm))
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt access ttl must be positive"))
	}
	if _, err := ordering.ParseStrategy(string(c.Ordering)); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.SignIn.RateLimit <= 0 || c.SignIn.RateWindow <= 0 {
		errs = append(errs, errors.New("sign-in rate limit and window must be positive"))
	}
	return errors.Join(errs...)
}
