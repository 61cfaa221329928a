// Package config loads runtime settings from a config file, environment
// variables, and an optional .env file, in ascending precedence of
// defaults < file < environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything both binaries can need. Unused sections cost
// nothing; the serve command reads Server, the watch command reads Client.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
}

// ServerConfig configures the sync server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`

	// PostgresDSN selects the document store. Empty means the in-memory
	// store, for development and tests.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// JWTSecret signs session tokens. Required.
	JWTSecret string `mapstructure:"jwt_secret"`

	// TokenTTL bounds session token lifetime.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// ClientConfig configures the client-side commands.
type ClientConfig struct {
	// ServerURL is the sync server base URL.
	ServerURL string `mapstructure:"server_url"`

	// Token is the bearer token identifying the user.
	Token string `mapstructure:"token"`

	// CachePath is the local SQLite cache file.
	CachePath string `mapstructure:"cache_path"`

	// DropDir is the directory watched for record drop files.
	DropDir string `mapstructure:"drop_dir"`
}

// Load reads configuration. A .env file in the working directory is
// loaded first when present; environment variables use the ORGANIZA_
// prefix with underscores for nesting (ORGANIZA_SERVER_ADDR). cfgFile may
// be empty, in which case only defaults and the environment apply.
func Load(cfgFile string) (*Config, error) {
	// missing .env is fine; it's a development convenience
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ORGANIZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.postgres_dsn", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", 30*24*time.Hour)
	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.cache_path", defaultCachePath())
	v.SetDefault("client.drop_dir", "drop")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}
