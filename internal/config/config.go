package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// Empty DatabaseURL selects the in-memory store (dev mode only).
	DatabaseURL string `mapstructure:"database_url"`
	// Empty RedisAddr keeps the broadcaster process-local.
	RedisAddr string `mapstructure:"redis_addr"`

	// Empty AuthURL selects the static dev verifier with AuthTokens.
	AuthURL     string            `mapstructure:"auth_url"`
	AuthTokens  map[string]string `mapstructure:"auth_tokens"`
	AuthTimeout time.Duration     `mapstructure:"auth_timeout"`

	RoomCapacity   int           `mapstructure:"room_capacity"`
	PresenceMaxAge time.Duration `mapstructure:"presence_max_age"`
	PruneInterval  time.Duration `mapstructure:"prune_interval"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("auth_url", "")
	v.SetDefault("auth_timeout", "3s")
	v.SetDefault("room_capacity", 2)
	v.SetDefault("presence_max_age", "60s")
	v.SetDefault("prune_interval", "60s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetEnvPrefix("arena")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults and env\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
