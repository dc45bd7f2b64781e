// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConf struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
}

type MongoConf struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type S3Conf struct {
	PresignTTLSeconds int `mapstructure:"presign_ttl_seconds"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTConf struct {
	Secret       string `mapstructure:"secret"`
	Keys         string `mapstructure:"keys"` // kid:secret,kid2:secret2
	ActiveKid    string `mapstructure:"active_kid"`
	ExpiryHours  int    `mapstructure:"expiry_hours"`
	RateLimitRPM int    `mapstructure:"rate_limit_rpm"`
}

type Config struct {
	App   AppConf   `mapstructure:"app"`
	Mongo MongoConf `mapstructure:"mongodb"`
	Redis RedisConf `mapstructure:"redis"`
	AWS   AWSConf   `mapstructure:"aws"`
	S3    S3Conf    `mapstructure:"s3"`
	Kafka KafkaConf `mapstructure:"kafka"`
	JWT   JWTConf   `mapstructure:"jwt"`

	// derived
	ShutdownTimeout time.Duration
	PresignTTL      time.Duration
	TokenTTL        time.Duration
}

// Load reads the config file at path. Environment variables override file
// values using APP_ prefixed underscore paths, e.g. APP_MONGODB_URI.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.ShutdownSeconds == 0 {
		cfg.App.ShutdownSeconds = 15
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "messenger"
	}
	if cfg.S3.PresignTTLSeconds == 0 {
		cfg.S3.PresignTTLSeconds = 600
	}
	if cfg.JWT.ExpiryHours == 0 {
		cfg.JWT.ExpiryHours = 24
	}
	if cfg.JWT.RateLimitRPM == 0 {
		cfg.JWT.RateLimitRPM = 10
	}

	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.PresignTTL = time.Duration(cfg.S3.PresignTTLSeconds) * time.Second
	cfg.TokenTTL = time.Duration(cfg.JWT.ExpiryHours) * time.Hour
	return &cfg, nil
}

// SigningKeys parses the JWT key configuration into a kid->secret map and
// the active kid. A bare secret falls back to a single "default" key.
func (c *Config) SigningKeys() (map[string]string, string) {
	if c.JWT.Keys == "" {
		return map[string]string{"default": c.JWT.Secret}, "default"
	}

	keys := map[string]string{}
	for _, pair := range strings.Split(c.JWT.Keys, ",") {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		keys[parts[0]] = parts[1]
	}
	return keys, c.JWT.ActiveKid
}
