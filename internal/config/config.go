package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/hearthchat/chat-history-service/pkg/log"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    log.Config   `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Address        string        `mapstructure:"address"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	Disabled       bool          `mapstructure:"disabled"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type CacheConfig struct {
	OverlayKey string `mapstructure:"overlay_key"`
	AlertKey   string `mapstructure:"alert_key"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8094)
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "chatAppDB")
	viper.SetDefault("mongo.connect_timeout", "10s")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.disabled", false)
	viper.SetDefault("redis.connect_timeout", "5s")
	viper.SetDefault("cache.overlay_key", "chatLogs")
	viper.SetDefault("cache.alert_key", "globalAlerts")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.service_name", "chat-history-service")

	// Env overrides (for Docker)
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("mongo.uri", "MONGO_URI")
	_ = viper.BindEnv("mongo.database", "MONGO_DATABASE")
	_ = viper.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.disabled", "REDIS_DISABLED")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
