package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env    string       `mapstructure:"env"`
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Events EventsConfig `mapstructure:"events"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type MongoConfig struct {
	URI                    string `mapstructure:"uri"`
	Database               string `mapstructure:"database"`
	Collection             string `mapstructure:"collection"`
	MaxPoolSize            uint64 `mapstructure:"max_pool_size"`
	ConnectTimeout         int    `mapstructure:"connect_timeout_seconds"`
	ServerSelectionTimeout int    `mapstructure:"server_selection_timeout_seconds"`
	SocketTimeout          int    `mapstructure:"socket_timeout_seconds"`
	MaxConnectAttempts     int    `mapstructure:"max_connect_attempts"`
}

// EventsConfig selects the student-event broker. Backend is "kafka", "nats"
// or empty, in which case no events are published.
type EventsConfig struct {
	Backend string   `mapstructure:"backend"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	URL     string   `mapstructure:"url"`
	Subject string   `mapstructure:"subject"`
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/configs")   // Kubernetes mount
	viper.AddConfigPath("./configs")  // repo root
	viper.AddConfigPath("../configs") // IDE from cmd/

	viper.SetDefault("env", env)
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)
	viper.SetDefault("server.idle_timeout_seconds", 60)
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "student_management")
	viper.SetDefault("mongo.collection", "students")
	viper.SetDefault("mongo.max_pool_size", 50)
	viper.SetDefault("mongo.connect_timeout_seconds", 10)
	viper.SetDefault("mongo.server_selection_timeout_seconds", 5)
	viper.SetDefault("mongo.socket_timeout_seconds", 45)
	viper.SetDefault("mongo.max_connect_attempts", 5)

	// Try to read config file (optional - will use ENV if not found)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("No config file found (will use ENV variables): %v\n", err)
	}

	// Enable environment variable overrides (these take precedence over config file)
	viper.AutomaticEnv()

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("mongo.uri", "MONGODB_URI")
	viper.BindEnv("mongo.database", "MONGODB_DBNAME")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ALLOWED_ORIGINS is a comma-separated list when supplied via env
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.Server.CORSOrigins = append(config.Server.CORSOrigins, origin)
			}
		}
	}

	return &config, nil
}
