package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Bus       BusConfig       `mapstructure:"bus"`
	Sim       SimConfig       `mapstructure:"simulation"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	APIKey          string        `mapstructure:"api_key"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type BusConfig struct {
	BrokerURL   string        `mapstructure:"broker_url"`
	ClientID    string        `mapstructure:"client_id"`
	BufferSize  int           `mapstructure:"buffer_size"`
	ConnTimeout time.Duration `mapstructure:"connect_timeout"`
}

type SimConfig struct {
	TickPeriod time.Duration `mapstructure:"tick_period"`
}

type ExecutorConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"`
	CommandDeadline time.Duration `mapstructure:"command_deadline"`
	BakeTime        time.Duration `mapstructure:"bake_time"`
	MoveRetries     int           `mapstructure:"move_retries"`
}

type BroadcastConfig struct {
	QueueDepth int `mapstructure:"queue_depth"`
}

type RetentionConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8000)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "stf")
	viper.SetDefault("database.user", "stf")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("bus.broker_url", "tcp://localhost:1883")
	viper.SetDefault("bus.client_id", "stf-hw")
	viper.SetDefault("bus.buffer_size", 1024)
	viper.SetDefault("bus.connect_timeout", "5s")
	viper.SetDefault("simulation.tick_period", "100ms")
	viper.SetDefault("executor.poll_interval", "200ms")
	viper.SetDefault("executor.op_timeout", "30s")
	viper.SetDefault("executor.command_deadline", "10m")
	viper.SetDefault("executor.bake_time", "10s")
	viper.SetDefault("executor.move_retries", 3)
	viper.SetDefault("broadcast.queue_depth", 256)
	viper.SetDefault("retention.max_rows", 100000)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
