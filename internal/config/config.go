package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

var (
	ErrUnknownTransport   = errors.New("unknown game transport")
	ErrInvalidMessageSize = errors.New("max message size must be positive")
	ErrInvalidCacheTTL    = errors.New("stats cache ttl must be positive")
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Game     Game   `yaml:"game"`
	Redis    Redis  `yaml:"redis"`
	Stats    Stats  `yaml:"stats"`
}

type Game struct {
	Transport      string        `yaml:"transport" env:"GAME_TRANSPORT" env-default:"tcp"`
	Port           string        `yaml:"port" env:"GAME_PORT" env-default:"30000"`
	WriteTimeout   time.Duration `yaml:"write-timeout" env:"GAME_WRITE_TIMEOUT" env-default:"2s"`
	MaxMessageSize int           `yaml:"max-message-size" env:"GAME_MAX_MESSAGE_SIZE" env-default:"4096"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Stats struct {
	CacheTTL time.Duration `yaml:"cache-ttl" env:"STATS_CACHE_TTL" env-default:"5s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads the config file at path, environment variables take precedence.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate - checks values cleanenv cannot check by itself.
func (that *Config) Validate() error {
	switch that.Game.Transport {
	case TransportTCP, TransportWebSocket:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, that.Game.Transport)
	}

	if that.Game.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMessageSize, that.Game.MaxMessageSize)
	}

	if that.Stats.CacheTTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCacheTTL, that.Stats.CacheTTL)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
