package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode         string `mapstructure:"mode"`
	Port         int    `mapstructure:"port"`
	LogLevel     string `mapstructure:"log_level"`
	Secret       string `mapstructure:"secret"`
	DatabasePath string `mapstructure:"database_path"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxRoomSize       int           `mapstructure:"max_room_size"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout"`
	JoinRateLimit     int           `mapstructure:"join_rate_limit"`
	JoinRateWindow    time.Duration `mapstructure:"join_rate_window"`
	SlowConsumer      string        `mapstructure:"slow_consumer"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	AVPath string `mapstructure:"av_path"`
	WBPath string `mapstructure:"wb_path"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("database_path", "relay.db")
	v.SetDefault("heartbeat_interval", "30s")
	v.SetDefault("max_room_size", 0)
	v.SetDefault("auth_timeout", "5s")
	v.SetDefault("join_rate_limit", 10)
	v.SetDefault("join_rate_window", "1m")
	v.SetDefault("slow_consumer", "drop")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("av_path", "/ws")
	v.SetDefault("wb_path", "/ws-wb")
}

// Load reads config/config.<CONFIG_ENV>.yaml (env "dev" by default). A
// missing file is not an error; defaults and RELAY_* variables apply.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat_interval must be positive"))
	}
	if c.MaxRoomSize < 0 {
		errs = append(errs, errors.New("max_room_size must not be negative"))
	}
	switch c.SlowConsumer {
	case "drop", "kick":
	default:
		errs = append(errs, fmt.Errorf("slow_consumer %q must be drop or kick", c.SlowConsumer))
	}
	if c.AVPath == "" || c.WBPath == "" || c.AVPath == c.WBPath {
		errs = append(errs, errors.New("av_path and wb_path must be set and distinct"))
	}
	return errors.Join(errs...)
}
