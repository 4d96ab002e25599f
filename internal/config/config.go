// Package config loads application configuration from ./config/config.yaml
// with COLORIZER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/edge-colorizer/internal/model"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	Timeout        time.Duration `mapstructure:"timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	AllowOrigin    string        `mapstructure:"allow_origin"`
	PaletteSize    int           `mapstructure:"palette_size"`
	PaletteMethod  string        `mapstructure:"palette_method"`
}

type ModelConfig struct {
	// Backend is "native" or "onnx".
	Backend      string `mapstructure:"backend"`
	WeightsPath  string `mapstructure:"weights_path"`
	OnnxPath     string `mapstructure:"onnx_path"`
	MetadataPath string `mapstructure:"metadata_path"`
	OnnxLibrary  string `mapstructure:"onnx_library"`
	Workers      int    `mapstructure:"workers"`
	BaseWidth    int    `mapstructure:"base_width"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.allow_origin", "*")
	v.SetDefault("server.palette_size", 5)
	v.SetDefault("server.palette_method", "dominant")

	v.SetDefault("model.backend", "native")
	v.SetDefault("model.weights_path", "./weights/generator.safetensors")
	v.SetDefault("model.onnx_path", "./weights/generator.onnx")
	v.SetDefault("model.metadata_path", "./weights/metadata.json")
	v.SetDefault("model.workers", 0)
	v.SetDefault("model.base_width", 64)

	v.SetDefault("kafka.brokers", "localhost:9094")
	v.SetDefault("kafka.topic", "colorize")
	v.SetDefault("kafka.group_id", "colorizer-worker")

	v.SetDefault("storage.path", "./storage")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads config.yaml from dir. A missing file is not an error;
// defaults and environment variables still apply.
func LoadConfig(dir string) (*viper.Viper, error) {
	v := viper.New()

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("colorizer")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	switch c.Model.Backend {
	case "native", "onnx":
	default:
		return nil, fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	return &c, nil
}

// LoadOptions maps the model section onto the backend loader.
func (m ModelConfig) LoadOptions() model.LoadOptions {
	return model.LoadOptions{
		Backend:      m.Backend,
		WeightsPath:  m.WeightsPath,
		OnnxPath:     m.OnnxPath,
		MetadataPath: m.MetadataPath,
		OnnxLibrary:  m.OnnxLibrary,
		Workers:      m.Workers,
		BaseWidth:    m.BaseWidth,
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConfigureLogger applies the log section to the standard logrus logger.
func (l LogConfig) ConfigureLogger() error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	if l.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}
