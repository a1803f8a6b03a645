package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
)

const (
	configName = "mcp-client"
	envPrefix  = "MCPCLIENT"
)

// Config is everything the CLI reads from flags, the environment and mcp-client.yaml
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Roots   []string      `mapstructure:"roots"`
}

// ServerConfig describes the server process to spawn
type ServerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Env     []string `mapstructure:"env"`
	Dir     string   `mapstructure:"dir"`
}

// ClientConfig tunes the client engine
type ClientConfig struct {
	Name              string        `mapstructure:"name"`
	Version           string        `mapstructure:"version"`
	ProtocolVersions  []string      `mapstructure:"protocol_versions"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ValidateArguments bool          `mapstructure:"validate_arguments"`
	MaxPages          int           `mapstructure:"max_pages"`
	LogFrames         bool          `mapstructure:"log_frames"`
}

// LogConfig selects the CLI's own log output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// TracingConfig enables OTLP trace export
type TracingConfig struct {
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// setDefaults registers every key so that MCPCLIENT_* variables reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.command", "")
	v.SetDefault("server.args", []string{})
	v.SetDefault("server.env", []string{})
	v.SetDefault("server.dir", "")
	v.SetDefault("roots", []string{})
	v.SetDefault("client.protocol_versions", []string{})
	v.SetDefault("client.validate_arguments", false)
	v.SetDefault("client.log_frames", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("client.name", "mcp-client")
	v.SetDefault("client.version", version)
	v.SetDefault("client.request_timeout", 30*time.Second)
	v.SetDefault("client.max_pages", 100)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.exporter", string(observability.ExporterTypeNoop))
	v.SetDefault("tracing.sample_rate", 1.0)
}

// newViper returns a viper instance reading MCPCLIENT_* variables and, when
// present, mcp-client.yaml from file, the working directory or the user's
// config directory.
func newViper(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mcp-client")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig decodes v and checks it
func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Server.Command == "" {
		return nil, fmt.Errorf("no server command: pass --server or set server.command")
	}
	switch observability.ExporterType(cfg.Tracing.Exporter) {
	case observability.ExporterTypeNoop, observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP:
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Tracing.Exporter)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newLogger builds the CLI logger on w
func newLogger(cfg LogConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter logging.Formatter
	switch cfg.Format {
	case "json":
		formatter = logging.NewJSONFormatter()
	case "text", "":
		formatter = logging.NewTextFormatter()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := logging.New(w, formatter)
	logger.SetLevel(level)
	return logger, nil
}
