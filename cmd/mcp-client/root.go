package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/mcp-client-go/pkg/client"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
)

const version = "0.1.0"

// app carries what every subcommand shares
type app struct {
	cfgFile string
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
}

// flagKeys maps persistent flags to config keys
var flagKeys = map[string]string{
	"server":           "server.command",
	"server-arg":       "server.args",
	"server-env":       "server.env",
	"server-dir":       "server.dir",
	"root":             "roots",
	"protocol-version": "client.protocol_versions",
	"timeout":          "client.request_timeout",
	"validate":         "client.validate_arguments",
	"log-frames":       "client.log_frames",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-addr":     "metrics.addr",
	"tracing-exporter": "tracing.exporter",
	"tracing-endpoint": "tracing.endpoint",
	"tracing-insecure": "tracing.insecure",
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "mcp-client",
		Short:         "Talk to an MCP server over stdio",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(a.cfgFile)
			if err != nil {
				return err
			}
			for name, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			a.v = v
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./mcp-client.yaml)")
	flags.String("server", "", "server command to spawn")
	flags.StringSlice("server-arg", nil, "argument passed to the server command (repeatable)")
	flags.StringSlice("server-env", nil, "KEY=VALUE added to the server environment (repeatable)")
	flags.String("server-dir", "", "working directory of the server process")
	flags.StringSlice("root", nil, "directory or URI exposed to the server as a root (repeatable)")
	flags.StringSlice("protocol-version", nil, "accepted protocol version, most preferred first (repeatable)")
	flags.Duration("timeout", 0, "timeout for each request")
	flags.Bool("validate", false, "validate tool arguments against the tool's input schema")
	flags.Bool("log-frames", false, "log every frame sent and received")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("tracing-exporter", "", "trace exporter: noop, otlp-grpc or otlp-http")
	flags.String("tracing-endpoint", "", "OTLP endpoint")
	flags.Bool("tracing-insecure", false, "disable TLS for the OTLP exporter")

	root.AddCommand(
		newInfoCommand(a),
		newToolsCommand(a),
		newPromptsCommand(a),
		newResourcesCommand(a),
		newTemplatesCommand(a),
		newCallCommand(a),
		newPromptCommand(a),
		newReadCommand(a),
		newWatchCommand(a),
	)
	return root
}

// session is one initialized client plus the providers it reports into
type session struct {
	client  *client.Client
	logger  logging.Logger
	closers []func(context.Context) error
}

// connect spawns the configured server and completes the handshake
func (a *app) connect(ctx context.Context) (*session, error) {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, a.errOut)
	if err != nil {
		return nil, err
	}
	s := &session{logger: logger}

	var metrics observability.ClientMetrics = observability.NopMetrics{}
	if cfg.Metrics.Addr != "" {
		pm, err := observability.NewPrometheusMetrics(observability.MetricsConfig{
			ServiceName:    "mcp-client",
			ServiceVersion: version,
			MetricsAddr:    cfg.Metrics.Addr,
			MetricsPath:    cfg.Metrics.Path,
		})
		if err != nil {
			return nil, err
		}
		if err := pm.Start(ctx); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pm.Shutdown)
		metrics = pm
		logger.Info("Serving metrics", logging.String("addr", cfg.Metrics.Addr))
	}
	observability.RegisterTransportMetrics(metrics)

	tracing, err := observability.NewTracingProvider(observability.TracingConfig{
		ServiceName:    "mcp-client",
		ServiceVersion: version,
		ExporterType:   observability.ExporterType(cfg.Tracing.Exporter),
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.closers = append(s.closers, tracing.Shutdown)

	tcfg := transport.DefaultTransportConfig(transport.TransportTypeCommand)
	tcfg.Command = cfg.Server.Command
	tcfg.Args = cfg.Server.Args
	tcfg.Env = cfg.Server.Env
	tcfg.Dir = cfg.Server.Dir
	tcfg.Stderr = a.errOut
	tcfg.Observability.EnableLogging = cfg.Client.LogFrames
	tcfg.Observability.Logger = logger

	t, err := transport.NewTransport(tcfg)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	options := []client.Option{
		client.WithName(cfg.Client.Name),
		client.WithVersion(cfg.Client.Version),
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTracer(tracing.Tracer()),
		client.WithRequestTimeout(cfg.Client.RequestTimeout),
		client.WithArgumentValidation(cfg.Client.ValidateArguments),
		client.WithMaxPages(cfg.Client.MaxPages),
		client.WithLogHandler(serverLogHandler(logger)),
	}
	if len(cfg.Client.ProtocolVersions) > 0 {
		options = append(options, client.WithSupportedVersions(cfg.Client.ProtocolVersions...))
	}
	if len(cfg.Roots) > 0 {
		roots, err := parseRoots(cfg.Roots)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		options = append(options, client.WithRootsHandler(func(context.Context) ([]protocol.Root, error) {
			return roots, nil
		}))
	}

	c, err := client.New(t, options...)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.client = c

	if _, err := c.Initialize(ctx); err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

// close ends the session and flushes the providers
func (s *session) close(ctx context.Context) {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Failed to close client", logging.ErrorField(err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Failed to shut down provider", logging.ErrorField(err))
		}
	}
}

// serverLogHandler writes server log notifications into the CLI log
func serverLogHandler(logger logging.Logger) client.LogHandler {
	return func(params protocol.LogMessageParams) {
		fields := []logging.Field{logging.String("server_level", string(params.Level))}
		if params.Logger != "" {
			fields = append(fields, logging.String("logger", params.Logger))
		}
		switch params.Level {
		case protocol.LoggingLevelDebug:
			logger.Debug(params.DataString(), fields...)
		case protocol.LoggingLevelInfo, protocol.LoggingLevelNotice:
			logger.Info(params.DataString(), fields...)
		case protocol.LoggingLevelWarning:
			logger.Warn(params.DataString(), fields...)
		default:
			logger.Error(params.DataString(), fields...)
		}
	}
}

// parseRoots turns directories and URIs into roots. Directories become file URIs.
func parseRoots(values []string) ([]protocol.Root, error) {
	roots := make([]protocol.Root, 0, len(values))
	for _, value := range values {
		if strings.Contains(value, "://") {
			roots = append(roots, protocol.Root{URI: value})
			continue
		}

		abs, err := filepath.Abs(value)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, err
		}
		roots = append(roots, protocol.Root{
			URI:  "file://" + filepath.ToSlash(abs),
			Name: filepath.Base(abs),
		})
	}
	return roots, nil
}
