package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-painpoint/internal/config"
	"github.com/goliatone/go-painpoint/pkg/di"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrReported is returned after a command already told the user what went
// wrong; main only sets the exit status.
var ErrReported = errors.New("reported")

// RootOptions holds state shared by every command.
type RootOptions struct {
	ConfigFile string
	v          *viper.Viper
}

// NewRootCommand creates the painpoint command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}
	config.Configure(opts.v)

	cmd := &cobra.Command{
		Use:   "painpoint",
		Short: "Flag the classes of a project that are painful to work with",
		Long: `painpoint records per-user "pain point" flags on source files and keeps
them in a shared SQL table so a team can see which classes hurt the most.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.readConfig(); err != nil {
				return err
			}
			return setupLogger(opts.v, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./painpoint.yaml)")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "text", "log format: text, json")
	f.String("driver", "", "store driver: sqlite3, postgres")
	f.String("dsn", "", "store connection string")

	opts.mustBindPFlag("log_level", f.Lookup("log-level"))
	opts.mustBindPFlag("log_format", f.Lookup("log-format"))
	opts.mustBindPFlag("database.driver", f.Lookup("driver"))
	opts.mustBindPFlag("database.dsn", f.Lookup("dsn"))

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewIDCommand(opts))
	cmd.AddCommand(NewFlagCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewServeMetricsCommand(opts))

	return cmd
}

func (o *RootOptions) readConfig() error {
	if o.ConfigFile != "" {
		o.v.SetConfigFile(o.ConfigFile)
	} else {
		o.v.SetConfigName("painpoint")
		o.v.SetConfigType("yaml")
		o.v.AddConfigPath(".")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && o.ConfigFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// load returns the validated configuration.
func (o *RootOptions) load() (config.Config, error) {
	return config.Load(o.v)
}

// container builds the service graph and ensures the table exists. Schema
// failures are logged and the container is still returned.
func (o *RootOptions) container(cmd *cobra.Command) (*di.Container, config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, config.Config{}, err
	}

	c, err := di.NewContainer(di.Config{
		Store:   cfg.StoreConfig(),
		Cache:   cfg.CacheConfig(),
		Deriver: cfg.Deriver(),
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, config.Config{}, err
	}

	_ = c.EnsureSchema(cmd.Context())
	return c, cfg, nil
}

func (o *RootOptions) mustBindPFlag(key string, flag *pflag.Flag) {
	if err := o.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}

func setupLogger(v *viper.Viper, w io.Writer) error {
	level := v.GetString("log_level")
	format := v.GetString("log_format")

	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("unknown log level: %q (expected debug, info, warn, error)", level)
	}

	opts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format: %q (expected text, json)", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
