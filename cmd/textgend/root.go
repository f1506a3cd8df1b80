package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"textgend/internal/config"
)

// app carries the resolved configuration and logger to subcommands.
type app struct {
	cfgPath string
	cfg     config.Config
	log     zerolog.Logger
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&app{}) }

// newRootCmdWith builds the command tree over a.
func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "textgend",
		Short:         "Streaming text generation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file (.yaml, .json or .toml)")
	pf.String("log-level", "", "Log level: debug|info|warn|error (default info)")
	pf.String("log-format", "", "Log format: console|json (default console)")
	pf.String("catalog", "", "Model catalog file merged over the builtin models")
	pf.String("backend", "", "Backend for catalog entries that name none (bigram, llama)")
	pf.Int("cache-capacity", 0, "Asset cache capacity in entries (0=unbounded)")
	pf.String("storage-driver", "", "Key-value storage: memory|sqlite|redis (default sqlite)")
	pf.String("storage-path", "", "SQLite file for the sqlite driver")
	pf.String("redis-addr", "", "Redis address for the redis driver")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newServeCmd(a),
		newGenerateCmd(a),
		newModelsCmd(a),
		newStorageCmd(a),
	)
	return root
}

// resolve layers defaults, the config file, the environment and flags.
func (a *app) resolve(cmd *cobra.Command, logOut io.Writer) error {
	var cfg config.Config
	if a.cfgPath != "" {
		c, err := config.Load(a.cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if v := os.Getenv("TEXTGEND_ADDR"); v != "" && cfg.Addr == "" {
		cfg.Addr = v
	}
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("catalog", &cfg.CatalogPath)
	str("backend", &cfg.Backend)
	str("storage-driver", &cfg.Storage.Driver)
	str("storage-path", &cfg.Storage.Path)
	str("redis-addr", &cfg.Storage.RedisAddr)
	if flags.Changed("cache-capacity") {
		n, err := flags.GetInt("cache-capacity")
		if err != nil {
			return err
		}
		cfg.CacheCapacity = n
	}
	a.cfg = cfg.WithDefaults()
	log, err := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// newLogger builds the process logger.
func newLogger(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	switch format {
	case "json":
	case "console", "":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
