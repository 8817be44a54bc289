package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/stageship/internal/cliconfig"
	"github.com/bft-labs/stageship/internal/spool"
	"github.com/bft-labs/stageship/pkg/log"
	"github.com/bft-labs/stageship/pkg/stageship"
)

const helpDescription = `
Stage records into crash-safe batch files and deliver them to a stream.

Records land in <root>/staging. A batch that reaches --max-rows rows moves to
<root>/pending, and the delivery loop submits every pending batch until the
service acknowledges it. Delivered batches are archived, or deleted with
--remove-on-send.

Configure via file ($HOME/.stageship/config.toml), STAGESHIP_* environment
variables, or flags; flags win over environment, environment over file.
`

var exampleUsage = strings.TrimSpace(`
  stageship stage '{"event":"login"}' '{"event":"logout"}'
  tail -f app.log | stageship stage --max-rows 500
  stageship stage --follow /var/log/app.jsonl
  stageship run --stream clickstream --service-url https://ingest.example.com --auth-key <key>
  stageship run --once
  stageship status
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the state shared by all subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

func main() {
	c := &cli{
		cfg: cliconfig.DefaultConfig(),
		log: log.NewConsoleLogger(os.Stderr, zerolog.InfoLevel),
	}

	root := &cobra.Command{
		Use:           "stageship",
		Short:         "Stage records into batch files and deliver them to a stream",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.stageship/config.toml)")
	flags.StringVar(&c.cfg.Root, "root", c.cfg.Root, "directory holding staging/, pending/ and archived/")
	flags.StringVar(&c.cfg.Prefix, "prefix", c.cfg.Prefix, "batch file name prefix")
	flags.StringVar(&c.cfg.StreamName, "stream", c.cfg.StreamName, "destination stream name")
	flags.StringVar(&c.cfg.ServiceURL, "service-url", c.cfg.ServiceURL, "base URL of the ingestion service")
	flags.StringVar(&c.cfg.AuthKey, "auth-key", c.cfg.AuthKey, "API key for authentication")
	flags.IntVar(&c.cfg.MaxRows, "max-rows", c.cfg.MaxRows, "rows per batch before it is promoted")
	flags.BoolVar(&c.cfg.RemoveOnSend, "remove-on-send", c.cfg.RemoveOnSend, "delete delivered batches instead of archiving them")
	flags.BoolVar(&c.cfg.Structured, "structured", c.cfg.Structured, "ship only complete JSON objects from each batch")
	flags.DurationVar(&c.cfg.PollInterval, "poll", c.cfg.PollInterval, "pause between delivery cycles")
	flags.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(c.runCommand(), c.stageCommand(), c.statusCommand())

	if err := root.Execute(); err != nil {
		c.log.Error().Err(err).Msg("stageship")
		os.Exit(1)
	}
}

// load resolves the effective configuration: defaults, then the config
// file, then STAGESHIP_* variables, with explicitly set flags on top.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	} else if c.cfgPath != "" {
		return fmt.Errorf("config file %s not found", c.cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	level, err := log.ParseLevel(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.log = log.NewConsoleLogger(os.Stderr, level)

	return c.cfg.Validate()
}

func (c *cli) logConfig() {
	logCfg := c.cfg
	logCfg.AuthKey = c.cfg.MaskedAuthKey()
	c.log.Debug().Interface("config", logCfg).Msg("configuration")
}

// libraryConfig converts the CLI configuration to the library one.
func (c *cli) libraryConfig() stageship.Config {
	return stageship.Config{
		Root:         c.cfg.Root,
		Prefix:       c.cfg.Prefix,
		StreamName:   c.cfg.StreamName,
		ServiceURL:   c.cfg.ServiceURL,
		AuthKey:      c.cfg.AuthKey,
		MaxRows:      c.cfg.MaxRows,
		RemoveOnSend: c.cfg.RemoveOnSend,
		Structured:   c.cfg.Structured,
		PollInterval: c.cfg.PollInterval,
		HTTPTimeout:  c.cfg.HTTPTimeout,
	}
}

// openQueue opens the on-disk queue without contacting the sink.
func (c *cli) openQueue() (*spool.Queue, error) {
	return spool.NewQueue(spool.Options{
		Root:          c.cfg.Root,
		Prefix:        c.cfg.Prefix,
		MaxRows:       c.cfg.MaxRows,
		KeepDelivered: !c.cfg.RemoveOnSend,
		Logger:        log.NewZerologAdapterWithLogger(c.log),
	})
}
