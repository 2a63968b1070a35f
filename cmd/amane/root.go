package main

import (
	"github.com/agenthands/amane/internal/logging"
	"github.com/agenthands/amane/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	v   *viper.Viper
	cfg core.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:   "amane",
		Short: "amane serves a flat-directory object store over HTTP",
		Long: `amane stores objects as a payload file and a JSON sidecar per key in a single
directory, and serves them over HTTP.

Running amane without a subcommand is the same as "amane serve".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default amane.yaml in ., $HOME/.amane, /etc/amane)")
	flags.StringP("bind", "b", core.DefaultBind, "address to listen on")
	flags.StringP("directory", "d", core.DefaultDir, "data directory")
	flags.String("log-level", core.DefaultLogLevel, "log level: debug, info, warn, error or none")
	flags.String("meta-prefix", core.DefaultMetaPrefix, "header prefix carrying user metadata")
	flags.Int64("max-object-bytes", core.DefaultConfig().Server.MaxObjectBytes, "largest accepted upload")
	flags.Bool("index", false, "answer listings from an index next to the data directory")
	flags.String("index-dir", "", "index directory (default <directory>.index)")
	flags.Duration("sweep-every", 0, "run a consistency sweep at this interval while serving (0 disables)")
	flags.Bool("remove-orphans", false, "let sweeps delete sidecars whose payload is gone")

	bind := map[string]string{
		keyConfig:         "config",
		keyBind:           "bind",
		keyDirectory:      "directory",
		keyLogLevel:       "log-level",
		keyMetaPrefix:     "meta-prefix",
		keyMaxObjectBytes: "max-object-bytes",
		keyIndex:          "index",
		keyIndexDir:       "index-dir",
		keySweepEvery:     "sweep-every",
		keyRemoveOrphans:  "remove-orphans",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newServeCmd(a),
		newSweepCmd(a),
		newReindexCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	if err := readConfigFile(a.v); err != nil {
		return err
	}
	cfg, err := configFrom(a.v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	if file := a.v.ConfigFileUsed(); file != "" {
		log.Info("using config file", zap.String("file", file))
	}
	return nil
}
