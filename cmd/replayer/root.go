package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"SlotReplay/internal/config"
	"SlotReplay/internal/logger"
)

// app is shared by every command of one invocation.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

// newRootCmd builds the command tree. Settings are loaded once the
// executing command is known so that only its flags are bound.
func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	var configFile string

	root := &cobra.Command{
		Use:           "slotreplay",
		Short:         "Replay dumped blocks on top of a state backup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bindFlags(a.v, cmd.Flags())

			if err := config.ReadFile(a.v, configFile); err != nil {
				return err
			}

			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}

			logger.InitWith(logger.Options{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})
			a.cfg = cfg

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringP(config.KeyPath, "p", "", "directory holding backup_<period>_<thread> snapshots")
	flags.StringP(config.KeyInitialRolls, "r", "", "path of initial_rolls.json")
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address")
	flags.Uint64(config.KeyChainID, config.DefaultChainID, "chain id mixed into identities")
	flags.Uint(config.KeyThreadCount, config.DefaultThreadCount, "number of threads")

	root.AddCommand(
		newListSnapshotCmd(a),
		newReplayCmd(a),
		newArchiveCmd(a),
		newJournalCmd(a),
	)

	// --until_slot and --until-slot name the same flag.
	root.SetGlobalNormalizationFunc(normalizeFlag)

	return root
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// bindFlags binds every flag of the executing command to its setting key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}

		_ = v.BindPFlag(f.Name, f)
	})
}
