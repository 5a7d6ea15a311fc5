package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/config"
	"github.com/orginsights/insights/pkg/logging"
	_ "github.com/orginsights/insights/pkg/modules/all"
	"github.com/orginsights/insights/pkg/paths"
)

const cliExecutable = "insights"

// app is the state shared by subcommands once the root has loaded the
// configuration.
type app struct {
	cfg       config.Config
	logCloser io.Closer
}

func (a *app) formatter(cmd *cobra.Command, mode format.OutputMode, quiet bool) format.Formatter {
	return format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode, quiet, !color.NoColor)
}

// NewCommand constructs the top-level insights CLI command, wiring global
// flags, configuration and logging.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		state          = &app{}
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Insights extracts org configuration from a Salesforce Setup session",
		Long: `Insights drives an already signed-in browser tab through Salesforce Setup
and writes one text report and one JSON payload per extraction module.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = paths.DefaultConfigFile()
			}
			mgr := config.NewManager()
			// Only global flags map onto configuration keys.
			if err := mgr.Load(cmd.Root().PersistentFlags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			state.cfg = mgr.Get()

			closer, err := logging.Setup(logging.Options{
				Level:  logging.LevelForVerbosity(state.cfg.Log.Level, verbosityCount),
				Format: state.cfg.Log.Format,
				File:   state.cfg.Log.File,
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			state.logCloser = closer
			log.Debug().Str("config", configFile).Msg("configuration loaded")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.logCloser != nil {
				return state.logCloser.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default: <config dir>/insights/config.yaml)")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "run", Title: "Extraction Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newRunCommand(state))
	cmd.AddCommand(newCancelCommand(state))
	cmd.AddCommand(newStatusCommand(state))
	cmd.AddCommand(newModulesCommand(state))
	cmd.AddCommand(newTabsCommand(state))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
