package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/engine"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

func newModulesCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "modules",
		Short:   "List extraction modules",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := engine.NewDefaultRegistry(log.Logger)
			if err := registry.Configure(a.cfg.ModuleOptions); err != nil {
				return err
			}

			mode := format.ParseMode(output)
			f := a.formatter(cmd, mode, false)
			if mode == format.ModeJSON {
				return f.PrintJSON(registry.Descriptors())
			}

			descs := registry.Descriptors()
			rows := make([][]string, 0, len(descs))
			for _, d := range descs {
				rows = append(rows, []string{d.ID, d.Name, engine.FilenameFor(d.ID), d.Version, d.Timeout.String(), d.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(fmt.Sprintf("%d extraction modules", len(descs))))
			return f.PrintTable([]string{"ID", "Name", "Filename", "Version", "Timeout", "Description"}, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
	return cmd
}
