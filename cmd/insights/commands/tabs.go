package commands

import (
	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/probe"
	"github.com/orginsights/insights/pkg/stringutil"
)

func newTabsCommand(a *app) *cobra.Command {
	var (
		output string
		match  string
	)
	cmd := &cobra.Command{
		Use:     "tabs",
		Short:   "List browser tabs and mark the one a run would use",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProbe(ctx, a.cfg.Browser)
			if err != nil {
				return err
			}
			defer p.Close()

			tabs, err := p.Tabs(ctx)
			if err != nil {
				return err
			}
			if match == "" {
				match = a.cfg.Browser.TabMatch
			}
			selected, _ := probe.FindTab(tabs, match)

			rows := make([][]string, 0, len(tabs))
			for _, t := range tabs {
				mark := ""
				if t.ID == selected.ID {
					mark = "*"
				}
				rows = append(rows, []string{mark, t.ID, stringutil.Ellipsis(t.Title, 40), t.URL})
			}
			return a.formatter(cmd, format.ParseMode(output), false).
				PrintTable([]string{"Selected", "ID", "Title", "URL"}, rows)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
	cmd.Flags().StringVar(&match, "tab", "", "Tab id or URL substring (overrides browser.tab_match)")
	return cmd
}
