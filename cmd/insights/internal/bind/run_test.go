package bind

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	_ "github.com/orginsights/insights/pkg/modules/all"
)

func runCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("customer", "", "")
	cmd.Flags().StringSlice("modules", nil, "")
	cmd.Flags().String("owner", "", "")
	cmd.Flags().String("tab", "", "")
	cmd.Flags().String("lock-dir", "", "")
	cmd.Flags().Bool("abort-on-cancel", false, "")
	cmd.Flags().Bool("no-files", false, "")
	cmd.Flags().String("output", "table", "")
	cmd.Flags().Bool("quiet", false, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestBindRunOptions(t *testing.T) {
	opts, err := BindRunOptions(runCmd(t, "--customer", " Acme ", "--modules", "Licenses, storage,", "--owner", "alice", "--output", "json"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", opts.Customer)
	assert.Equal(t, []string{"licenses", "storage"}, opts.Modules)
	assert.Equal(t, "alice", opts.Owner)
	assert.Equal(t, format.ModeJSON, opts.Output)
}

func TestBindRunOptions_Defaults(t *testing.T) {
	opts, err := BindRunOptions(runCmd(t, "--customer", "Acme"))
	require.NoError(t, err)
	assert.NotEmpty(t, opts.Owner)
	assert.Equal(t, []string{
		"licenses", "profiles", "general-info", "health-check", "storage",
		"sandboxes", "sharing-settings", "login-history", "sensitive-data",
	}, opts.Modules)
}

func TestBindRunOptions_Errors(t *testing.T) {
	_, err := BindRunOptions(runCmd(t))
	assert.EqualError(t, err, "--customer is required")

	_, err = BindRunOptions(runCmd(t, "--customer", "Acme", "--output", "yaml"))
	assert.Error(t, err)
}
