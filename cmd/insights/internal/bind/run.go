package bind

import (
	"errors"
	"os"
	"os/user"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orginsights/insights/cmd/insights/internal/format"
	"github.com/orginsights/insights/pkg/engine"
)

// RunOptions holds the run command's options.
type RunOptions struct {
	Customer      string
	Modules       []string
	Owner         string
	TabMatch      string // overrides browser.tab_match when set
	LockDir       string
	AbortOnCancel bool
	NoFiles       bool
	Output        format.OutputMode
	Quiet         bool
}

// BindRunOptions extracts and validates run command flags.
//
// Flags read:
//   - --customer: customer name used for the run folder (required)
//   - --modules: module ids in run order (default: every module, ordinal order)
//   - --owner: run owner for the one-active-run rule (default: OS user)
//   - --tab: tab id or URL substring, overriding browser.tab_match
//   - --lock-dir, --abort-on-cancel, --no-files, --output, --quiet
func BindRunOptions(cmd *cobra.Command) (RunOptions, error) {
	customer, _ := cmd.Flags().GetString("customer")
	modules, _ := cmd.Flags().GetStringSlice("modules")
	owner, _ := cmd.Flags().GetString("owner")
	tab, _ := cmd.Flags().GetString("tab")
	lockDir, _ := cmd.Flags().GetString("lock-dir")
	abort, _ := cmd.Flags().GetBool("abort-on-cancel")
	noFiles, _ := cmd.Flags().GetBool("no-files")
	output, _ := cmd.Flags().GetString("output")
	quiet, _ := cmd.Flags().GetBool("quiet")

	opts := RunOptions{
		Customer:      strings.TrimSpace(customer),
		Modules:       normalizeIDs(modules),
		Owner:         strings.TrimSpace(owner),
		TabMatch:      tab,
		LockDir:       lockDir,
		AbortOnCancel: abort,
		NoFiles:       noFiles,
		Output:        format.ParseMode(output),
		Quiet:         quiet,
	}

	if err := format.ValidateMode(output); err != nil {
		return opts, err
	}
	if opts.Customer == "" {
		return opts, errors.New("--customer is required")
	}
	if len(opts.Modules) == 0 {
		opts.Modules = DefaultModules()
	}
	if opts.Owner == "" {
		opts.Owner = defaultOwner()
	}
	return opts, nil
}

// DefaultModules lists every known module in ordinal filename order.
func DefaultModules() []string {
	ids := engine.RegisteredModuleIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return engine.FilenameFor(ids[i]) < engine.FilenameFor(ids[j])
	})
	return ids
}

func normalizeIDs(raw []string) []string {
	var out []string
	for _, id := range raw {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}
