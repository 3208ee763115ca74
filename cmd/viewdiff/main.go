// viewdiff composes one view at two points in time and prints what changed.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plasa/consensus/conductor"
	"plasa/facts"
	"plasa/plasa"
	"plasa/views"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	factsPath string
	registry  string
	account   string
	username  string
	from      int64
	to        int64
	asPatch   bool
)

func init() {
	rootCmd.Flags().StringVar(&factsPath, "facts", "", "ledger fixture to read facts from (defaults to the daemon's factsFile)")
	rootCmd.Flags().StringVar(&registry, "registry", "", "plasa registry address (defaults to the daemon's registry)")
	rootCmd.Flags().StringVar(&account, "account", "", "account to compose the view for")
	rootCmd.Flags().StringVar(&username, "username", "", "linked username of the account")
	rootCmd.Flags().Int64Var(&from, "from", 0, "first timestamp, in milliseconds")
	rootCmd.Flags().Int64Var(&to, "to", 0, "second timestamp, in milliseconds (0 means latest)")
	rootCmd.Flags().BoolVar(&asPatch, "patch", false, "print a patch instead of a coloured diff")
}

var rootCmd = &cobra.Command{
	Use:   "viewdiff [plasa|space|question|stamp] [id]",
	Short: "Show how a view changed between two timestamps",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := views.Kind(args[0])
		var id plasa.Address
		if len(args) > 1 {
			id = args[1]
		}
		conf := viper.New()
		plasa.InitConfig(conf)
		config := plasa.LoadConfig(conf)
		plasa.SetLogLevel(config.LogLevel)
		if registry != "" {
			config.Registry = registry
		}
		ledger, err := facts.LoadLedger(resolveFacts(factsPath, config))
		if err != nil {
			return err
		}
		c := conductor.New(ledger, config)
		if kind == views.KindPlasa {
			id = c.Registry()
		}
		out, err := diffViews(cmd.Context(), c, kind, id, plasa.Viewer{Account: account, Username: username}, from, to, asPatch)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// resolveFacts picks the facts file: the flag when set, otherwise the configured
// one, relative to the root directory unless it is absolute.
func resolveFacts(flag string, config plasa.Config) string {
	path := flag
	if path == "" {
		path = config.FactsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(config.RootDir, path)
		}
	}
	return path
}

// render composes the view as of the latest anchor at or before t, or at the
// latest anchor when t is zero, as indented JSON.
func render(ctx context.Context, c *conductor.Conductor, kind views.Kind, id plasa.Address, viewer plasa.Viewer, t int64) (plasa.Anchor, string, error) {
	var a plasa.Anchor
	var err error
	if t == 0 {
		a, err = c.Coordinator().Latest(ctx)
	} else {
		a, err = c.Coordinator().ResolveAnchor(ctx, t)
	}
	if err != nil {
		return a, "", err
	}
	v, err := c.View(ctx, kind, id, viewer, &a)
	if err != nil {
		return a, "", err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return a, "", err
	}
	return a, string(b) + "\n", nil
}

func diffViews(ctx context.Context, c *conductor.Conductor, kind views.Kind, id plasa.Address, viewer plasa.Viewer, from, to int64, patch bool) (string, error) {
	fa, before, err := render(ctx, c, kind, id, viewer, from)
	if err != nil {
		return "", err
	}
	ta, after, err := render(ctx, c, kind, id, viewer, to)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("%s %s for %q: %s -> %s\n", kind, id, viewer.Account, fa, ta)
	if before == after {
		return header + "no changes\n", nil
	}
	dmp := diffmatchpatch.New()
	if patch {
		return header + dmp.PatchToText(dmp.PatchMake(before, after)), nil
	}
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	return header + dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
