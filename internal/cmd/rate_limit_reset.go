package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/output"
)

var (
	rateLimitResetAll        bool
	rateLimitResetIdentifier string
	rateLimitResetPrefix     string
	rateLimitResetBlocked    bool
	rateLimitResetYes        bool
	rateLimitResetDryRun     bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Unblock clients by deleting their rate limit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:         rateLimitResetAll,
			Identifier:  strings.TrimSpace(rateLimitResetIdentifier),
			Prefix:      strings.TrimSpace(rateLimitResetPrefix),
			BlockedOnly: rateLimitResetBlocked,
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		admin, err := openRateLimitAdmin(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer admin.Close() // nolint:errcheck // best-effort cleanup

		matched, err := admin.List(cmd.Context(), query)
		if err != nil {
			return err
		}
		if rateLimitResetDryRun {
			return writeRateLimitResetResult(format, cmd.OutOrStdout(), len(matched), 0, true)
		}

		deleted, err := admin.Reset(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeRateLimitResetResult(format, cmd.OutOrStdout(), len(matched), deleted, false)
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	lines := []string{fmt.Sprintf("Matched: %d", matched)}
	if dryRun {
		lines = append(lines, "Dry run: nothing deleted")
	} else {
		lines = append(lines, fmt.Sprintf("Deleted: %d", deleted))
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every identifier")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetIdentifier, "identifier", "", "Reset a single identifier (exact match)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset identifiers with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetBlocked, "blocked", false, "Reset blocked identifiers only")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
}
