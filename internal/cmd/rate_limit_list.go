package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/output"
)

var (
	rateLimitListPrefix  string
	rateLimitListBlocked bool
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rate limit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := openRateLimitAdmin(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer admin.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{
			Prefix:      strings.TrimSpace(rateLimitListPrefix),
			BlockedOnly: rateLimitListBlocked,
		}
		if query.Prefix == "" && !query.BlockedOnly {
			query.All = true
		}

		entries, err := admin.List(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeListing(cmd, "rate-limits", func(f output.Formatter) (string, error) {
			return f.FormatRateLimits(entries)
		})
	},
}

func init() {
	addOutputFlags(rateLimitListCmd)
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List identifiers with matching prefix")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListBlocked, "blocked", false, "List blocked identifiers only")
}
