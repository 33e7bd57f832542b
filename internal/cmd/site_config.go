package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/observability"
)

var siteConfigCmd = &cobra.Command{
	Use:   "site-config",
	Short: "Show or change storefront settings",
}

var siteConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the public storefront settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		catalog := &engine.Catalog{Store: db, Logger: observability.CLILogger}
		site, err := catalog.PublicSiteConfig(cmd.Context())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(site))
		for key := range site {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, site[key]); err != nil {
				return err
			}
		}
		return nil
	},
}

var siteConfigSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one storefront setting, e.g. global_discount 15",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		catalog := &engine.Catalog{Store: db, Logger: observability.CLILogger}
		if err := catalog.SetSiteConfig(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
		return err
	},
}

func init() {
	siteConfigCmd.AddCommand(siteConfigShowCmd)
	siteConfigCmd.AddCommand(siteConfigSetCmd)
	rootCmd.AddCommand(siteConfigCmd)
}
