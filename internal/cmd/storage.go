package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/storage"
)

var storageCreate bool

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect object storage used for uploads",
}

var storageEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Check that every configured upload bucket exists",
	Long: `Check that every configured upload bucket exists, in fallback order.

With --create, missing buckets are created as public buckets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd.Context())
		backend, err := storage.Open(cfg.Storage, publicBaseURL(cfg))
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("storage.driver is \"none\"; uploads fall back to inline data URLs")
		}

		available, ensureErr := storage.EnsureBuckets(cmd.Context(), backend, cfg.Storage.Buckets, storageCreate)
		lines := []string{
			"Driver:  " + cfg.Storage.Driver,
			fmt.Sprintf("Buckets: %d/%d available", len(available), len(cfg.Storage.Buckets)),
			"Chain:   " + strings.Join(append(available, "inline"), " -> "),
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0)); err != nil {
			return err
		}
		return ensureErr
	},
}

func init() {
	storageEnsureCmd.Flags().BoolVar(&storageCreate, "create", false, "Create missing buckets")
	storageCmd.AddCommand(storageEnsureCmd)
	rootCmd.AddCommand(storageCmd)
}
