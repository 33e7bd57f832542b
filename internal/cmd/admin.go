package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/observability"
)

// adminPasswordEnv is read when --password is not given, keeping the
// password out of shell history.
const adminPasswordEnv = "RANKSHOP_ADMIN_PASSWORD"

var adminPassword string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin panel accounts",
}

var adminSetCmd = &cobra.Command{
	Use:     "set <username>",
	Aliases: []string{"create", "password"},
	Short:   "Create an admin or replace their password",
	Long: `Create an admin or replace their password.

Replacing a password signs the admin out everywhere. The password comes from
--password or the ` + adminPasswordEnv + ` environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolveAdminPassword(adminPassword, os.Getenv(adminPasswordEnv))
		if err != nil {
			return err
		}

		cfg := loadConfig(cmd.Context())
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		svc, err := newAuthService(cfg, db, observability.CLILogger)
		if err != nil {
			return err
		}
		if err := svc.CreateAdmin(cmd.Context(), args[0], password); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Admin %q saved\n", strings.TrimSpace(args[0]))
		return err
	},
}

func resolveAdminPassword(flagValue, envValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if envValue != "" {
		return envValue, nil
	}
	return "", errors.New("password required: pass --password or set " + adminPasswordEnv)
}

func init() {
	adminSetCmd.Flags().StringVar(&adminPassword, "password", "", "New password (prefer "+adminPasswordEnv+")")
	adminCmd.AddCommand(adminSetCmd)
	rootCmd.AddCommand(adminCmd)
}
