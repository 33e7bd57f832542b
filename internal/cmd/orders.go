package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/observability"
	"github.com/rankshop/rankshop/internal/output"
)

var (
	ordersStatus string
	ordersLimit  int
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Review customer orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := core.OrderQuery{Limit: ordersLimit}
		if strings.TrimSpace(ordersStatus) != "" {
			status, err := core.ParseOrderStatus(ordersStatus)
			if err != nil {
				return err
			}
			query.Status = status
		}

		db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		orders, err := db.ListOrders(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeListing(cmd, "orders", func(f output.Formatter) (string, error) {
			return f.FormatOrders(orders)
		})
	},
}

var ordersSetStatusCmd = &cobra.Command{
	Use:   "set-status <order-id> <pending|approved|completed|rejected>",
	Short: "Move an order to a new status and announce it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.ParseOrderStatus(args[1])
		if err != nil {
			return err
		}

		cfg := loadConfig(cmd.Context())
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		orchestrator := &engine.Orchestrator{
			Store:         db,
			Notifier:      newNotifier(cfg),
			NotifyTimeout: cfg.Webhook.Timeout,
			Logger:        observability.CLILogger,
		}
		order, err := orchestrator.UpdateStatus(cmd.Context(), strings.TrimSpace(args[0]), status)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", order.ID, order.Status)
		return err
	},
}

func init() {
	addOutputFlags(ordersListCmd)
	ordersListCmd.Flags().StringVar(&ordersStatus, "status", "", "Only orders with this status")
	ordersListCmd.Flags().IntVar(&ordersLimit, "limit", 50, "Maximum orders to list (0 for all)")

	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersSetStatusCmd)
	rootCmd.AddCommand(ordersCmd)
}
