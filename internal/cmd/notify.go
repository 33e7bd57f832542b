package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Work with order announcements",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample order announcement to the configured webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd.Context())
		client := newNotifier(cfg)
		if !client.Enabled() {
			return fmt.Errorf("webhook.url is not set: %w", notify.ErrNotConfigured)
		}

		msg := notify.OrderMessage(notify.OrderDetails{
			Order:    sampleOrder(time.Now().UTC()),
			Warnings: []string{"This is a test announcement."},
		})
		if err := client.Send(cmd.Context(), msg); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "Test announcement delivered")
		return err
	},
}

func sampleOrder(now time.Time) core.Order {
	return core.Order{
		ID:              "00000000-0000-0000-0000-000000000000",
		Username:        "Steve",
		Platform:        core.PlatformJava,
		ProductID:       "vip",
		RankName:        "VIP",
		OriginalCents:   999,
		DiscountPercent: 10,
		PriceCents:      core.ApplyDiscount(999, 10),
		Status:          core.OrderStatusPending,
		PaymentProof:    "https://example.com/proof.png",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func init() {
	notifyCmd.AddCommand(notifyTestCmd)
	rootCmd.AddCommand(notifyCmd)
}
