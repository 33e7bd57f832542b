package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/observability"
	"github.com/rankshop/rankshop/internal/output"
)

var productsAll bool

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the rank catalog",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products with the discount in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		catalog := &engine.Catalog{Store: db, Logger: observability.CLILogger}
		products, err := catalog.Products(cmd.Context(), !productsAll)
		if err != nil {
			return err
		}

		return writeListing(cmd, "products", func(f output.Formatter) (string, error) {
			return f.FormatProducts(products)
		})
	},
}

var productsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or replace products from a YAML catalog file",
	Long: `Create or replace products from a YAML catalog file.

  products:
    - id: vip
      name: VIP
      price: "9.99"
      discount_percent: 10
      color: "#f1c40f"
      perks: ["/fly", "Gold prefix"]

Products missing from the file are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		products, err := parseProductFile(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		for i := range products {
			if err := db.UpsertProduct(cmd.Context(), &products[i]); err != nil {
				return fmt.Errorf("product %s: %w", products[i].ID, err)
			}
			observability.CLILogger.Debug("Product imported",
				zap.String("id", products[i].ID),
				zap.Int64("price_cents", products[i].PriceCents))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d product(s)\n", len(products))
		return err
	},
}

var productsSetPriceCmd = &cobra.Command{
	Use:   "set-price <product-id> <amount>",
	Short: "Set a product's base price, e.g. 9.99",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cents, err := core.ParseCents(args[1])
		if err != nil {
			return err
		}
		return updateProduct(cmd, args[0], core.ProductUpdate{PriceCents: &cents})
	},
}

var productsSetDiscountCmd = &cobra.Command{
	Use:   "set-discount <product-id> <percent>",
	Short: "Set a product's own discount (0-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args[1]), "%"))
		if err != nil {
			return fmt.Errorf("invalid percent: %q", args[1])
		}
		return updateProduct(cmd, args[0], core.ProductUpdate{DiscountPercent: &percent})
	},
}

var productsActivateCmd = &cobra.Command{
	Use:   "activate <product-id>",
	Short: "Show a product in the storefront",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active := true
		return updateProduct(cmd, args[0], core.ProductUpdate{Active: &active})
	},
}

var productsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <product-id>",
	Short: "Hide a product from the storefront",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active := false
		return updateProduct(cmd, args[0], core.ProductUpdate{Active: &active})
	},
}

func updateProduct(cmd *cobra.Command, id string, update core.ProductUpdate) error {
	db, err := openStore(cmd.Context(), loadConfig(cmd.Context()))
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	product, err := applyProductUpdate(cmd.Context(), db, id, update)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d%% off, active=%t\n",
		product.ID, core.FormatCents(product.PriceCents), product.DiscountPercent, product.Active)
	return err
}

func applyProductUpdate(ctx context.Context, db *store.Store, id string, update core.ProductUpdate) (*core.Product, error) {
	catalog := &engine.Catalog{Store: db, Logger: observability.CLILogger}
	return catalog.UpdateProduct(ctx, strings.TrimSpace(id), update)
}

// productFile is the YAML catalog layout accepted by products import.
type productFile struct {
	Products []productEntry `yaml:"products"`
}

type productEntry struct {
	core.Product `yaml:",inline"`
	// Price is a decimal amount; it wins over price_cents when both are set.
	Price  string `yaml:"price"`
	Hidden bool   `yaml:"hidden"`
}

// parseProductFile decodes and checks a catalog file. Products are active
// unless marked hidden.
func parseProductFile(raw []byte) ([]core.Product, error) {
	var file productFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]core.Product, 0, len(file.Products))
	for i, entry := range file.Products {
		product := entry.Product
		product.ID = strings.TrimSpace(product.ID)
		product.Name = strings.TrimSpace(product.Name)
		switch {
		case product.ID == "":
			return nil, fmt.Errorf("product %d: id is required", i+1)
		case product.Name == "":
			return nil, fmt.Errorf("product %s: name is required", product.ID)
		case seen[product.ID]:
			return nil, fmt.Errorf("product %s: duplicate id", product.ID)
		}
		seen[product.ID] = true

		if strings.TrimSpace(entry.Price) != "" {
			cents, err := core.ParseCents(entry.Price)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", product.ID, err)
			}
			product.PriceCents = cents
		}
		if product.PriceCents < 0 {
			return nil, fmt.Errorf("product %s: price cannot be negative", product.ID)
		}
		if product.DiscountPercent < 0 || product.DiscountPercent > 100 {
			return nil, fmt.Errorf("product %s: discount_percent must be between 0 and 100", product.ID)
		}
		if product.SortOrder == 0 {
			product.SortOrder = i + 1
		}
		product.Active = !entry.Hidden
		products = append(products, product)
	}
	return products, nil
}

func init() {
	addOutputFlags(productsListCmd)
	productsListCmd.Flags().BoolVar(&productsAll, "all", false, "Include inactive products")

	productsCmd.AddCommand(productsListCmd)
	productsCmd.AddCommand(productsImportCmd)
	productsCmd.AddCommand(productsSetPriceCmd)
	productsCmd.AddCommand(productsSetDiscountCmd)
	productsCmd.AddCommand(productsActivateCmd)
	productsCmd.AddCommand(productsDeactivateCmd)
	rootCmd.AddCommand(productsCmd)
}
