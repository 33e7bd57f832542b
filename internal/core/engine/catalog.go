package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/upload"
)

// PurposeProductImage scopes product image object names.
const PurposeProductImage = "products"

var (
	ErrInvalidProduct = errors.New("invalid product update")
	ErrUnknownSetting = errors.New("unknown site setting")
	ErrInvalidSetting = errors.New("invalid site setting")
)

// CatalogStore is the persistence used by the catalog.
type CatalogStore interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error)
	GetProduct(ctx context.Context, id string) (*core.Product, error)
	UpdateProduct(ctx context.Context, id string, update core.ProductUpdate) (*core.Product, error)
	GetSiteConfig(ctx context.Context) (map[string]string, error)
	SetSiteConfig(ctx context.Context, key, value string) error
}

// PricedProduct is a product with the discount currently in effect.
type PricedProduct struct {
	core.Product
	EffectiveDiscount   int    `json:"effective_discount_percent"`
	EffectivePriceCents int64  `json:"effective_price_cents"`
	EffectivePrice      string `json:"effective_price"`
}

// Catalog serves products and site settings.
type Catalog struct {
	Store         CatalogStore
	Images        Uploader
	ThumbnailSize int
	Logger        *logging.Logger
}

// Products lists products priced with the larger of their own and the global
// discount.
func (c *Catalog) Products(ctx context.Context, activeOnly bool) ([]PricedProduct, error) {
	products, err := c.Store.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	site, err := c.Store.GetSiteConfig(ctx)
	if err != nil {
		return nil, err
	}
	global := GlobalDiscount(site)

	priced := make([]PricedProduct, 0, len(products))
	for _, product := range products {
		priced = append(priced, Price(product, global))
	}
	return priced, nil
}

// Price applies the effective discount to product.
func Price(product core.Product, globalDiscount int) PricedProduct {
	discount := core.EffectiveDiscount(product.DiscountPercent, globalDiscount)
	cents := core.ApplyDiscount(product.PriceCents, discount)
	return PricedProduct{
		Product:             product,
		EffectiveDiscount:   discount,
		EffectivePriceCents: cents,
		EffectivePrice:      core.FormatCents(cents),
	}
}

// PublicSiteConfig returns only the settings shown to customers.
func (c *Catalog) PublicSiteConfig(ctx context.Context) (map[string]string, error) {
	site, err := c.Store.GetSiteConfig(ctx)
	if err != nil {
		return nil, err
	}
	public := make(map[string]string, len(core.PublicSiteConfigKeys))
	for _, key := range core.PublicSiteConfigKeys {
		if value, ok := site[key]; ok {
			public[key] = value
		}
	}
	return public, nil
}

// SetSiteConfig stores one known setting.
func (c *Catalog) SetSiteConfig(ctx context.Context, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	known := false
	for _, candidate := range core.PublicSiteConfigKeys {
		if candidate == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	value = strings.TrimSpace(value)
	if key == core.SiteConfigGlobalDiscount {
		percent, err := strconv.Atoi(value)
		if err != nil || percent < 0 || percent > 100 {
			return fmt.Errorf("%w: global_discount must be a whole number from 0 to 100", ErrInvalidSetting)
		}
		value = strconv.Itoa(percent)
	}
	return c.Store.SetSiteConfig(ctx, key, value)
}

// UpdateProduct applies a partial edit after range checks.
func (c *Catalog) UpdateProduct(ctx context.Context, id string, update core.ProductUpdate) (*core.Product, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidProduct)
	}
	if update.PriceCents != nil && *update.PriceCents < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	if update.DiscountPercent != nil && (*update.DiscountPercent < 0 || *update.DiscountPercent > 100) {
		return nil, fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidProduct)
	}

	product, err := c.Store.UpdateProduct(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// SetProductImage stores an image and its thumbnail through the upload chain
// and points the product at them. Warnings describe inline fallbacks.
func (c *Catalog) SetProductImage(ctx context.Context, id string, image upload.Payload) (*core.Product, []string, error) {
	if _, err := c.Store.GetProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, err
	}
	if c.Images == nil {
		return nil, nil, errors.New("image uploads are not configured")
	}

	var warnings []string
	result, err := c.Images.Store(ctx, PurposeProductImage, image)
	if err != nil {
		return nil, nil, err
	}
	if result.Inline() {
		warnings = append(warnings, "Product image could not be uploaded to storage and was saved inline.")
	}

	imageURL := result.URL
	thumbURL := ""
	if thumb, err := upload.Thumbnail(image.Data, c.ThumbnailSize); err != nil {
		c.warn("Thumbnail generation failed", zap.String("product_id", id), zap.Error(err))
	} else if thumbResult, err := c.Images.Store(ctx, PurposeProductImage+"/thumbs", thumb); err != nil {
		c.warn("Thumbnail upload failed", zap.String("product_id", id), zap.Error(err))
	} else {
		thumbURL = thumbResult.URL
	}

	product, err := c.Store.UpdateProduct(ctx, id, core.ProductUpdate{
		ImageURL:     &imageURL,
		ThumbnailURL: &thumbURL,
	})
	if err != nil {
		return nil, warnings, err
	}
	return product, warnings, nil
}

func (c *Catalog) warn(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}
