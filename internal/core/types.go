package core

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the Minecraft edition an order is for.
type Platform string

const (
	PlatformJava    Platform = "java"
	PlatformBedrock Platform = "bedrock"
)

// ParsePlatform normalizes a platform string.
func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(value))) {
	case PlatformJava:
		return PlatformJava, nil
	case PlatformBedrock:
		return PlatformBedrock, nil
	default:
		return "", fmt.Errorf("unsupported platform: %q", value)
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// ParseOrderStatus normalizes an order status string.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case OrderStatusPending, OrderStatusApproved, OrderStatusCompleted, OrderStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unsupported order status: %q", value)
	}
}

// Product is a purchasable rank.
type Product struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	PriceCents      int64     `json:"price_cents" yaml:"price_cents"`
	DiscountPercent int       `json:"discount_percent" yaml:"discount_percent"`
	ImageURL        string    `json:"image_url,omitempty" yaml:"image_url"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty" yaml:"thumbnail_url"`
	Color           string    `json:"color,omitempty" yaml:"color"`
	Perks           []string  `json:"perks,omitempty" yaml:"perks"`
	SortOrder       int       `json:"sort_order" yaml:"sort_order"`
	Active          bool      `json:"active" yaml:"active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// ProductUpdate carries a partial product edit. Nil fields are left unchanged.
type ProductUpdate struct {
	Name            *string
	Description     *string
	PriceCents      *int64
	DiscountPercent *int
	ImageURL        *string
	ThumbnailURL    *string
	Active          *bool
}

// Order is a customer purchase awaiting review.
type Order struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Platform        Platform    `json:"platform"`
	ProductID       string      `json:"product_id"`
	RankName        string      `json:"rank_name"`
	OriginalCents   int64       `json:"original_price_cents"`
	DiscountPercent int         `json:"discount_percent"`
	PriceCents      int64       `json:"price_cents"`
	Status          OrderStatus `json:"status"`
	PaymentProof    string      `json:"payment_proof"`
	ClientHash      string      `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderQuery filters order listings.
type OrderQuery struct {
	Status OrderStatus
	Limit  int
}

// SiteConfig keys with meaning to the service.
const (
	SiteConfigServerName          = "server_name"
	SiteConfigServerIP            = "server_ip"
	SiteConfigDiscordInvite       = "discord_invite"
	SiteConfigPaymentInstructions = "payment_instructions"
	SiteConfigGlobalDiscount      = "global_discount"
	SiteConfigAnnouncement        = "announcement"
	SiteConfigCurrency            = "currency"
)

// PublicSiteConfigKeys lists the keys exposed without authentication.
var PublicSiteConfigKeys = []string{
	SiteConfigServerName,
	SiteConfigServerIP,
	SiteConfigDiscordInvite,
	SiteConfigPaymentInstructions,
	SiteConfigGlobalDiscount,
	SiteConfigAnnouncement,
	SiteConfigCurrency,
}

// Admin is an account allowed into the admin panel.
type Admin struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an authenticated admin session.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FormatCents renders an amount in cents as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
