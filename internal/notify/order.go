package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rankshop/rankshop/internal/core"
)

const (
	colorPending   = 0xF1C40F
	colorApproved  = 0x3498DB
	colorCompleted = 0x2ECC71
	colorRejected  = 0xE74C3C
)

// OrderDetails is what an order announcement shows.
type OrderDetails struct {
	Order      core.Order
	Currency   string
	ServerName string
	// Color overrides the status colour with the product's, e.g. "#ff8800".
	Color string
	// Warnings are appended as an extra field.
	Warnings []string
}

// OrderMessage builds the announcement for a new or updated order.
func OrderMessage(d OrderDetails) Message {
	order := d.Order
	currency := strings.TrimSpace(d.Currency)
	if currency == "" {
		currency = "USD"
	}

	price := fmt.Sprintf("%s %s", core.FormatCents(order.PriceCents), currency)
	if order.DiscountPercent > 0 {
		price = fmt.Sprintf("%s %s (was %s, -%d%%)", core.FormatCents(order.PriceCents), currency,
			core.FormatCents(order.OriginalCents), order.DiscountPercent)
	}

	fields := []Field{
		{Name: "Player", Value: order.Username, Inline: true},
		{Name: "Platform", Value: platformLabel(order.Platform), Inline: true},
		{Name: "Rank", Value: order.RankName, Inline: true},
		{Name: "Price", Value: price, Inline: true},
		{Name: "Status", Value: string(order.Status), Inline: true},
		{Name: "Order ID", Value: order.ID},
	}

	embed := Embed{
		Title:       fmt.Sprintf("New order: %s", order.RankName),
		Description: fmt.Sprintf("**%s** ordered **%s**.", order.Username, order.RankName),
		Color:       embedColor(d.Color, order.Status),
		Fields:      fields,
	}
	if order.Status != core.OrderStatusPending {
		embed.Title = fmt.Sprintf("Order %s: %s", order.Status, order.RankName)
	}

	if strings.HasPrefix(order.PaymentProof, "http://") || strings.HasPrefix(order.PaymentProof, "https://") {
		embed.Image = &Image{URL: order.PaymentProof}
		embed.URL = order.PaymentProof
	} else if order.PaymentProof != "" {
		embed.Fields = append(embed.Fields, Field{Name: "Payment proof", Value: "Stored inline; open the admin panel to view it."})
	}
	if len(d.Warnings) > 0 {
		embed.Fields = append(embed.Fields, Field{Name: "Warnings", Value: truncate(strings.Join(d.Warnings, "\n"), MaxFieldValue)})
	}

	footer := "RankShop"
	if strings.TrimSpace(d.ServerName) != "" {
		footer = d.ServerName
	}
	embed.Footer = &Footer{Text: footer}

	ts := order.CreatedAt
	if order.Status != core.OrderStatusPending && !order.UpdatedAt.IsZero() {
		ts = order.UpdatedAt
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	embed.Timestamp = &ts

	return Message{Embeds: []Embed{embed}}
}

func platformLabel(p core.Platform) string {
	switch p {
	case core.PlatformJava:
		return "Java Edition"
	case core.PlatformBedrock:
		return "Bedrock Edition"
	default:
		return string(p)
	}
}

func embedColor(hex string, status core.OrderStatus) int {
	if value, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(hex), "#"), 16, 32); err == nil && hex != "" {
		return int(value)
	}
	switch status {
	case core.OrderStatusApproved:
		return colorApproved
	case core.OrderStatusCompleted:
		return colorCompleted
	case core.OrderStatusRejected:
		return colorRejected
	default:
		return colorPending
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
