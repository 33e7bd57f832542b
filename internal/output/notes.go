package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/upload"
)

const timeLayout = "2006-01-02 15:04"

type column struct {
	header string
	cell   func(i int) string
}

func orderColumns(orders []core.Order) []column {
	return []column{
		{"ID", func(i int) string { return shortID(orders[i].ID) }},
		{"Player", func(i int) string { return orders[i].Username }},
		{"Platform", func(i int) string { return string(orders[i].Platform) }},
		{"Rank", func(i int) string { return orders[i].RankName }},
		{"Price", func(i int) string { return priceLabel(orders[i].PriceCents, orders[i].DiscountPercent) }},
		{"Status", func(i int) string { return string(orders[i].Status) }},
		{"Proof", func(i int) string { return proofLabel(orders[i].PaymentProof) }},
		{"Created", func(i int) string { return formatTime(orders[i].CreatedAt) }},
	}
}

func productColumns(products []engine.PricedProduct) []column {
	return []column{
		{"ID", func(i int) string { return products[i].ID }},
		{"Name", func(i int) string { return products[i].Name }},
		{"Price", func(i int) string { return core.FormatCents(products[i].PriceCents) }},
		{"Discount", func(i int) string { return discountLabel(products[i]) }},
		{"Effective", func(i int) string { return products[i].EffectivePrice }},
		{"Active", func(i int) string { return yesNo(products[i].Active) }},
	}
}

func rateLimitColumns(entries []core.RateLimitEntry) []column {
	return []column{
		{"Identifier", func(i int) string { return entries[i].Identifier }},
		{"Attempts", func(i int) string { return fmt.Sprintf("%d", entries[i].Attempts) }},
		{"Window start", func(i int) string { return formatTime(entries[i].WindowStart) }},
		{"Last seen", func(i int) string { return formatTime(entries[i].LastSeen) }},
		{"Blocked", func(i int) string { return blockLabel(entries[i]) }},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func priceLabel(cents int64, discount int) string {
	if discount > 0 {
		return fmt.Sprintf("%s (-%d%%)", core.FormatCents(cents), discount)
	}
	return core.FormatCents(cents)
}

func discountLabel(p engine.PricedProduct) string {
	if p.EffectiveDiscount == 0 {
		return "-"
	}
	if p.EffectiveDiscount != p.DiscountPercent {
		return fmt.Sprintf("%d%% (global)", p.EffectiveDiscount)
	}
	return fmt.Sprintf("%d%%", p.EffectiveDiscount)
}

// proofLabel keeps inline data URLs from flooding the terminal.
func proofLabel(proof string) string {
	if upload.IsDataURL(proof) {
		return fmt.Sprintf("inline (%d chars)", len(proof))
	}
	return proof
}

func blockLabel(e core.RateLimitEntry) string {
	if !e.Blocked {
		return "no"
	}
	if e.BlockedUntil.IsZero() {
		return "yes"
	}
	return "until " + formatTime(e.BlockedUntil)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(value, "\n", " ")
}
