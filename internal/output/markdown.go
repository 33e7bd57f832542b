package output

import (
	"fmt"
	"strings"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
)

// MarkdownFormatter renders listings as Markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatOrders(orders []core.Order) (string, error) {
	return renderMarkdown("Orders", orderColumns(orders), len(orders)), nil
}

func (f *MarkdownFormatter) FormatProducts(products []engine.PricedProduct) (string, error) {
	return renderMarkdown("Products", productColumns(products), len(products)), nil
}

func (f *MarkdownFormatter) FormatRateLimits(entries []core.RateLimitEntry) (string, error) {
	return renderMarkdown("Rate limits", rateLimitColumns(entries), len(entries)), nil
}

func renderMarkdown(title string, columns []column, rows int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))

	headers := make([]string, len(columns))
	rules := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = escapeMarkdownCell(c.header)
		rules[i] = strings.Repeat("-", len(c.header))
	}
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sb.WriteString("|" + strings.Join(rules, "|") + "|\n")

	for r := 0; r < rows; r++ {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = escapeMarkdownCell(c.cell(r))
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	if rows == 0 {
		sb.WriteString("\n_No rows._\n")
	}
	return sb.String()
}
