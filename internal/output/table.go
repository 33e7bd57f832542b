package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
)

// TableFormatter renders listings as ASCII tables.
type TableFormatter struct{}

func (f *TableFormatter) FormatOrders(orders []core.Order) (string, error) {
	return renderTable(orderColumns(orders), len(orders), fmt.Sprintf("%d orders", len(orders))), nil
}

func (f *TableFormatter) FormatProducts(products []engine.PricedProduct) (string, error) {
	return renderTable(productColumns(products), len(products), fmt.Sprintf("%d products", len(products))), nil
}

func (f *TableFormatter) FormatRateLimits(entries []core.RateLimitEntry) (string, error) {
	blocked := 0
	for _, e := range entries {
		if e.Blocked {
			blocked++
		}
	}
	return renderTable(rateLimitColumns(entries), len(entries), fmt.Sprintf("%d entries, %d blocked", len(entries), blocked)), nil
}

func renderTable(columns []column, rows int, summary string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	t.AppendHeader(header)

	for r := 0; r < rows; r++ {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = c.cell(r)
		}
		t.AppendRow(row)
	}

	footer := make(table.Row, len(columns))
	footer[0] = summary
	t.AppendFooter(footer)
	return t.Render()
}
