package output

import (
	"encoding/json"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
)

// JSONFormatter renders listings as JSON arrays.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatOrders(orders []core.Order) (string, error) {
	if orders == nil {
		orders = []core.Order{}
	}
	return f.encode(orders)
}

func (f *JSONFormatter) FormatProducts(products []engine.PricedProduct) (string, error) {
	if products == nil {
		products = []engine.PricedProduct{}
	}
	return f.encode(products)
}

func (f *JSONFormatter) FormatRateLimits(entries []core.RateLimitEntry) (string, error) {
	if entries == nil {
		entries = []core.RateLimitEntry{}
	}
	return f.encode(entries)
}

func (f *JSONFormatter) encode(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
