package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/rankshop/rankshop/internal/auth"
	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/storage"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 256 << 10

// OrderReader lists stored orders for the admin API.
type OrderReader interface {
	ListOrders(ctx context.Context, q core.OrderQuery) ([]core.Order, error)
	GetOrder(ctx context.Context, id string) (*core.Order, error)
}

// API holds the storefront handlers and their collaborators.
type API struct {
	Orders       *engine.Orchestrator
	Catalog      *engine.Catalog
	OrderLog     OrderReader
	Auth         *auth.Service
	Webhook      *notify.Client
	Images       *ImageProxy
	Media        *storage.Local
	MaxUpload    int64
	CookieName   string
	CookieSecure bool
	Logger       *logging.Logger
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return apperrors.WrapInvalidInput(r.Context(), err, "request body is empty")
		}
		return apperrors.WrapInvalidInput(r.Context(), err, fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	return nil
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
