package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/upload"
)

// multipartOverhead allows for form fields around the proof file.
const multipartOverhead = 1 << 20

// CreateOrder accepts a multipart order with a payment proof file.
func (a *API) CreateOrder(w http.ResponseWriter, r *http.Request) {
	maxUpload := a.MaxUpload
	if maxUpload <= 0 {
		maxUpload = upload.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(maxUpload + multipartOverhead); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	proof, err := readFormFile(r, "proof", maxUpload)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	signature := trimmed(r.FormValue("client_signature"))
	if signature == "" {
		signature = r.UserAgent()
	}

	receipt, err := a.Orders.Submit(r.Context(), engine.Submission{
		Username:        r.FormValue("username"),
		Platform:        r.FormValue("platform"),
		ProductID:       r.FormValue("product_id"),
		ClientSignature: signature,
		Proof:           proof,
	})
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// ListOrders returns recent orders, optionally filtered by status.
func (a *API) ListOrders(w http.ResponseWriter, r *http.Request) {
	query := core.OrderQuery{}
	if status := trimmed(r.URL.Query().Get("status")); status != "" {
		parsed, err := core.ParseOrderStatus(status)
		if err != nil {
			respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, err.Error()))
			return
		}
		query.Status = parsed
	}
	if limit := trimmed(r.URL.Query().Get("limit")); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 || n > 500 {
			respondWithError(w, r, apperrors.NewValidationError("limit must be between 1 and 500"))
			return
		}
		query.Limit = n
	}

	orders, err := a.OrderLog.ListOrders(r.Context(), query)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "orders could not be loaded"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// UpdateOrderStatus moves an order through its lifecycle.
func (a *API) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	status, err := core.ParseOrderStatus(body.Status)
	if err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, err.Error()))
		return
	}

	order, err := a.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// readFormFile reads one uploaded file, keeping at most limit+1 bytes so an
// oversized file is still reported as too large by the validator.
func readFormFile(r *http.Request, field string, limit int64) (upload.Payload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return upload.Payload{}, upload.ErrEmpty
		}
		return upload.Payload{}, err
	}
	defer file.Close() // nolint:errcheck // read-only multipart part

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return upload.Payload{}, err
	}
	return upload.Payload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}
