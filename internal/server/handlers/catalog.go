package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/upload"
)

// ListProducts returns active products with their effective prices.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.Products(r.Context(), true)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// ListAllProducts includes inactive products for the admin panel.
func (a *API) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.Products(r.Context(), false)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// PublicSiteConfig returns the settings shown on the storefront.
func (a *API) PublicSiteConfig(w http.ResponseWriter, r *http.Request) {
	site, err := a.Catalog.PublicSiteConfig(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

type productPatch struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	PriceCents      *int64   `json:"price_cents"`
	DiscountPercent *int     `json:"discount_percent"`
	Active          *bool    `json:"active"`
}

// UpdateProduct applies a partial product edit. Price may be given in
// currency units ("price") or cents ("price_cents").
func (a *API) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch productPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, r, err)
		return
	}

	update := core.ProductUpdate{
		Name:            patch.Name,
		Description:     patch.Description,
		PriceCents:      patch.PriceCents,
		DiscountPercent: patch.DiscountPercent,
		Active:          patch.Active,
	}
	if patch.Price != nil && patch.PriceCents == nil {
		cents := core.CentsFromFloat(*patch.Price)
		update.PriceCents = &cents
	}

	product, err := a.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// UploadProductImage replaces a product image from a multipart "image" field.
func (a *API) UploadProductImage(w http.ResponseWriter, r *http.Request) {
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

	image, err := readFormFile(r, "image", maxUpload)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	product, warnings, err := a.Catalog.SetProductImage(r.Context(), chi.URLParam(r, "id"), image)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product, "warnings": warnings})
}

// SetSiteConfig stores one site setting.
func (a *API) SetSiteConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := a.Catalog.SetSiteConfig(r.Context(), key, body.Value); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
