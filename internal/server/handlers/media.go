package handlers

import (
	"errors"
	"net/http"
	"os"
	"path"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rankshop/rankshop/internal/errors"
)

// ServeMedia serves objects written by the local storage driver. Objects are
// write-once, so responses are cached aggressively.
func (a *API) ServeMedia(w http.ResponseWriter, r *http.Request) {
	if a.Media == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("media is not served by this instance"))
		return
	}

	bucket := chi.URLParam(r, "bucket")
	object := chi.URLParam(r, "*")
	filePath, err := a.Media.Path(bucket, object)
	if err != nil {
		respondWithError(w, r, apperrors.WrapNotFound(r.Context(), err, "media not found"))
		return
	}

	// #nosec G304 -- filePath is resolved inside the storage root by Local.Path
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondWithError(w, r, apperrors.NewNotFoundError("media not found"))
			return
		}
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "media could not be read"))
		return
	}
	defer f.Close() // nolint:errcheck // read-only file

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondWithError(w, r, apperrors.NewNotFoundError("media not found"))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(object), info.ModTime(), f)
}
