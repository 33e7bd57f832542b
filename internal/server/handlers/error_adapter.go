package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/rankshop/rankshop/internal/auth"
	"github.com/rankshop/rankshop/internal/core/engine"
	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/upload"
)

var defaultHTTPErrorResponder = func(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

var httpErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder allows the server package to inject the centralized error handler.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

// respondWithDomainError maps service errors to envelopes.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	respondWithError(w, r, domainEnvelope(r.Context(), err))
}

func domainEnvelope(ctx context.Context, err error) *errors.ErrorEnvelope {
	message := userMessage(err)

	var submitErr *engine.SubmitError
	var maxBytesErr *http.MaxBytesError
	var deliveryErr *notify.DeliveryError

	switch {
	case stderrors.Is(err, engine.ErrRateLimited):
		return apperrors.WrapRateLimited(ctx, err, "too many attempts, please wait a few minutes before ordering again")
	case stderrors.Is(err, upload.ErrTooLarge), stderrors.As(err, &maxBytesErr):
		return apperrors.WrapPayloadTooLarge(ctx, err, "file is too large")
	case stderrors.Is(err, upload.ErrUnsupportedType), stderrors.Is(err, upload.ErrTypeMismatch):
		return apperrors.WrapUnsupportedMediaType(ctx, err, message)
	case stderrors.Is(err, upload.ErrEmpty), stderrors.Is(err, upload.ErrMalformed),
		stderrors.Is(err, engine.ErrInvalidUsername), stderrors.Is(err, engine.ErrInvalidPlatform),
		stderrors.Is(err, engine.ErrInvalidProduct), stderrors.Is(err, engine.ErrInvalidSetting),
		stderrors.Is(err, engine.ErrUnknownSetting), stderrors.Is(err, auth.ErrWeakPassword),
		stderrors.Is(err, auth.ErrInvalidUsername), stderrors.Is(err, notify.ErrInvalidMessage):
		return apperrors.WrapValidationError(ctx, err, message)
	case stderrors.Is(err, engine.ErrProductNotFound), stderrors.Is(err, engine.ErrOrderNotFound):
		return apperrors.WrapNotFound(ctx, err, message)
	case stderrors.Is(err, engine.ErrInvalidStatus):
		return apperrors.WrapConflict(ctx, err, message)
	case stderrors.Is(err, auth.ErrInvalidCredentials), stderrors.Is(err, auth.ErrUnauthorized):
		return apperrors.WrapUnauthorized(ctx, err, message)
	case stderrors.Is(err, notify.ErrNotConfigured):
		return apperrors.NewServiceUnavailableError("webhook is not configured")
	case stderrors.As(err, &deliveryErr):
		return apperrors.WrapExternalService(ctx, err, "webhook endpoint rejected the message")
	case stderrors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapTimeout(ctx, err, "request timed out")
	case stderrors.As(err, &submitErr) && submitErr.Stage == engine.StagePersisting:
		return apperrors.WrapDatabaseError(ctx, err, "order could not be saved, please try again")
	default:
		return apperrors.WrapInternal(ctx, err, "unexpected error")
	}
}

// userMessage strips the submission stage prefix from err.
func userMessage(err error) string {
	var submitErr *engine.SubmitError
	if stderrors.As(err, &submitErr) && submitErr.Err != nil {
		return submitErr.Err.Error()
	}
	return err.Error()
}
