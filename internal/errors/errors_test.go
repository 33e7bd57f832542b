package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeValidationFailed:     http.StatusBadRequest,
		CodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
		CodeUnsupportedMediaType: http.StatusUnsupportedMediaType,
		CodeRateLimited:          http.StatusTooManyRequests,
		CodeDatabase:             http.StatusInternalServerError,
		CodeServiceUnavailable:   http.StatusServiceUnavailable,
		"SOMETHING_NEW":          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithEnvelopeRateLimited(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	rec := httptest.NewRecorder()

	envelope := WrapRateLimited(context.Background(), stderrors.New("blocked"), "too many attempts")
	RespondWithEnvelope(rec, req, envelope)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeRateLimited, body.Error.Code)
	assert.Equal(t, "too many attempts", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Nil(t, body.Error.Details, "wrapped errors stay out of responses")
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	envelope := EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, envelope.Code)
	assert.Equal(t, "boom", envelope.Context["wrapped_error"])
}
