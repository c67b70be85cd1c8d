package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/wander/internal/domain"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{domain.EUPSTREAM, http.StatusBadGateway},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func TestErrorResponse_JSON(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "not found error",
			err:            domain.ErrOrderNotFound.WithOp("orders.status_by_session"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   domain.ENOTFOUND,
		},
		{
			name:           "invalid",
			err:            domain.Invalid("checkout.start", "price must be positive"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.EINVALID,
		},
		{
			name:           "upstream",
			err:            domain.Upstream(errors.New("stripe down"), "checkout.start", "Payment provider is unavailable"),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   domain.EUPSTREAM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/session/cs_1", nil)
			rec := httptest.NewRecorder()

			ErrorResponse(rec, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorEnvelope
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.expectedCode, body.Error.Code)
		})
	}
}

func TestErrorResponse_HTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/checkout/confirmation", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.ErrOrderNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", strings.TrimSpace(rec.Body.String()))
}

func TestErrorResponse_InternalHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
	rec := httptest.NewRecorder()

	err := domain.Internal(errors.New("dial tcp 192.168.1.100:5432"), "orders.list", "failed to list orders")
	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "192.168.1.100")

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "An internal error occurred. Please try again later.", body.Error.Message)
}

func TestErrorResponse_ValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	rec := httptest.NewRecorder()

	err := &domain.ValidationError{Op: "checkout.start", Fields: map[string]string{
		"email":     "is required",
		"packageId": "is required",
	}}
	ValidationErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.EINVALID, body.Error.Code)
	assert.Equal(t, "is required", body.Error.Fields["email"])
	assert.Len(t, body.Error.Fields, 2)
}

func TestValidationErrorResponse_NonValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	rec := httptest.NewRecorder()

	ValidationErrorResponse(rec, req, domain.ErrOrderNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"email":"a@example.com"}`))
	require.NoError(t, DecodeJSON(req, "test", &dst))
	assert.Equal(t, "a@example.com", dst.Email)

	for _, body := range []string{`{`, `{"unknown":1}`, `{"email":"a"}{"email":"b"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		err := DecodeJSON(req, "test", &dst)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), body)
	}
}
