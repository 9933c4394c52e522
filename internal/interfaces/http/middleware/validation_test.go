package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopledger/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type amountRequest struct {
	Amount   decimal.Decimal  `json:"amount" binding:"decimal_gt0"`
	Fee      *decimal.Decimal `json:"fee" binding:"omitempty,decimal_gte0"`
	Currency string           `json:"currency" binding:"omitempty,currency"`
}

func newTestValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

func TestDecimalValidations(t *testing.T) {
	v := newTestValidator()
	v.SetTagName("binding")
	neg := decimal.NewFromInt(-1)
	zero := decimal.Zero

	tests := []struct {
		name  string
		req   amountRequest
		valid bool
	}{
		{"positive", amountRequest{Amount: decimal.NewFromInt(10)}, true},
		{"zero amount", amountRequest{Amount: decimal.Zero}, false},
		{"negative amount", amountRequest{Amount: neg}, false},
		{"zero fee", amountRequest{Amount: decimal.NewFromInt(1), Fee: &zero}, true},
		{"negative fee", amountRequest{Amount: decimal.NewFromInt(1), Fee: &neg}, false},
		{"currency", amountRequest{Amount: decimal.NewFromInt(1), Currency: "usd"}, true},
		{"bad currency", amountRequest{Amount: decimal.NewFromInt(1), Currency: "US1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	v := newTestValidator()
	v.SetTagName("binding")

	err := v.Struct(amountRequest{Currency: "toolong"})
	require.Error(t, err)

	resp := FormatValidationErrors(err, "req-1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)

	byField := map[string]string{}
	for _, d := range resp.Error.Details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "Must be a positive amount", byField["amount"])
	assert.Equal(t, "Invalid currency code", byField["currency"])
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, rec).Code)
	})

	t.Run("invalid field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount":"0"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		info := decodeError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", info.Code)
		require.Len(t, info.Details, 1)
		assert.Equal(t, "amount", info.Details[0].Field)
	})

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount":"12.50"}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
