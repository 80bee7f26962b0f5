package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Invalid("name", "this field is required"), http.StatusUnprocessableEntity},
		{"conflict", fmt.Errorf("delete: %w", apperr.NewConflict("courses", "1", nil)), http.StatusConflict},
		{"not found", fmt.Errorf("class 3: %w", apperr.ErrNotFound), http.StatusNotFound},
		{"store unavailable", apperr.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unauthorized", apperr.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.ErrForbidden, http.StatusForbidden},
		{"sync", apperr.Sync("create students", errors.New("boom")), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Status(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorWritesFieldsAndExtra(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop().Sugar(), apperr.Invalid("email", "email must be a valid email address"),
		map[string]any{"draft": map[string]any{"email": "nope"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error   string `json:"error"`
		Details struct {
			Fields map[string]string `json:"fields"`
			Draft  map[string]any    `json:"draft"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "email must be a valid email address", body.Details.Fields["email"])
	assert.Equal(t, "nope", body.Details.Draft["email"])
}

func TestErrorConflictMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, nil, apperr.NewConflict("courses", "1", nil), nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"`+apperr.ConflictMessage+`"}`, rec.Body.String())
}
