package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("radius out of range"), http.StatusBadRequest},
		{NewNotFoundError("missing"), http.StatusNotFound},
		{NewUnauthorizedError("admin only"), http.StatusUnauthorized},
		{NewDatasetUnavailableError("no table", nil), http.StatusServiceUnavailable},
		{NewProviderTransientError("timeout", nil), http.StatusBadGateway},
		{NewInvariantViolationError("Desconhecido"), http.StatusInternalServerError},
		{NewConfigMissingError("SNAPSHOT"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), string(tt.err.Type))
	}
}

func TestIsType_Wrapped(t *testing.T) {
	base := NewDatasetUnavailableError("canonical table missing", fmt.Errorf("stat: no such file"))
	wrapped := fmt.Errorf("load: %w", base)

	assert.True(t, IsType(wrapped, ErrorTypeDatasetUnavailable))
	assert.False(t, IsType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeInternal))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "canonical table missing", appErr.Message)
	assert.Contains(t, base.Error(), "no such file")
}
