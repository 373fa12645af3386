package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrConfigNotFound, http.StatusNotFound, "CONFIG_NOT_FOUND"},
		{ErrInvalidConfig, http.StatusBadRequest, "INVALID_CONFIG"},
		{ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{ErrCheckInProgress, http.StatusConflict, "CHECK_IN_PROGRESS"},
		{fmt.Errorf("plain"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, ToHTTPStatus(tt.err))
			assert.Equal(t, tt.code, ToErrorResponse(tt.err).ErrorCode)
		})
	}
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	derived := ErrInvalidConfig.WithDetail("field", "competitors")

	assert.Equal(t, "competitors", derived.Details["field"])
	assert.NotContains(t, ErrInvalidConfig.Details, "field")
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("load config: %w", ErrStoreUnavailable.WithCause(cause))

	assert.True(t, IsStoreUnavailable(err))
	assert.False(t, IsConfigNotFound(err))
	assert.ErrorIs(t, err, cause)
}

func TestMessageDetailOverridesText(t *testing.T) {
	err := ErrInvalidConfig.WithDetail("message", "competitors must not be empty")
	assert.Equal(t, "INVALID_CONFIG: competitors must not be empty", err.Error())
	assert.True(t, err.IsFatal())
}
