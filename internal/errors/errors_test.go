package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/vytor/ceplayer/internal/errors"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"gated", fmt.Errorf("next: %w", apperrors.ErrGated), apperrors.ErrCodeConflict, http.StatusConflict},
		{"session open", apperrors.ErrSessionOpen, apperrors.ErrCodeConflict, http.StatusConflict},
		{"hour incomplete", apperrors.ErrHourIncomplete, apperrors.ErrCodeConflict, http.StatusConflict},
		{"dev mode", apperrors.ErrDevModeUnavailable, apperrors.ErrCodeBadRequest, http.StatusForbidden},
		{"not found", fmt.Errorf("learner x: %w", apperrors.ErrNotFound), apperrors.ErrCodeNotFound, http.StatusNotFound},
		{"unknown", stderrors.New("disk full"), apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := apperrors.FromDomain(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

func TestFromDomain_PassesAppErrorThrough(t *testing.T) {
	orig := apperrors.NewValidationError("hour", "must be between 1 and 4")
	wrapped := fmt.Errorf("handler: %w", orig)
	assert.Same(t, orig, apperrors.FromDomain(wrapped))
	assert.Nil(t, apperrors.FromDomain(nil))
}

func TestAppError_Message(t *testing.T) {
	err := apperrors.NewNotFoundError("learner", "abc")
	assert.Equal(t, "NOT_FOUND: learner not found: abc (not found)", err.Error())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
