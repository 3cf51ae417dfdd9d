package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
)

func TestClassHelpers(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name    string
		err     error
		class   error
		errdefs func(error) bool
	}{
		{"configuration", Configuration("unknown answer mode %q", "poetry"), ErrConfiguration, errdefs.IsInvalidArgument},
		{"backend", BackendUnavailable("ollama: %w", cause), ErrBackendUnavailable, errdefs.IsUnavailable},
		{"storage", StorageIntegrity("dimension %d != %d", 384, 768), ErrStorageIntegrity, errdefs.IsDataLoss},
		{"query", QueryProcessing("generate: %w", cause), ErrQueryProcessing, errdefs.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.class)
			assert.True(t, tt.errdefs(tt.err))
			assert.Equal(t, tt.class, Class(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := BackendUnavailable("groq: %w", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "backend unavailable")
	assert.Contains(t, err.Error(), "groq: boom")
}

func TestClassUnclassified(t *testing.T) {
	assert.Nil(t, Class(errors.New("plain")))
	assert.Nil(t, Class(nil))
	assert.Equal(t, ErrConfiguration, Class(fmt.Errorf("outer: %w", Configuration("x"))))
}
