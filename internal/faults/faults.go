// Package faults defines the failure classes surfaced by the askd engine.
//
// Every class wraps a containerd errdefs category so callers outside this
// module can classify failures with the errdefs helpers as well as with
// errors.Is against the sentinels below.
package faults

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	// ErrConfiguration marks a missing or invalid credential or an unsupported
	// mode value. It is always surfaced to the caller of a mode change.
	ErrConfiguration = fmt.Errorf("configuration error: %w", errdefs.ErrInvalidArgument)

	// ErrBackendUnavailable marks a connectivity failure to a language-model,
	// embedding, vector index, or search backend.
	ErrBackendUnavailable = fmt.Errorf("backend unavailable: %w", errdefs.ErrUnavailable)

	// ErrStorageIntegrity marks a durable store that no longer matches the
	// running configuration, such as an embedding dimension mismatch.
	ErrStorageIntegrity = fmt.Errorf("storage integrity: %w", errdefs.ErrDataLoss)

	// ErrQueryProcessing marks any other failure while answering a query.
	ErrQueryProcessing = fmt.Errorf("query processing failed: %w", errdefs.ErrInternal)
)

// Configuration returns an error classified as ErrConfiguration.
func Configuration(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// BackendUnavailable returns an error classified as ErrBackendUnavailable.
func BackendUnavailable(format string, args ...any) error {
	return wrap(ErrBackendUnavailable, format, args...)
}

// StorageIntegrity returns an error classified as ErrStorageIntegrity.
func StorageIntegrity(format string, args ...any) error {
	return wrap(ErrStorageIntegrity, format, args...)
}

// QueryProcessing returns an error classified as ErrQueryProcessing.
func QueryProcessing(format string, args ...any) error {
	return wrap(ErrQueryProcessing, format, args...)
}

// wrap keeps any error passed through %w in args reachable from the result.
func wrap(class error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{class}, args...)...)
}

// Class returns the sentinel that err is classified under, or nil when err
// belongs to none of them.
func Class(err error) error {
	for _, class := range []error{ErrConfiguration, ErrBackendUnavailable, ErrStorageIntegrity, ErrQueryProcessing} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}
