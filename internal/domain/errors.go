package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals an empty or missing inbound query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrEmbedding signals a failure of the local embedding backend.
	ErrEmbedding = errors.New("embedding failed")
	// ErrDatasetLoad signals a dataset that is missing, unparseable or empty.
	ErrDatasetLoad = errors.New("dataset load failed")
	// ErrGeneration signals a generation service failure.
	ErrGeneration = errors.New("generation failed")
	// ErrPersistence signals a conversation context read or write failure.
	ErrPersistence = errors.New("context persistence failed")
	// ErrInvalidHandle signals a session handle that cannot address a transcript.
	ErrInvalidHandle = errors.New("invalid session handle")
)

// DatasetLoadError wraps ErrDatasetLoad with the dataset path and the underlying cause.
type DatasetLoadError struct {
	Path string
	Err  error
}

func (e *DatasetLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDatasetLoad.Error(), e.Path, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DatasetLoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDatasetLoad) hold for every DatasetLoadError.
func (e *DatasetLoadError) Is(target error) bool { return target == ErrDatasetLoad }

// NewDatasetLoadError creates a dataset load error for path.
func NewDatasetLoadError(path string, err error) error {
	return &DatasetLoadError{Path: path, Err: err}
}
