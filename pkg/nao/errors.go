package nao

import "github.com/hfzizz/nao-llm/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery  = domain.ErrEmptyQuery
	ErrEmbedding   = domain.ErrEmbedding
	ErrGeneration  = domain.ErrGeneration
	ErrPersistence = domain.ErrPersistence
	ErrDatasetLoad = domain.ErrDatasetLoad
)
