package storage

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrDuplicateID       = errors.New("duplicate chunk id")
	ErrInvalidLimit      = errors.New("search limit must be positive")
)
