package repository

import (
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// errCentroidScanInvalidType is returned when Scan receives a type other than []byte.
var errCentroidScanInvalidType = errors.New("centroid: expected []byte")

// nullableCentroid scans a vector column that may be NULL without panicking (pgvector.Vector.Scan panics on empty/NULL).
type nullableCentroid []float32

func (n *nullableCentroid) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errCentroidScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("centroid decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// centroidParam returns the value bound for a centroid column; empty centroids are stored as NULL.
func centroidParam(centroid []float32) any {
	if len(centroid) == 0 {
		return nil
	}

	return pgvector.NewVector(centroid)
}
