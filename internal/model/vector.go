package model

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
)

// NullableVector stores an optional embedding. Tools start without one
// and gain it once the embedding backend has produced a vector, so the
// column must round-trip NULL, which pgvector.Vector alone does not.
type NullableVector struct {
	Vec   pgvector.Vector
	Valid bool
}

// NewNullableVector wraps a raw float slice as a present vector.
func NewNullableVector(vec []float32) NullableVector {
	return NullableVector{Vec: pgvector.NewVector(vec), Valid: true}
}

func (v *NullableVector) Scan(src any) error {
	if src == nil {
		v.Vec, v.Valid = pgvector.Vector{}, false
		return nil
	}
	if err := v.Vec.Scan(src); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

func (v NullableVector) Value() (driver.Value, error) {
	if !v.Valid {
		return nil, nil
	}
	return v.Vec.Value()
}

// Slice returns the raw floats, or nil when no embedding is stored.
func (v NullableVector) Slice() []float32 {
	if !v.Valid {
		return nil
	}
	return v.Vec.Slice()
}
