package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Matrix file, every key is optional and falls back to the default axis:
//
//	columns: [1, 2]
//	rows: [5, 1000]
//	cardinalities: [2, 10]
//
// Values must be picked from the default axes, the file narrows the matrix
// and never widens it.

func LoadMatrix(path string) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("read matrix: %w", err)
	}
	return ParseMatrix(data)
}

func ParseMatrix(data []byte) (Matrix, error) {
	m := Matrix{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Matrix{}, fmt.Errorf("%w: %s", ErrInvalidMatrix, err)
	}

	def := DefaultMatrix()
	if m.Columns == nil {
		m.Columns = def.Columns
	}
	if m.Rows == nil {
		m.Rows = def.Rows
	}
	if m.Cardinalities == nil {
		m.Cardinalities = def.Cardinalities
	}

	if err := m.Validate(); err != nil {
		return Matrix{}, err
	}
	if err := subsetOf("columns", m.Columns, def.Columns); err != nil {
		return Matrix{}, err
	}
	if err := subsetOf("rows", m.Rows, def.Rows); err != nil {
		return Matrix{}, err
	}
	if err := subsetOf("cardinalities", m.Cardinalities, def.Cardinalities); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

func subsetOf(
	name string,
	axis []int,
	allowed []int,
) error {
	set := make(map[int]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	for _, v := range axis {
		if !set[v] {
			return invalid("%s value %d is not part of %v", name, v, allowed)
		}
	}
	return nil
}
