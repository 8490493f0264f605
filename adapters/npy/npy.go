// Package npy reads and writes numpy .npy arrays.
package npy

import (
	"fmt"

	"github.com/kshedden/gonpy"
)

// ReadFloat32 reads a float32 or float64 array and returns its values as
// float32 together with the array shape.
func ReadFloat32(path string) ([]float32, []int, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	switch r.Dtype {
	case "f4":
		data, err := r.GetFloat32()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, r.Shape, nil
	case "f8":
		data, err := r.GetFloat64()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out, r.Shape, nil
	default:
		return nil, nil, fmt.Errorf("%s: unsupported dtype %q", path, r.Dtype)
	}
}

// WriteFloat32 writes data as a float32 array of the given shape.
func WriteFloat32(path string, shape []int, data []float32) error {
	if n := product(shape); n != len(data) {
		return fmt.Errorf("%s: shape %v holds %d values, got %d", path, shape, n, len(data))
	}
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w.Shape = shape
	w.Version = 2
	if err := w.WriteFloat32(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteFloat64 writes data as a float64 array of the given shape.
func WriteFloat64(path string, shape []int, data []float64) error {
	if n := product(shape); n != len(data) {
		return fmt.Errorf("%s: shape %v holds %d values, got %d", path, shape, n, len(data))
	}
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w.Shape = shape
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
