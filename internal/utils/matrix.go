// Copyright 2025 bitjungle - Rune Mathisen. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.
// The author respectfully requests that it not be used for
// military, warfare, or surveillance applications.

// Package utils provides small numeric and string helpers shared by the
// emulator, store, and sampler packages.
package utils

import (
	"gonum.org/v1/gonum/mat"
)

// RowsToDense packs a row-major design or regression-basis matrix (as
// produced by internal/design and internal/kernel) into a gonum Dense
// matrix, one row at a time.
func RowsToDense(m [][]float64) *mat.Dense {
	if len(m) == 0 || len(m[0]) == 0 {
		return mat.NewDense(0, 0, nil)
	}

	d := mat.NewDense(len(m), len(m[0]), nil)
	for i, row := range m {
		d.SetRow(i, row)
	}
	return d
}
