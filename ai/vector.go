// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector indicates an embedding that cannot be stored.
var ErrInvalidVector = errors.New("invalid embedding vector")

// Magnitude returns the Euclidean length of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// CheckVector reports whether v is usable as an embedding.
// Empty, zero-magnitude and non-finite vectors are rejected, as are vectors
// whose width differs from dims. A dims of zero skips the width check.
func CheckVector(v []float32, dims int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidVector)
	}
	if dims > 0 && len(v) != dims {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidVector, dims, len(v))
	}
	m := Magnitude(v)
	if m == 0 {
		return fmt.Errorf("%w: zero magnitude", ErrInvalidVector)
	}
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: non-finite values", ErrInvalidVector)
	}
	return nil
}
