package embedding

import (
	"fmt"
	"math"

	"mindkb/internal/domain"
)

// Validate rejects vectors that cannot be indexed: wrong length, non-finite
// components, or all zeros (which have no direction to normalize to).
func Validate(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: length %d, want %d", domain.ErrInvalidVector, len(vec), dim)
	}
	var sum float64
	for i, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", domain.ErrInvalidVector, i, x)
		}
		sum += f * f
	}
	if sum == 0 {
		return fmt.Errorf("%w: zero vector", domain.ErrInvalidVector)
	}
	return nil
}
