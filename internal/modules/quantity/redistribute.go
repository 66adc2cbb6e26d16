package quantity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// Redistribute scales quantities so they add up to roughly newTotal, keeping
// their proportions. Each part is rounded half up on its own, so the sum may
// miss newTotal by one per part; callers accept that residual. When every
// current quantity is zero the whole new total goes to the first part.
func Redistribute(quantities []int, newTotal int) ([]int, error) {
	if err := domain.CheckQuantity(newTotal); err != nil {
		return nil, fmt.Errorf("aggregate total: %w", err)
	}
	out := make([]int, len(quantities))
	if len(quantities) == 0 {
		return out, nil
	}

	oldTotal := decimal.Zero
	for _, q := range quantities {
		if err := domain.CheckQuantity(q); err != nil {
			return nil, fmt.Errorf("current quantity: %w", err)
		}
		oldTotal = oldTotal.Add(decimal.NewFromInt(int64(q)))
	}
	if oldTotal.IsZero() {
		out[0] = newTotal
		return out, nil
	}

	// q * newTotal / oldTotal never exceeds newTotal, so every part stays in range.
	target := decimal.NewFromInt(int64(newTotal))
	for i, q := range quantities {
		share := decimal.NewFromInt(int64(q)).Mul(target).Div(oldTotal).Round(0)
		out[i] = int(share.IntPart())
	}
	return out, nil
}
