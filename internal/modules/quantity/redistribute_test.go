package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

func sum(qs []int) int {
	n := 0
	for _, q := range qs {
		n += q
	}
	return n
}

func TestRedistribute(t *testing.T) {
	cases := []struct {
		name     string
		in       []int
		total    int
		expected []int
	}{
		{"scale down", []int{6, 4}, 7, []int{4, 3}},
		{"scale up", []int{1, 1}, 4, []int{2, 2}},
		{"half rounds up", []int{1, 1}, 1, []int{1, 1}},
		{"to zero", []int{3, 2}, 0, []int{0, 0}},
		{"from zero", []int{0, 0}, 5, []int{5, 0}},
		{"single", []int{4}, 9, []int{9}},
		{"empty", nil, 3, []int{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Redistribute(c.in, c.total)
			require.NoError(t, err)
			assert.Equal(t, c.expected, got)
		})
	}
}

func TestRedistributeResidualWithinOnePerPart(t *testing.T) {
	in := []int{3, 3, 3}
	for total := 0; total <= 20; total++ {
		got, err := Redistribute(in, total)
		require.NoError(t, err)
		diff := sum(got) - total
		assert.LessOrEqual(t, diff, len(in), "total %d -> %v", total, got)
		assert.GreaterOrEqual(t, diff, -len(in), "total %d -> %v", total, got)
		for _, q := range got {
			assert.GreaterOrEqual(t, q, 0)
		}
	}
}

func TestRedistributeRejectsNegative(t *testing.T) {
	_, err := Redistribute([]int{6, 4}, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = Redistribute([]int{-1, 4}, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestRedistributeBounds(t *testing.T) {
	_, err := Redistribute([]int{3}, 1<<62)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = Redistribute([]int{3}, domain.MaxQuantity+1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	got, err := Redistribute([]int{3}, domain.MaxQuantity)
	require.NoError(t, err)
	assert.Equal(t, []int{domain.MaxQuantity}, got)

	got, err = Redistribute([]int{domain.MaxQuantity, domain.MaxQuantity}, domain.MaxQuantity)
	require.NoError(t, err)
	assert.Equal(t, []int{1 << 30, 1 << 30}, got)
	for _, q := range got {
		assert.GreaterOrEqual(t, q, 0)
		assert.LessOrEqual(t, q, domain.MaxQuantity)
	}
}
