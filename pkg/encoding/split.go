package encoding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidSplit is returned for negative ratios or ratios summing past 1.
var ErrInvalidSplit = errors.New("encoding: invalid split ratios")

// Split cuts t sequentially into train, validation and test parts at
// floor(train*n) and floor((train+val)*n). Row order is preserved. The test
// ratio only takes part in validation; the test part is everything left.
func Split(t *Table, train, val, test float64) (*Table, *Table, *Table, error) {
	dTrain := decimal.NewFromFloat(train)
	dVal := decimal.NewFromFloat(val)
	dTest := decimal.NewFromFloat(test)
	if dTrain.IsNegative() || dVal.IsNegative() || dTest.IsNegative() {
		return nil, nil, nil, fmt.Errorf("%w: %v/%v/%v", ErrInvalidSplit, train, val, test)
	}
	if dTrain.Add(dVal).Add(dTest).GreaterThan(decimal.NewFromInt(1)) {
		return nil, nil, nil, fmt.Errorf("%w: %v+%v+%v > 1", ErrInvalidSplit, train, val, test)
	}

	n := decimal.NewFromInt(int64(t.Len()))
	cut1 := int(dTrain.Mul(n).IntPart())
	cut2 := int(dTrain.Add(dVal).Mul(n).IntPart())

	return t.Select(span(0, cut1)), t.Select(span(cut1, cut2)), t.Select(span(cut2, t.Len())), nil
}

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
