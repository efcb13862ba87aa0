package ledger

import "math"

// Checked fixed-point arithmetic. All balance math in the core goes through
// these helpers; any overflow fails closed with ErrOverflow and aborts the
// whole instruction.

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrOverflow.
func CheckedSub(a, b int64) (int64, error) {
	if b < 0 && a > math.MaxInt64+b {
		return 0, ErrOverflow
	}
	if b > 0 && a < math.MinInt64+b {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, ErrOverflow
	}
	res := a * b
	if res/b != a {
		return 0, ErrOverflow
	}
	return res, nil
}

// QuoteAmount computes the quote-asset value of qty lots at the given tick
// price. Truncation toward zero; residual dust stays with the payer.
func QuoteAmount(price, qty int64) (int64, error) {
	return CheckedMul(price, qty)
}
