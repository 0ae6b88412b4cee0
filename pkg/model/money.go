package model

import "math"

// RoundTo rounds v to the nearest multiple of step, halves away from zero.
func RoundTo(v float64, step int64) int64 {
	if step <= 1 {
		return int64(math.Round(v))
	}
	return int64(math.Round(v/float64(step))) * step
}

// StayPrice is the agreed amount for nights at a nightly price.
func StayPrice(unitPrice int64, nights int) int64 {
	return unitPrice * int64(nights)
}

// ServiceFee is the fee charged on top of amount.
func ServiceFee(amount int64, factor float64) int64 {
	if factor <= 0 {
		return 0
	}
	return int64(math.Round(float64(amount) * factor))
}
