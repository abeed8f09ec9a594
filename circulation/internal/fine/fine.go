// Package fine computes overdue fines. It performs no I/O.
package fine

import "time"

const DefaultRatePerDayPerCopy int64 = 1000

const day = 24 * time.Hour

type Policy struct {
	// RatePerDayPerCopy is in the smallest currency unit.
	RatePerDayPerCopy int64
}

func NewPolicy(rate int64) Policy {
	if rate <= 0 {
		rate = DefaultRatePerDayPerCopy
	}
	return Policy{RatePerDayPerCopy: rate}
}

// DaysLate counts every started day after due as a full day.
func DaysLate(due, returned time.Time) int64 {
	if !returned.After(due) {
		return 0
	}
	late := returned.Sub(due)
	return int64((late + day - 1) / day)
}

// Compute returns the fine for returning quantity copies at returned.
func (p Policy) Compute(due, returned time.Time, quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}
	return DaysLate(due, returned) * p.RatePerDayPerCopy * int64(quantity)
}
