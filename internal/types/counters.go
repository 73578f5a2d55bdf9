package types

import "github.com/shopspring/decimal"

// dailyKey is (chain, UTC date) as spec.md §3 describes DailyCounters.
type dailyKey struct {
	chain string
	date  string // YYYY-MM-DD, UTC
}

// DailyCounters tracks traded USD volume per (chain, date), reset at UTC
// midnight. It is not safe for concurrent use on its own — the Risk Manager
// owns it behind a mutex, per spec.md §5.
type DailyCounters struct {
	volumes map[dailyKey]decimal.Decimal
}

// NewDailyCounters returns an empty counter set.
func NewDailyCounters() *DailyCounters {
	return &DailyCounters{volumes: make(map[dailyKey]decimal.Decimal)}
}

// Add accumulates amountUSD into the (chain, date) bucket and returns the
// new total.
func (d *DailyCounters) Add(chain, date string, amountUSD decimal.Decimal) decimal.Decimal {
	k := dailyKey{chain: chain, date: date}
	total := d.volumes[k].Add(amountUSD)
	d.volumes[k] = total
	return total
}

// Get returns the current volume for (chain, date).
func (d *DailyCounters) Get(chain, date string) decimal.Decimal {
	return d.volumes[dailyKey{chain: chain, date: date}]
}

// Reset clears all counters. Scheduled at UTC midnight per spec.md §4.4.
func (d *DailyCounters) Reset() {
	d.volumes = make(map[dailyKey]decimal.Decimal)
}
