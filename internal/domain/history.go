package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceRecord is one entry in a product's append-only price log. Records are
// only written when the price differs from the immediately preceding one, so
// the log holds change events, not daily samples.
type PriceRecord struct {
	ID         int64
	ProductID  int64
	Price      int64
	RecordedAt time.Time
}

// ChangeDirection filters price-change queries.
type ChangeDirection string

const (
	ChangeDropped ChangeDirection = "dropped"
	ChangeRaised  ChangeDirection = "raised"
	ChangeEither  ChangeDirection = "either"
)

// ParseChangeDirection validates API/operator input.
func ParseChangeDirection(value string) (ChangeDirection, error) {
	switch ChangeDirection(value) {
	case ChangeDropped, ChangeRaised, ChangeEither:
		return ChangeDirection(value), nil
	}
	return "", fmt.Errorf("unknown change direction %q (expected dropped, raised or either)", value)
}

// Matches reports whether a drop (newPrice < previousPrice) or raise
// satisfies the requested direction.
func (d ChangeDirection) Matches(previousPrice, newPrice int64) bool {
	switch d {
	case ChangeDropped:
		return newPrice < previousPrice
	case ChangeRaised:
		return newPrice > previousPrice
	case ChangeEither:
		return newPrice != previousPrice
	}
	return false
}

// PriceChange describes one detected in-window price movement.
type PriceChange struct {
	PreviousPrice int64           `json:"previous_price"`
	NewPrice      int64           `json:"new_price"`
	Amount        int64           `json:"change_amount"`
	Percent       float64         `json:"change_percent"`
	Direction     ChangeDirection `json:"change_type"`
	ChangedAt     time.Time       `json:"changed_at"`
}

// NewPriceChange derives amount, percent and direction from the two prices.
// previousPrice must be non-zero and differ from newPrice.
func NewPriceChange(previousPrice, newPrice int64, at time.Time) PriceChange {
	direction := ChangeRaised
	if newPrice < previousPrice {
		direction = ChangeDropped
	}
	amount := newPrice - previousPrice
	if amount < 0 {
		amount = -amount
	}
	percent := math.Round(float64(amount)/float64(previousPrice)*1000) / 10
	return PriceChange{
		PreviousPrice: previousPrice,
		NewPrice:      newPrice,
		Amount:        amount,
		Percent:       percent,
		Direction:     direction,
		ChangedAt:     at,
	}
}

// MaxWindowDays clamps look-back windows to a sane maximum.
const MaxWindowDays = 30

// WindowStart computes the inclusive lower bound of a look-back window,
// clamping windowDays to [1, MaxWindowDays].
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays < 1 {
		windowDays = 1
	}
	if windowDays > MaxWindowDays {
		windowDays = MaxWindowDays
	}
	return now.AddDate(0, 0, -windowDays)
}

// LegacyKey identifies a product inside a legacy history store, which predates
// internal row ids and keys records by the upstream identifiers.
type LegacyKey struct {
	ExternalID string
	PriceGroup string
}

func (k LegacyKey) String() string {
	return k.ExternalID + "/" + k.PriceGroup
}

// LegacyRecord is one raw row of a legacy history log, possibly carrying the
// same price as its neighbours (the compression invariant postdates it).
type LegacyRecord struct {
	Price      int64
	RecordedAt time.Time
}

// PriceExtremes aggregates a product's full history for stats repair.
type PriceExtremes struct {
	Lowest  int64
	Highest int64
	Latest  int64
	Count   int
}
