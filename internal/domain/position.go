package domain

import "time"

// Direction is the side of a position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Lot is one priced slice of a position.
// Margin lots were funded with borrowing capacity instead of cash.
type Lot struct {
	Price  float64
	Qty    int64
	Margin bool
}

// PriceDiff is the per-share gain of the lot when closed at price.
func (l Lot) PriceDiff(dir Direction, price float64) float64 {
	if dir == Long {
		return price - l.Price
	}
	return l.Price - price
}

// Profit estimates the net result of closing the lot at price:
// gain minus tax on positive gains, minus the margin fee for margin lots.
// feePercentage is a percent (0.003 means 0.003%).
func (l Lot) Profit(dir Direction, price, taxRate, feePercentage float64) float64 {
	gain := l.PriceDiff(dir, price) * float64(l.Qty)
	profit := gain - max(gain*taxRate, 0)
	if l.Margin {
		profit -= price * float64(l.Qty) * (feePercentage / 100)
	}
	return profit
}

// Position is one ticker's exposure on one side under one parameter set.
type Position struct {
	Ticker    int
	Direction Direction
	Lots      []Lot

	// Extremes since open. RetreatMark is the most favorable price since
	// the last pyramid add, used to count retreat steps.
	MaxPrice    float64
	MinPrice    float64
	RetreatMark float64

	DownSteps    int
	UpSteps      int
	RetreatSteps int

	// Since is the open time, moved forward on every favorable step.
	Since time.Time
}

// NewPosition opens a position with a single lot.
func NewPosition(ticker int, dir Direction, lot Lot, at time.Time) *Position {
	return &Position{
		Ticker:      ticker,
		Direction:   dir,
		Lots:        []Lot{lot},
		MaxPrice:    lot.Price,
		MinPrice:    lot.Price,
		RetreatMark: lot.Price,
		Since:       at,
	}
}

// Quantity is the sum of all lot quantities.
func (p *Position) Quantity() int64 {
	var qty int64
	for _, lot := range p.Lots {
		qty += lot.Qty
	}
	return qty
}

// Empty reports whether no shares remain.
func (p *Position) Empty() bool {
	return p.Quantity() <= 0
}

// Profit sums Lot.Profit over all lots.
func (p *Position) Profit(price, taxRate, feePercentage float64) float64 {
	var total float64
	for _, lot := range p.Lots {
		total += lot.Profit(p.Direction, price, taxRate, feePercentage)
	}
	return total
}

// Prune drops lots with no remaining quantity.
func (p *Position) Prune() {
	kept := p.Lots[:0]
	for _, lot := range p.Lots {
		if lot.Qty > 0 {
			kept = append(kept, lot)
		}
	}
	p.Lots = kept
}
