package domain

import (
	"fmt"
	"strings"
)

// Strategy holds the constants shared by every parameter set of a run.
type Strategy struct {
	FeePercentage     float64 // percent: 0.003 → 0.003% of notional
	TaxRate           float64 // on positive gains only
	MarginMultiplier  float64 // capacity = multiplier × (cash + holdings) − drawn
	MaxSpreadFraction float64 // max (ask − bid) / ask to promote a candidate
	MinSpread         float64 // absolute spread floor to promote a candidate
	MaxPrice          float64 // no candidates at or above this price
	MinVolume         float64
	PreferredPrice    float64 // entries above this price are tried first
	GainLen           int     // streak length that makes a candidate
	LossLen           int     // adverse streak length that forces an exit
	StopLossPct       float64 // per-lot hard stop
	TakeProfitPct     float64 // per-lot hard take-profit
	PyramidCap        int     // no pyramid adds once up steps reach this
	StartingCapital   float64 // reference for real profit
	InvertSignals     bool    // trade promotions on the opposite side

	// DecayProfitGate: the time-decay step uses up steps while the position
	// profit is above the gate, the retreat/down steps otherwise.
	DecayProfitGate float64
}

// StepThreshold is one tier of the retreat-from-peak exit table:
// once UpSteps ≥ UpFloor, RetreatSteps ≥ RetreatCeil closes the position.
type StepThreshold struct {
	UpFloor     int `yaml:"up_floor"`
	RetreatCeil int `yaml:"retreat_ceil"`
}

// Params is the fixed configuration of one parameter set.
// The first block comes from the grid, the rest is shared config.
type Params struct {
	Root             float64 // time-decay exponent on the step count
	Take             float64 // volume root: volume^(1/Take)
	HoldMinutes      float64 // base holding time
	LookbackDays     int     // historical extremes window
	ExtremeThreshold float64
	MinTradeQty      int64
	MinDecrements    int
	MaxDecrements    int
	TradeGainLen     int
	MinUpDownDiff    int

	InitialBalance    float64
	Trend             TrendBands
	MinTradePriceDiff float64
	MinStopPriceDiff  float64
	ProfitFloorK      float64 // thousands
	ProfitCeilingK    float64 // thousands
	StepThresholds    []StepThreshold
}

// ProfitFloor in currency units.
func (p Params) ProfitFloor() float64 { return p.ProfitFloorK * 1000 }

// ProfitCeiling in currency units.
func (p Params) ProfitCeiling() float64 { return p.ProfitCeilingK * 1000 }

// Key identifies the grid tuple of the parameter set. Two sets built from
// the same tuple share the same key across days.
func (p Params) Key() string {
	parts := []string{
		fmt.Sprintf("root=%g", p.Root),
		fmt.Sprintf("take=%g", p.Take),
		fmt.Sprintf("hold=%g", p.HoldMinutes),
		fmt.Sprintf("days=%d", p.LookbackDays),
		fmt.Sprintf("thr=%g", p.ExtremeThreshold),
		fmt.Sprintf("qty=%d", p.MinTradeQty),
		fmt.Sprintf("dec=%d/%d", p.MinDecrements, p.MaxDecrements),
		fmt.Sprintf("tgl=%d", p.TradeGainLen),
		fmt.Sprintf("updn=%d", p.MinUpDownDiff),
	}
	return strings.Join(parts, " ")
}
