package runner

// grid.go — producto cartesiano de parámetros y reparto en chunks.
//
// Cada chunk se convierte en un simulador con muchos parameter sets. Los
// chunks tienen tamaño ceil(n/workers), así que como mucho queda uno más
// corto que el resto.

import (
	"github.com/lethanhtung0208/stock/internal/domain"
)

// Grid lista los valores a probar por dimensión.
// MaxDecrements de cada set es MinDecrements + ExtraDecrements.
type Grid struct {
	Root             []float64
	Take             []float64
	HoldMinutes      []float64
	LookbackDays     []int
	ExtremeThreshold []float64
	MinTradeQty      []int64
	MinDecrements    []int
	ExtraDecrements  []int
	TradeGainLen     []int
	MinUpDownDiff    []int
}

// Size es el número de combinaciones.
func (g Grid) Size() int {
	return len(g.Root) * len(g.Take) * len(g.HoldMinutes) * len(g.LookbackDays) *
		len(g.ExtremeThreshold) * len(g.MinTradeQty) * len(g.MinDecrements) *
		len(g.ExtraDecrements) * len(g.TradeGainLen) * len(g.MinUpDownDiff)
}

// Expand genera todas las combinaciones sobre base, en orden fijo: la
// última dimensión (MinUpDownDiff) es la que varía más rápido.
func (g Grid) Expand(base domain.Params) []domain.Params {
	out := make([]domain.Params, 0, g.Size())
	for _, root := range g.Root {
		for _, take := range g.Take {
			for _, hold := range g.HoldMinutes {
				for _, days := range g.LookbackDays {
					for _, thr := range g.ExtremeThreshold {
						for _, qty := range g.MinTradeQty {
							for _, minDec := range g.MinDecrements {
								for _, extra := range g.ExtraDecrements {
									for _, tgl := range g.TradeGainLen {
										for _, updn := range g.MinUpDownDiff {
											p := base
											p.Root = root
											p.Take = take
											p.HoldMinutes = hold
											p.LookbackDays = days
											p.ExtremeThreshold = thr
											p.MinTradeQty = qty
											p.MinDecrements = minDec
											p.MaxDecrements = minDec + extra
											p.TradeGainLen = tgl
											p.MinUpDownDiff = updn
											p.StepThresholds = append([]domain.StepThreshold(nil), base.StepThresholds...)
											out = append(out, p)
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
	return out
}

// Chunk parte params en como mucho workers trozos casi iguales,
// conservando el orden.
func Chunk(params []domain.Params, workers int) [][]domain.Params {
	if len(params) == 0 {
		return nil
	}
	workers = max(1, workers)
	size := (len(params) + workers - 1) / workers

	chunks := make([][]domain.Params, 0, workers)
	for start := 0; start < len(params); start += size {
		end := min(start+size, len(params))
		chunks = append(chunks, params[start:end])
	}
	return chunks
}
