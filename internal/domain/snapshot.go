package domain

// Metrics es la fila de un ticker en un instante de la sesión.
// AskPrice es el precio lejano (marketable para comprar),
// BidPrice el precio cercano (marketable para vender en corto).
type Metrics struct {
	CurrentPrice float64
	Volume       float64
	AskQtyTotal  float64
	BidQtyTotal  float64
	AskPrice     float64
	BidPrice     float64
}

// Snapshot agrupa las métricas de todos los tickers para un timestamp.
// Un ticker ausente simplemente no tiene key.
type Snapshot map[int]Metrics

// Tickers devuelve los ids presentes en el snapshot (sin orden garantizado).
func (s Snapshot) Tickers() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}
