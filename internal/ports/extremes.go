package ports

import (
	"context"
	"time"
)

// ExtremesChecker compara un precio con los cierres históricos del ticker.
//
// La ventana es de days días de calendario hasta asOf inclusive. Sin datos
// en la ventana ambos métodos devuelven false. Los errores se devuelven tal
// cual: decidir qué hacer con ellos es responsabilidad del caller.
type ExtremesChecker interface {
	// IsHighest: price >= max(close) × (1 − threshold).
	IsHighest(ctx context.Context, ticker int, price float64, asOf time.Time, days int, threshold float64) (bool, error)

	// IsLowest: price <= min(close) × (1 + threshold).
	IsLowest(ctx context.Context, ticker int, price float64, asOf time.Time, days int, threshold float64) (bool, error)
}
