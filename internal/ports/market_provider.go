package ports

import (
	"context"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// SnapshotProvider entrega las métricas de mercado de un instante de la sesión.
type SnapshotProvider interface {
	// FetchSnapshot devuelve las métricas de los tickers dados en el timestamp at.
	// Un ticker sin fila en ese instante no aparece en el mapa; el engine
	// aplica sus reglas de relleno.
	FetchSnapshot(ctx context.Context, tickers []int, at time.Time) (domain.Snapshot, error)
}

// TickerUniverse devuelve el conjunto completo de tickers operables.
type TickerUniverse interface {
	// FetchTickers se llama una vez por ejecución.
	FetchTickers(ctx context.Context) ([]int, error)
}
