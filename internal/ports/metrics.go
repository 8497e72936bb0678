package ports

import "github.com/lethanhtung0208/stock/internal/domain"

// Metrics recibe contadores de la ejecución. Las implementaciones deben ser
// seguras para uso concurrente: los simuladores corren en paralelo.
type Metrics interface {
	TickProcessed(blackout bool)
	TradeExecuted(kind domain.TxKind)
	ParamSetHalted()
	ExtremesLookupFailed()
}
