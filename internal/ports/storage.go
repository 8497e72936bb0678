package ports

import (
	"context"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// ResultStorage persiste los resultados de cada día simulado.
// No guarda estado de simulación: solo el resultado final por set y, en modo
// single, el diario de operaciones.
type ResultStorage interface {
	// SaveRun registra el inicio de una ejecución.
	SaveRun(ctx context.Context, runID string, dates int, combinations int) error

	// SaveDayResults persiste el ranking de un día.
	SaveDayResults(ctx context.Context, report domain.DayReport) error
}
