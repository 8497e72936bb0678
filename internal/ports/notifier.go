package ports

import (
	"context"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// Reporter presenta los resultados al usuario.
type Reporter interface {
	// ReportDay muestra el ranking de un día, ordenado por real max profit.
	ReportDay(ctx context.Context, report domain.DayReport) error

	// ReportSweep muestra el agregado de todos los días por combinación.
	ReportSweep(ctx context.Context, rows []domain.SweepRow) error
}
