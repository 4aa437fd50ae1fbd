package bigquery

import (
	"math/big"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
)

type CategoryRow struct {
	ExportID   string `bigquery:"export_id"`   // REQUIRED
	CategoryID string `bigquery:"category_id"` // REQUIRED
	Name       string `bigquery:"name"`        // REQUIRED

	PlannedAmount *big.Rat `bigquery:"planned_amount"` // REQUIRED NUMERIC
	ActualAmount  *big.Rat `bigquery:"actual_amount"`  // REQUIRED NUMERIC

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// CategoryRows converts every category of l.
func CategoryRows(l *domain.Ledger, exportID string, exportedAt time.Time) []*CategoryRow {
	cats := l.Categories()
	rows := make([]*CategoryRow, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, &CategoryRow{
			ExportID:      exportID,
			CategoryID:    c.ID,
			Name:          c.Name,
			PlannedAmount: c.Planned.Rat(),
			ActualAmount:  c.Actual.Rat(),
			ExportedTS:    exportedAt,
		})
	}
	return rows
}
