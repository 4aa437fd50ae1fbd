package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
)

type TransactionRow struct {
	ExportID      string `bigquery:"export_id"`      // REQUIRED
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Description     string     `bigquery:"description"`      // REQUIRED

	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE, empty when unassigned
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE

	AccountID   bigquery.NullString `bigquery:"account_id"`   // NULLABLE
	AccountName bigquery.NullString `bigquery:"account_name"` // NULLABLE

	Counterparty      bigquery.NullString `bigquery:"counterparty"`       // NULLABLE
	ExternalReference bigquery.NullString `bigquery:"external_reference"` // NULLABLE
	Company           bigquery.NullString `bigquery:"company"`            // NULLABLE

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// TransactionRows converts every transaction of l.
func TransactionRows(l *domain.Ledger, exportID string, exportedAt time.Time) ([]*TransactionRow, error) {
	txns := l.Transactions()
	rows := make([]*TransactionRow, 0, len(txns))
	for _, t := range txns {
		date, err := civil.ParseDate(t.OccurredOn)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: parse date %q: %w", t.ID, t.OccurredOn, err)
		}
		row := &TransactionRow{
			ExportID:          exportID,
			TransactionID:     t.ID,
			TransactionDate:   date,
			Amount:            t.Amount.Rat(),
			Description:       t.Description,
			CategoryID:        nullString(t.CategoryID),
			AccountID:         nullString(t.AccountID),
			AccountName:       nullString(t.AccountName),
			Counterparty:      nullString(t.Counterparty),
			ExternalReference: nullString(t.Reference),
			Company:           nullString(t.Company),
			ExportedTS:        exportedAt,
		}
		if c, ok := l.Category(t.CategoryID); ok {
			row.CategoryName = nullString(c.Name)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
