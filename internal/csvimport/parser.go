// Package csvimport reads Rabobank CSV exports into normalised transaction
// records. It does not touch the ledger; de-duplication and committing are
// the caller's job.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/budget-ledger/internal/money"
	"github.com/shopspring/decimal"
)

// Column names of the Rabobank export.
const (
	ColumnAccount            = "IBAN/BBAN"
	ColumnAmount             = "Bedrag"
	ColumnCounterparty       = "Naam tegenpartij"
	ColumnInitiatingParty    = "Naam initiërende partij"
	ColumnInitiatingPartyAlt = "Naam initi?rende partij" // seen in mis-encoded exports
	ColumnReference          = "Transactiereferentie"
	ColumnMandateReference   = "Machtigingskenmerk"
	ColumnBatchID            = "Batch ID"
	ColumnSequence           = "Volgnr"
)

// DefaultDescription is used when a row has no descriptive text at all.
const DefaultDescription = "Transaction"

// DescriptionSeparator joins the description parts.
const DescriptionSeparator = " | "

var (
	dateColumns        = []string{"Datum", "Rentedatum"}
	descriptionColumns = []string{ColumnCounterparty, "Omschrijving-1", "Omschrijving-2", "Omschrijving-3"}
	referenceColumns   = []string{ColumnReference, ColumnMandateReference, ColumnBatchID, ColumnSequence}
)

// Record is one normalised row of an export.
type Record struct {
	Description  string
	Amount       decimal.Decimal
	OccurredOn   string
	AccountID    string
	AccountName  string
	Counterparty string
	Reference    string
	Company      string
}

// ParseFile reads and parses an export from disk.
func ParseFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImportError{Reason: fmt.Sprintf("read %s", path), Err: err}
	}
	return ParseBytes(data)
}

// Parse reads an export from r.
func Parse(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ImportError{Reason: "read input", Err: err}
	}
	return ParseBytes(data)
}

// ParseBytes parses raw export bytes. Rows without an account are skipped.
// Any other bad row aborts the whole parse with an *ImportError.
func ParseBytes(data []byte) ([]Record, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &ImportError{Line: 1, Reason: "read header", Err: err}
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	var records []Record
	for {
		fields, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			line, _ := reader.FieldPos(0)
			return nil, &ImportError{Line: line, Reason: "malformed row", Err: err}
		}
		line, _ := reader.FieldPos(0)

		r := row{fields: fields, colIndex: colIndex}
		rec, ok, err := r.record()
		if err != nil {
			return nil, &ImportError{Line: line, Reason: err.Error()}
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// row gives by-name access to one CSV record.
type row struct {
	fields   []string
	colIndex map[string]int
}

// get returns the trimmed value of a column, or "" when absent.
func (r row) get(name string) string {
	i, ok := r.colIndex[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) record() (Record, bool, error) {
	accountID := r.get(ColumnAccount)
	if accountID == "" {
		return Record{}, false, nil
	}

	amount, err := money.ParseEuropean(r.get(ColumnAmount))
	if err != nil {
		return Record{}, false, err
	}
	occurredOn, err := r.date()
	if err != nil {
		return Record{}, false, err
	}

	description := r.description()
	counterparty := r.get(ColumnCounterparty)
	return Record{
		Description:  description,
		Amount:       amount,
		OccurredOn:   occurredOn,
		AccountID:    accountID,
		AccountName:  r.accountName(),
		Counterparty: counterparty,
		Reference:    r.reference(),
		Company:      CompanyName(description, counterparty),
	}, true, nil
}

func (r row) date() (string, error) {
	for _, col := range dateColumns {
		v := r.get(col)
		if v == "" {
			continue
		}
		if t, err := time.Parse(money.DateLayout, v); err == nil {
			return money.FormatDate(t), nil
		}
	}
	return "", errors.New("unable to determine transaction date")
}

func (r row) description() string {
	var parts []string
	seen := make(map[string]bool)
	for _, col := range descriptionColumns {
		if v := r.get(col); v != "" && !seen[v] {
			seen[v] = true
			parts = append(parts, v)
		}
	}
	if ref := r.get(ColumnReference); ref != "" && !seen[ref] {
		parts = append(parts, ref)
	}
	if len(parts) == 0 {
		return DefaultDescription
	}
	return strings.Join(parts, DescriptionSeparator)
}

// accountName is the initiating party, unless it merely repeats the
// counterparty.
func (r row) accountName() string {
	party := r.get(ColumnInitiatingParty)
	if party == "" {
		party = r.get(ColumnInitiatingPartyAlt)
	}
	if party == "" || party == r.get(ColumnCounterparty) {
		return ""
	}
	return party
}

func (r row) reference() string {
	for _, col := range referenceColumns {
		if v := r.get(col); v != "" {
			return v
		}
	}
	return ""
}
