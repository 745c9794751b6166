// Package payments reconciles bank statement exports against open bills.
package payments

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// metadataLines is the number of account-summary lines a statement export
// carries before the column header row.
const metadataLines = 8

// Statement column headers, as exported by the bank.
const (
	colOperationDate = "Data dell'operazione"
	colCurrency      = "Moneta"
	colAmount        = "Importo singolo"
	colDescription   = "Descrizione1"
	colCounterparty  = "Descrizione2"
)

// Record is one statement row after forward-filling. Credit bookings are
// split across rows: the parent row carries the operation date and the
// detail rows inherit it, so every field here is already filled from the
// nearest preceding non-empty cell.
type Record struct {
	OperationDate    string
	Currency         string
	Amount           string
	Description      string
	CounterpartyIBAN string
}

// ParseStatement reads a semicolon-separated bank statement export. The
// first eight lines are account metadata and are skipped; the ninth line
// must be the column header. Empty cells are forward-filled from the rows
// above, mirroring how the bank spreads one booking over several rows.
func ParseStatement(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for i := 0; i < metadataLines; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to read statement metadata: %w", err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	fill := make([]string, len(header))
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read statement row: %w", err)
		}

		for i, cell := range row {
			if i >= len(fill) {
				break
			}
			if strings.TrimSpace(cell) != "" {
				fill[i] = cell
			}
		}

		records = append(records, Record{
			OperationDate:    fill[columns[colOperationDate]],
			Currency:         fill[columns[colCurrency]],
			Amount:           fill[columns[colAmount]],
			Description:      fill[columns[colDescription]],
			CounterpartyIBAN: fill[columns[colCounterparty]],
		})
	}
	return records, nil
}

func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colOperationDate, colCurrency, colAmount, colDescription, colCounterparty} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("statement header is missing column %q", required)
		}
	}
	return columns, nil
}
