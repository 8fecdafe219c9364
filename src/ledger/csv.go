// backend/src/ledger/csv.go
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/username/kabufolio/src/models"
)

const dateFormat = "2006-01-02"

// readTable loads a ledger CSV back into a table. A missing file yields a
// nil table, which callers treat as "nothing persisted yet". Header cells
// that are not canonical column names are ignored.
func readTable(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	if len(records) == 0 {
		return &models.Table{}, nil
	}

	header := records[0]
	table := &models.Table{}
	indexes := make([]int, 0, len(header))
	for i, col := range header {
		if isCanonical(col) {
			table.Columns = append(table.Columns, col)
			indexes = append(indexes, i)
		}
	}
	for _, record := range records[1:] {
		var row models.Row
		for j, col := range table.Columns {
			i := indexes[j]
			if i < len(record) {
				parseCell(&row, col, record[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// writeTable rewrites the whole ledger file. The write goes to a temporary
// file in the same directory first and is renamed over the destination, so a
// crash mid-write never leaves a truncated ledger behind.
func writeTable(path string, table *models.Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(table.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header of %s: %w", path, err)
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = cellString(&row, col)
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("writing row of %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func isCanonical(col string) bool {
	switch col {
	case models.ColDate, models.ColSymbol, models.ColName, models.ColType,
		models.ColQuantity, models.ColUnitPrice, models.ColAvgPrice,
		models.ColCurrentPrice, models.ColMarketValue, models.ColGainLoss,
		models.ColGainLossRate, models.ColPrice, models.ColAmount,
		models.ColImportDate:
		return true
	}
	return false
}

func cellString(row *models.Row, col string) string {
	switch col {
	case models.ColDate:
		if row.Date == nil {
			return ""
		}
		return row.Date.Format(dateFormat)
	case models.ColSymbol:
		return row.Symbol
	case models.ColName:
		return row.Name
	case models.ColType:
		return row.Type
	case models.ColImportDate:
		return row.ImportDate
	default:
		return floatString(floatCell(row, col))
	}
}

func parseCell(row *models.Row, col, raw string) {
	switch col {
	case models.ColDate:
		if raw != "" {
			if t, err := time.Parse(dateFormat, raw); err == nil {
				row.Date = &t
			}
		}
	case models.ColSymbol:
		row.Symbol = raw
	case models.ColName:
		row.Name = raw
	case models.ColType:
		row.Type = raw
	case models.ColImportDate:
		row.ImportDate = raw
	default:
		if raw == "" {
			return
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			setFloatCell(row, col, &v)
		}
	}
}

func floatCell(row *models.Row, col string) *float64 {
	switch col {
	case models.ColQuantity:
		return row.Quantity
	case models.ColUnitPrice:
		return row.UnitPrice
	case models.ColAvgPrice:
		return row.AvgPrice
	case models.ColCurrentPrice:
		return row.CurrentPrice
	case models.ColMarketValue:
		return row.MarketValue
	case models.ColGainLoss:
		return row.GainLoss
	case models.ColGainLossRate:
		return row.GainLossRate
	case models.ColPrice:
		return row.Price
	case models.ColAmount:
		return row.Amount
	}
	return nil
}

func setFloatCell(row *models.Row, col string, v *float64) {
	switch col {
	case models.ColQuantity:
		row.Quantity = v
	case models.ColUnitPrice:
		row.UnitPrice = v
	case models.ColAvgPrice:
		row.AvgPrice = v
	case models.ColCurrentPrice:
		row.CurrentPrice = v
	case models.ColMarketValue:
		row.MarketValue = v
	case models.ColGainLoss:
		row.GainLoss = v
	case models.ColGainLossRate:
		row.GainLossRate = v
	case models.ColPrice:
		row.Price = v
	case models.ColAmount:
		row.Amount = v
	}
}

func floatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
