// backend/src/normalizer/normalizer.go
package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/username/kabufolio/src/formats"
	"github.com/username/kabufolio/src/logger"
	"github.com/username/kabufolio/src/models"
)

// ErrConversion is returned when the source table itself is unreadable
// (broken CSV structure, empty file). Single bad cells never raise it; they
// become nil values in the row instead.
var ErrConversion = errors.New("could not convert source table")

// dateLayouts are tried in order when coercing a date cell.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006年1月2日",
	"20060102",
	"2006-01-02 15:04:05",
}

// numericCleaner strips currency symbols, thousands separators, percent
// signs and stray quoting from a cell before it is parsed as a float. Both
// the ASCII and full-width variants appear in broker exports.
var numericCleaner = strings.NewReplacer(
	"¥", "", "￥", "",
	",", "", "，", "",
	"%", "", "％", "",
	"\"", "", "　", "",
)

// ReadHeader decodes the file and returns only its first CSV record, for the
// detector's header heuristic.
func ReadHeader(path string) ([]string, error) {
	decoded, _, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	reader := newCSVReader(decoded)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %v", ErrConversion, path, err)
	}
	return header, nil
}

// Normalize decodes the file and converts it into a canonical table using
// the given layout's alias map. Canonical columns with no matching source
// header are simply absent from the result.
func Normalize(path string, layout *formats.Layout) (*models.Table, error) {
	decoded, encodingName, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	reader := newCSVReader(decoded)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConversion, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConversion, path)
	}
	header := records[0]

	// Bind each canonical column to the first header cell that contains one
	// of its aliases. Resolution order is the declared alias order, never
	// map iteration order.
	type binding struct {
		canonical string
		index     int
	}
	var bindings []binding
	for _, ca := range layout.Columns {
		for i, cell := range header {
			if formats.CellMatchesAlias(cell, ca.Aliases) {
				bindings = append(bindings, binding{ca.Canonical, i})
				break
			}
		}
	}

	table := &models.Table{}
	for _, b := range bindings {
		table.Columns = append(table.Columns, b.canonical)
	}

	for _, record := range records[1:] {
		var row models.Row
		for _, b := range bindings {
			if b.index >= len(record) {
				continue
			}
			setCell(&row, b.canonical, record[b.index])
		}
		table.Rows = append(table.Rows, row)
	}

	logger.L.Info("normalized file", "path", path, "layout", layout.Name,
		"encoding", encodingName, "rows", len(table.Rows), "columns", len(table.Columns))
	return table, nil
}

func newCSVReader(decoded string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(decoded))
	r.FieldsPerRecord = -1 // Allow variable number of fields per record
	r.LazyQuotes = true
	return r
}

func setCell(row *models.Row, canonical, raw string) {
	switch canonical {
	case models.ColDate:
		row.Date = ParseDate(raw)
	case models.ColSymbol:
		row.Symbol = strings.TrimSpace(raw)
	case models.ColName:
		row.Name = strings.TrimSpace(raw)
	case models.ColType:
		row.Type = strings.TrimSpace(raw)
	case models.ColQuantity:
		row.Quantity = ParseNumber(raw)
	case models.ColUnitPrice:
		row.UnitPrice = ParseNumber(raw)
	case models.ColAvgPrice:
		row.AvgPrice = ParseNumber(raw)
	case models.ColCurrentPrice:
		row.CurrentPrice = ParseNumber(raw)
	case models.ColMarketValue:
		row.MarketValue = ParseNumber(raw)
	case models.ColGainLoss:
		row.GainLoss = ParseNumber(raw)
	case models.ColGainLossRate:
		row.GainLossRate = ParseNumber(raw)
	case models.ColPrice:
		row.Price = ParseNumber(raw)
	case models.ColAmount:
		row.Amount = ParseNumber(raw)
	}
}

// ParseDate coerces a date cell. Unparseable values become nil rather than
// aborting the row.
func ParseDate(raw string) *time.Time {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return &t
		}
	}
	return nil
}

// CleanNumeric strips decoration from a numeric cell. Cleaning an already
// clean value is a no-op, so the operation is idempotent.
func CleanNumeric(raw string) string {
	return strings.TrimSpace(numericCleaner.Replace(raw))
}

// ParseNumber cleans and parses a numeric cell. Values that still fail to
// parse after cleaning become nil, never zero: downstream sums must exclude
// them, not count them.
func ParseNumber(raw string) *float64 {
	cleaned := CleanNumeric(raw)
	if cleaned == "" || cleaned == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
