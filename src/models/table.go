// backend/src/models/table.go
package models

import "time"

// Canonical column names produced by the normalizer. Downstream code keys on
// these names regardless of the vendor's header language.
const (
	ColDate         = "date"
	ColSymbol       = "symbol"
	ColName         = "name"
	ColQuantity     = "quantity"
	ColUnitPrice    = "unit_price"
	ColAvgPrice     = "avg_price"
	ColCurrentPrice = "current_price"
	ColMarketValue  = "market_value"
	ColGainLoss     = "gain_loss"
	ColGainLossRate = "gain_loss_rate"
	ColType         = "type"
	ColPrice        = "price"
	ColAmount       = "amount"
	ColImportDate   = "import_date"
)

// Row is a single normalized record. Numeric and date fields are pointers:
// nil means the source cell was absent or failed to parse. A nil cell is
// excluded from aggregation, never counted as zero.
type Row struct {
	Date         *time.Time `json:"date"`
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Quantity     *float64   `json:"quantity"`
	UnitPrice    *float64   `json:"unit_price"`
	AvgPrice     *float64   `json:"avg_price"`
	CurrentPrice *float64   `json:"current_price"`
	MarketValue  *float64   `json:"market_value"`
	GainLoss     *float64   `json:"gain_loss"`
	GainLossRate *float64   `json:"gain_loss_rate"`
	Price        *float64   `json:"price"`
	Amount       *float64   `json:"amount"`
	ImportDate   string     `json:"import_date,omitempty"` // YYYY-MM-DD, set by the ledger store
}

// Table is a normalized table: the canonical columns that were actually bound
// for this source (in declared order) plus the rows. Columns missing from a
// layout are omitted entirely rather than null-filled.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether the canonical column was bound for this table.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// SumMarketValue sums the market_value cells, skipping nil cells. It returns
// the sum and how many rows actually contributed to it.
func (t *Table) SumMarketValue() (float64, int) {
	var sum float64
	var counted int
	for _, r := range t.Rows {
		if r.MarketValue != nil {
			sum += *r.MarketValue
			counted++
		}
	}
	return sum, counted
}
