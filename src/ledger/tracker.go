// backend/src/ledger/tracker.go
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/kabufolio/src/logger"
	"github.com/username/kabufolio/src/models"
)

const portfolioFile = "portfolio.csv"

var portfolioColumns = []string{"date", "total_value", "deposit", "withdrawal", "net_flow", "return_rate", "notes"}

var oneHundred = decimal.NewFromInt(100)

// Tracker owns the portfolio value ledger of one data directory: a strictly
// append-only sequence of snapshots with flow-adjusted period returns.
type Tracker struct {
	dir string
	now func() time.Time
}

func NewTracker(dir string) *Tracker {
	return &Tracker{dir: dir, now: time.Now}
}

// WithClock overrides the tracker's clock. Used by tests to pin entry dates.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) path() string { return filepath.Join(t.dir, portfolioFile) }

// Entries loads the whole value ledger in append order.
func (t *Tracker) Entries() ([]models.PortfolioEntry, error) {
	f, err := os.Open(t.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening portfolio ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading portfolio ledger: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]models.PortfolioEntry, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < len(portfolioColumns) {
			continue
		}
		entries = append(entries, models.PortfolioEntry{
			Date:       record[0],
			TotalValue: parseDecimal(record[1]),
			Deposit:    parseDecimal(record[2]),
			Withdrawal: parseDecimal(record[3]),
			NetFlow:    parseDecimal(record[4]),
			ReturnRate: parseDecimal(record[5]),
			Notes:      record[6],
		})
	}
	return entries, nil
}

// AddEntry appends one snapshot to the value ledger and derives its
// flow-adjusted return against the previous entry:
//
//	(total_value - prev.total_value - net_flow) / prev.total_value * 100
//
// Cash added or removed in the period is subtracted out first, so the rate
// reflects market performance only. The first entry, and any entry following
// a zero-valued one, gets a return of 0. An empty date means today.
func (t *Tracker) AddEntry(date string, totalValue, deposit, withdrawal decimal.Decimal, notes string) (*models.PortfolioEntry, error) {
	if date == "" {
		date = t.now().Format(dateFormat)
	}
	netFlow := deposit.Sub(withdrawal)

	entries, err := t.Entries()
	if err != nil {
		return nil, err
	}

	returnRate := decimal.Zero
	if len(entries) > 0 {
		prev := entries[len(entries)-1]
		if !prev.TotalValue.IsZero() {
			returnRate = totalValue.Sub(prev.TotalValue).Sub(netFlow).
				Div(prev.TotalValue).Mul(oneHundred).Round(2)
		}
	}

	entry := models.PortfolioEntry{
		Date:       date,
		TotalValue: totalValue,
		Deposit:    deposit,
		Withdrawal: withdrawal,
		NetFlow:    netFlow,
		ReturnRate: returnRate,
		Notes:      notes,
	}
	entries = append(entries, entry)
	if err := t.write(entries); err != nil {
		return nil, err
	}
	logger.L.Info("portfolio entry added", "date", date,
		"totalValue", totalValue.String(), "returnRate", returnRate.String())
	return &entry, nil
}

// Summary aggregates the whole value ledger. A nil summary means the ledger
// is still empty, which is distinct from a summary of zeros.
func (t *Tracker) Summary() (*models.PortfolioSummary, error) {
	entries, err := t.Entries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	latest := entries[len(entries)-1]
	totalDeposits := decimal.Zero
	totalWithdrawals := decimal.Zero
	for _, e := range entries {
		totalDeposits = totalDeposits.Add(e.Deposit)
		totalWithdrawals = totalWithdrawals.Add(e.Withdrawal)
	}
	netInvested := totalDeposits.Sub(totalWithdrawals)
	totalReturn := latest.TotalValue.Sub(netInvested)
	totalReturnRate := decimal.Zero
	if netInvested.IsPositive() {
		totalReturnRate = totalReturn.Div(netInvested).Mul(oneHundred).Round(2)
	}

	return &models.PortfolioSummary{
		CurrentValue:    latest.TotalValue,
		NetInvested:     netInvested,
		TotalReturn:     totalReturn,
		TotalReturnRate: totalReturnRate,
		PeriodDays:      periodDays(entries[0].Date, latest.Date),
	}, nil
}

func (t *Tracker) write(entries []models.PortfolioEntry) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", t.dir, err)
	}
	tmp, err := os.CreateTemp(t.dir, portfolioFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for portfolio ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(portfolioColumns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing portfolio ledger header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.Date,
			e.TotalValue.String(),
			e.Deposit.String(),
			e.Withdrawal.String(),
			e.NetFlow.String(),
			e.ReturnRate.String(),
			e.Notes,
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("writing portfolio ledger row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing portfolio ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing portfolio ledger temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting mode of portfolio ledger: %w", err)
	}
	if err := os.Rename(tmpName, t.path()); err != nil {
		return fmt.Errorf("replacing portfolio ledger: %w", err)
	}
	return nil
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func periodDays(first, last string) int {
	start, err1 := time.Parse(dateFormat, first)
	end, err2 := time.Parse(dateFormat, last)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
