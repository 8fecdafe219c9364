// backend/src/ledger/store.go
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/username/kabufolio/src/logger"
	"github.com/username/kabufolio/src/models"
)

const (
	holdingsFile = "holdings.csv"
	tradesFile   = "trades.csv"
)

// Store owns the holdings and trades ledgers of one data directory. Every
// merge reads the whole file, mutates in memory and rewrites it atomically.
// Single writer per data directory; the caller enforces that.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// WithClock overrides the store's clock. Used by tests to pin import_date.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) holdingsPath() string { return filepath.Join(s.dir, holdingsFile) }
func (s *Store) tradesPath() string   { return filepath.Join(s.dir, tradesFile) }

// MergeHoldings tags every incoming row with today's import date and merges
// the table into the holdings ledger. At most one row survives per
// (symbol, import_date): the freshly imported row wins over any stale row
// already carrying that key, which makes re-running the same import on the
// same day idempotent in content. Returns the number of incoming rows.
func (s *Store) MergeHoldings(table *models.Table) (int, error) {
	if table == nil || len(table.Rows) == 0 {
		return 0, nil
	}
	if err := s.ensureDir(); err != nil {
		return 0, err
	}

	importDate := s.now().Format(dateFormat)
	incoming := &models.Table{Columns: append([]string(nil), table.Columns...)}
	incoming.AddColumn(models.ColImportDate)
	for _, row := range table.Rows {
		row.ImportDate = importDate
		incoming.Rows = append(incoming.Rows, row)
	}

	existing, err := readTable(s.holdingsPath())
	if err != nil {
		return 0, err
	}
	combined := concatTables(existing, incoming)
	combined.Rows = dedupeKeepLast(combined.Rows, func(r *models.Row) string {
		return r.Symbol + "\x1f" + r.ImportDate
	})

	if err := writeTable(s.holdingsPath(), combined); err != nil {
		return 0, err
	}
	logger.L.Info("holdings ledger updated", "imported", len(table.Rows),
		"total", len(combined.Rows), "importDate", importDate)
	return len(table.Rows), nil
}

// MergeTrades appends the table to the trades ledger, dropping only rows
// that are exact duplicates across every column. There is no key-based
// overwrite: repeated distinct trades on the same symbol and day are
// legitimate and must all survive.
func (s *Store) MergeTrades(table *models.Table) (int, error) {
	if table == nil || len(table.Rows) == 0 {
		return 0, nil
	}
	if err := s.ensureDir(); err != nil {
		return 0, err
	}

	existing, err := readTable(s.tradesPath())
	if err != nil {
		return 0, err
	}
	combined := concatTables(existing, table)
	columns := combined.Columns
	combined.Rows = dedupeKeepFirst(combined.Rows, func(r *models.Row) string {
		return fullRowKey(r, columns)
	})

	if err := writeTable(s.tradesPath(), combined); err != nil {
		return 0, err
	}
	logger.L.Info("trades ledger updated", "imported", len(table.Rows), "total", len(combined.Rows))
	return len(table.Rows), nil
}

// Holdings returns the whole holdings ledger, or nil when nothing has been
// imported yet.
func (s *Store) Holdings() (*models.Table, error) {
	return readTable(s.holdingsPath())
}

// Trades returns the whole trades ledger, or nil when nothing has been
// imported yet.
func (s *Store) Trades() (*models.Table, error) {
	return readTable(s.tradesPath())
}

// LatestSnapshot returns the holdings rows sharing the maximum import_date:
// the most recently imported portfolio state.
func (s *Store) LatestSnapshot() (*models.Table, error) {
	all, err := s.Holdings()
	if err != nil || all == nil || len(all.Rows) == 0 {
		return nil, err
	}
	var latest string
	for _, row := range all.Rows {
		if row.ImportDate > latest {
			latest = row.ImportDate
		}
	}
	snapshot := &models.Table{Columns: all.Columns}
	for _, row := range all.Rows {
		if row.ImportDate == latest {
			snapshot.Rows = append(snapshot.Rows, row)
		}
	}
	return snapshot, nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", s.dir, err)
	}
	return nil
}

// concatTables appends b under a, taking the union of their columns:
// a's columns keep their order, b's extra columns are appended after.
func concatTables(a, b *models.Table) *models.Table {
	if a == nil || len(a.Columns) == 0 {
		return &models.Table{
			Columns: append([]string(nil), b.Columns...),
			Rows:    append([]models.Row(nil), b.Rows...),
		}
	}
	out := &models.Table{
		Columns: append([]string(nil), a.Columns...),
		Rows:    append([]models.Row(nil), a.Rows...),
	}
	for _, col := range b.Columns {
		out.AddColumn(col)
	}
	out.Rows = append(out.Rows, b.Rows...)
	return out
}

// dedupeKeepLast keeps, for each key, only the last occurrence, at the
// position that occurrence had. A later import therefore overrides an
// earlier row both by value and positionally.
func dedupeKeepLast(rows []models.Row, key func(*models.Row) string) []models.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]models.Row, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		k := key(&rows[i])
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rows[i])
	}
	// restore ascending order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func dedupeKeepFirst(rows []models.Row, key func(*models.Row) string) []models.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]models.Row, 0, len(rows))
	for i := range rows {
		k := key(&rows[i])
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rows[i])
	}
	return out
}

// fullRowKey serializes every cell of the row, in column order, for
// exact-duplicate comparison.
func fullRowKey(row *models.Row, columns []string) string {
	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = cellString(row, col)
	}
	return strings.Join(cells, "\x1f")
}
