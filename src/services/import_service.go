// backend/src/services/import_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/username/kabufolio/src/formats"
	"github.com/username/kabufolio/src/ledger"
	"github.com/username/kabufolio/src/logger"
	"github.com/username/kabufolio/src/models"
	"github.com/username/kabufolio/src/normalizer"
)

const (
	ckPortfolioSummary     = "agg_portfolio_summary"
	ckLatestSnapshot       = "res_latest_snapshot"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// ImportResult describes what one successful file import did.
type ImportResult struct {
	Path       string                 `json:"path"`
	Layout     string                 `json:"layout"`
	Kind       string                 `json:"kind"`
	RowCount   int                    `json:"row_count"`
	TotalValue *decimal.Decimal       `json:"total_value,omitempty"` // holdings only, when computable
	Entry      *models.PortfolioEntry `json:"entry,omitempty"`       // auto-appended value ledger entry
}

// FileOutcome is the per-file record of a batch import. Exactly one of
// Result and Err is set.
type FileOutcome struct {
	Path   string        `json:"path"`
	Result *ImportResult `json:"result,omitempty"`
	Err    error         `json:"-"`
}

// BatchResult collects the outcomes of a directory import. Files fail
// independently; one bad file never aborts the batch.
type BatchResult struct {
	ID        string        `json:"id"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []FileOutcome `json:"outcomes"`
}

// Position is one holding of the latest snapshot, with its share of the
// snapshot's total market value.
type Position struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	MarketValue  float64  `json:"market_value"`
	GainLoss     *float64 `json:"gain_loss"`
	GainLossRate *float64 `json:"gain_loss_rate"`
	Weight       float64  `json:"weight"` // percent of snapshot total
}

// HoldingsReport aggregates the latest holdings snapshot. Rows whose market
// value failed to parse are counted but excluded from sums and positions.
type HoldingsReport struct {
	ImportDate        string     `json:"import_date"`
	PositionCount     int        `json:"position_count"`
	TotalMarketValue  float64    `json:"total_market_value"`
	TotalGainLoss     float64    `json:"total_gain_loss"`
	AverageReturnRate float64    `json:"average_return_rate"` // percent
	Positions         []Position `json:"positions"`           // sorted by market value, descending
}

// ImportService wires detection, normalization and the ledgers together.
// It is the surface the web and report layers consume.
type ImportService struct {
	registry    *formats.Registry
	store       *ledger.Store
	tracker     *ledger.Tracker
	resultCache *cache.Cache

	// MaxImportSizeBytes rejects oversized files before decoding. Zero
	// disables the check.
	MaxImportSizeBytes int64
}

func NewImportService(registry *formats.Registry, store *ledger.Store, tracker *ledger.Tracker, resultCache *cache.Cache) *ImportService {
	return &ImportService{
		registry:           registry,
		store:              store,
		tracker:            tracker,
		resultCache:        resultCache,
		MaxImportSizeBytes: 10 * 1024 * 1024,
	}
}

// DetectFormat picks the layout for a file: filename heuristic first, header
// heuristic second. The header is only read (and decoded) when the filename
// finds nothing.
func (s *ImportService) DetectFormat(path string) (string, error) {
	if l, ok := s.registry.MatchFilename(path); ok {
		return l.Name, nil
	}
	header, err := normalizer.ReadHeader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", formats.ErrUnknownFormat, err)
	}
	if l, ok := s.registry.MatchHeader(header); ok {
		return l.Name, nil
	}
	return "", fmt.Errorf("%w: %s", formats.ErrUnknownFormat, path)
}

// Standardize normalizes a file into the canonical table. An empty
// layoutName means auto-detect. Returns the table and the layout used.
func (s *ImportService) Standardize(path, layoutName string) (*models.Table, string, error) {
	layout, err := s.resolveLayout(path, layoutName)
	if err != nil {
		return nil, "", err
	}
	table, err := normalizer.Normalize(path, layout)
	if err != nil {
		return nil, "", err
	}
	return table, layout.Name, nil
}

// ImportFile standardizes one file and merges it into the ledger matching
// its layout kind. A holdings import with a computable total market value
// also appends one portfolio value ledger entry for the snapshot.
func (s *ImportService) ImportFile(path, layoutName string) (*ImportResult, error) {
	start := time.Now()
	if err := s.checkSize(path); err != nil {
		return nil, err
	}
	layout, err := s.resolveLayout(path, layoutName)
	if err != nil {
		return nil, err
	}
	table, err := normalizer.Normalize(path, layout)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Path:   path,
		Layout: layout.Name,
		Kind:   layout.Kind.String(),
	}
	switch layout.Kind {
	case formats.KindHoldings:
		count, err := s.store.MergeHoldings(table)
		if err != nil {
			return nil, err
		}
		result.RowCount = count
		if total, counted := table.SumMarketValue(); counted > 0 {
			totalValue := decimal.NewFromFloat(total)
			notes := fmt.Sprintf("CSV取込 (%d銘柄)", len(table.Rows))
			entry, err := s.tracker.AddEntry("", totalValue, decimal.Zero, decimal.Zero, notes)
			if err != nil {
				return nil, err
			}
			result.TotalValue = &totalValue
			result.Entry = entry
		}
	case formats.KindTrades:
		count, err := s.store.MergeTrades(table)
		if err != nil {
			return nil, err
		}
		result.RowCount = count
	default:
		return nil, fmt.Errorf("layout %q has unsupported kind %v", layout.Name, layout.Kind)
	}

	s.invalidateCache()
	logger.L.Info("import complete", "path", path, "layout", layout.Name,
		"kind", result.Kind, "rows", result.RowCount, "duration", time.Since(start))
	return result, nil
}

// ImportDirectory imports every *.csv under dir. Each file is attempted
// independently and failures are reported per file.
func (s *ImportService) ImportDirectory(dir string) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading import dir %s: %w", dir, err)
	}
	batch := &BatchResult{ID: uuid.New().String()}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		result, err := s.ImportFile(path, "")
		if err != nil {
			logger.L.Warn("file import failed", "batchID", batch.ID, "path", path, "error", err)
			batch.Outcomes = append(batch.Outcomes, FileOutcome{Path: path, Err: err})
			batch.Failed++
			continue
		}
		batch.Outcomes = append(batch.Outcomes, FileOutcome{Path: path, Result: result})
		batch.Succeeded++
	}
	logger.L.Info("batch import complete", "batchID", batch.ID,
		"succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch, nil
}

// AddEntry appends a manual snapshot to the portfolio value ledger.
func (s *ImportService) AddEntry(date string, totalValue, deposit, withdrawal decimal.Decimal, notes string) (*models.PortfolioEntry, error) {
	entry, err := s.tracker.AddEntry(date, totalValue, deposit, withdrawal, notes)
	if err != nil {
		return nil, err
	}
	s.invalidateCache()
	return entry, nil
}

// LatestSnapshot returns the most recently imported holdings rows, or nil
// when nothing has been imported yet.
func (s *ImportService) LatestSnapshot() (*models.Table, error) {
	if cached, found := s.resultCache.Get(ckLatestSnapshot); found {
		return cached.(*models.Table), nil
	}
	snapshot, err := s.store.LatestSnapshot()
	if err != nil || snapshot == nil {
		return snapshot, err
	}
	s.resultCache.Set(ckLatestSnapshot, snapshot, DefaultCacheExpiration)
	return snapshot, nil
}

// Summary aggregates the portfolio value ledger, or nil when it is empty.
func (s *ImportService) Summary() (*models.PortfolioSummary, error) {
	if cached, found := s.resultCache.Get(ckPortfolioSummary); found {
		return cached.(*models.PortfolioSummary), nil
	}
	summary, err := s.tracker.Summary()
	if err != nil || summary == nil {
		return summary, err
	}
	s.resultCache.Set(ckPortfolioSummary, summary, DefaultCacheExpiration)
	return summary, nil
}

// HoldingsReport aggregates the latest snapshot into per-position weights.
// Returns nil when no holdings have been imported.
func (s *ImportService) HoldingsReport() (*HoldingsReport, error) {
	snapshot, err := s.LatestSnapshot()
	if err != nil || snapshot == nil {
		return nil, err
	}

	report := &HoldingsReport{PositionCount: len(snapshot.Rows)}
	if len(snapshot.Rows) > 0 {
		report.ImportDate = snapshot.Rows[0].ImportDate
	}
	for _, row := range snapshot.Rows {
		if row.MarketValue == nil {
			continue
		}
		report.TotalMarketValue += *row.MarketValue
		if row.GainLoss != nil {
			report.TotalGainLoss += *row.GainLoss
		}
		report.Positions = append(report.Positions, Position{
			Symbol:       row.Symbol,
			Name:         row.Name,
			MarketValue:  *row.MarketValue,
			GainLoss:     row.GainLoss,
			GainLossRate: row.GainLossRate,
		})
	}
	if report.TotalMarketValue > 0 {
		for i := range report.Positions {
			report.Positions[i].Weight = report.Positions[i].MarketValue / report.TotalMarketValue * 100
		}
		report.AverageReturnRate = report.TotalGainLoss / report.TotalMarketValue * 100
	}
	sort.SliceStable(report.Positions, func(i, j int) bool {
		return report.Positions[i].MarketValue > report.Positions[j].MarketValue
	})
	return report, nil
}

func (s *ImportService) resolveLayout(path, layoutName string) (*formats.Layout, error) {
	if layoutName == "" {
		detected, err := s.DetectFormat(path)
		if err != nil {
			return nil, err
		}
		layoutName = detected
	}
	layout, ok := s.registry.Layout(layoutName)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported layout %q", formats.ErrUnknownFormat, layoutName)
	}
	return layout, nil
}

func (s *ImportService) checkSize(path string) error {
	if s.MaxImportSizeBytes <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > s.MaxImportSizeBytes {
		return fmt.Errorf("file %s exceeds max import size (%d > %d bytes)", path, info.Size(), s.MaxImportSizeBytes)
	}
	return nil
}

func (s *ImportService) invalidateCache() {
	s.resultCache.Delete(ckPortfolioSummary)
	s.resultCache.Delete(ckLatestSnapshot)
}
