// backend/src/formats/formats.go
package formats

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/username/kabufolio/src/models"
)

// Kind classifies what a layout's rows represent, and therefore which ledger
// an import is merged into.
type Kind int

const (
	KindHoldings Kind = iota
	KindTrades
)

func (k Kind) String() string {
	switch k {
	case KindHoldings:
		return "holdings"
	case KindTrades:
		return "trades"
	default:
		return "unknown"
	}
}

// ColumnAliases maps one canonical column to the source header names it may
// appear under. Alias order is the declared resolution order.
type ColumnAliases struct {
	Canonical string
	Aliases   []string
}

// Layout is the static definition of one vendor's CSV export: a filename
// detection pattern and the canonical-to-alias column map.
type Layout struct {
	Name    string
	Kind    Kind
	Pattern *regexp.Regexp
	Columns []ColumnAliases
}

// MatchesFilename tests the layout's detection pattern against a lower-cased
// file base name.
func (l *Layout) MatchesFilename(lowerName string) bool {
	return l.Pattern.MatchString(lowerName)
}

// HeaderMatchCount counts canonical columns for which at least one actual
// header cell contains one of the declared aliases as a substring.
func (l *Layout) HeaderMatchCount(header []string) int {
	count := 0
	for _, ca := range l.Columns {
		if headerBinds(header, ca.Aliases) {
			count++
		}
	}
	return count
}

func headerBinds(header []string, aliases []string) bool {
	for _, cell := range header {
		if CellMatchesAlias(cell, aliases) {
			return true
		}
	}
	return false
}

// CellMatchesAlias reports whether a header cell contains any of the aliases
// as a substring. Containment, not equality: vendors decorate header names
// with units and footnote markers.
func CellMatchesAlias(cell string, aliases []string) bool {
	for _, a := range aliases {
		if a != "" && strings.Contains(cell, a) {
			return true
		}
	}
	return false
}

// Registry holds the known layouts in registration order. Detection scans in
// that order and the first adequate match wins.
type Registry struct {
	layouts []*Layout
	byName  map[string]*Layout
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Layout)}
}

// Register appends a layout. Names must be unique.
func (r *Registry) Register(l *Layout) error {
	if _, exists := r.byName[l.Name]; exists {
		return fmt.Errorf("layout %q already registered", l.Name)
	}
	r.layouts = append(r.layouts, l)
	r.byName[l.Name] = l
	return nil
}

// Layout returns a registered layout by name.
func (r *Registry) Layout(name string) (*Layout, bool) {
	l, ok := r.byName[name]
	return l, ok
}

// Layouts returns the registered layouts in registration order.
func (r *Registry) Layouts() []*Layout {
	return r.layouts
}

// NewDefaultRegistry registers the built-in layouts: SBI asset-balance and
// trading-history exports plus the Rakuten holdings export. Alias lists carry
// both the native Japanese header names and the English ones the download
// pages offer.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, l := range []*Layout{
		{
			Name:    "sbi_portfolio",
			Kind:    KindHoldings,
			Pattern: regexp.MustCompile(`(assetbalance|資産残高)`),
			Columns: []ColumnAliases{
				{models.ColDate, []string{"評価日", "Date", "日付"}},
				{models.ColSymbol, []string{"銘柄コード", "Symbol", "Code"}},
				{models.ColName, []string{"銘柄名", "Name", "商品名"}},
				{models.ColQuantity, []string{"保有数量", "Quantity", "数量"}},
				{models.ColUnitPrice, []string{"基準価格", "Price", "単価"}},
				{models.ColMarketValue, []string{"評価額", "Market Value", "時価評価額"}},
				{models.ColGainLoss, []string{"評価損益", "Gain/Loss", "損益"}},
				{models.ColGainLossRate, []string{"評価損益率", "Return Rate", "損益率"}},
			},
		},
		{
			Name:    "sbi_trading",
			Kind:    KindTrades,
			Pattern: regexp.MustCompile(`(trading|取引履歴)`),
			Columns: []ColumnAliases{
				{models.ColDate, []string{"約定日", "Settlement Date", "取引日"}},
				{models.ColType, []string{"売買", "Transaction Type", "取引種別"}},
				{models.ColSymbol, []string{"銘柄コード", "Symbol"}},
				{models.ColName, []string{"銘柄名", "Security Name"}},
				{models.ColQuantity, []string{"数量", "Quantity"}},
				{models.ColPrice, []string{"単価", "Unit Price"}},
				{models.ColAmount, []string{"金額", "Amount", "約定代金"}},
			},
		},
		{
			Name:    "rakuten_portfolio",
			Kind:    KindHoldings,
			Pattern: regexp.MustCompile(`(保有商品|portfolio)`),
			Columns: []ColumnAliases{
				{models.ColSymbol, []string{"商品コード", "Product Code"}},
				{models.ColName, []string{"商品名", "Product Name"}},
				{models.ColQuantity, []string{"保有口数", "Units Held"}},
				{models.ColAvgPrice, []string{"平均取得価額", "Average Cost"}},
				{models.ColCurrentPrice, []string{"基準価額", "Current Price"}},
				{models.ColMarketValue, []string{"評価金額", "Market Value"}},
				{models.ColGainLoss, []string{"評価損益", "Unrealized P&L"}},
			},
		},
	} {
		if err := r.Register(l); err != nil {
			panic(err)
		}
	}
	return r
}
