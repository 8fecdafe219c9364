// backend/src/models/portfolio.go
package models

import "github.com/shopspring/decimal"

// PortfolioEntry is one record of the portfolio value ledger. Entries are
// append-only: a correction is a new entry, never an edit of an old one.
type PortfolioEntry struct {
	Date       string          `json:"date"` // YYYY-MM-DD
	TotalValue decimal.Decimal `json:"total_value"`
	Deposit    decimal.Decimal `json:"deposit"`
	Withdrawal decimal.Decimal `json:"withdrawal"`
	NetFlow    decimal.Decimal `json:"net_flow"`    // deposit - withdrawal
	ReturnRate decimal.Decimal `json:"return_rate"` // flow-adjusted, percent, 2dp
	Notes      string          `json:"notes"`
}

// PortfolioSummary aggregates the whole value ledger.
type PortfolioSummary struct {
	CurrentValue    decimal.Decimal `json:"current_value"`
	NetInvested     decimal.Decimal `json:"net_invested"` // total deposits - total withdrawals
	TotalReturn     decimal.Decimal `json:"total_return"`
	TotalReturnRate decimal.Decimal `json:"total_return_rate"` // percent
	PeriodDays      int             `json:"period_days"`
}
