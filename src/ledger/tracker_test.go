package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestAddEntry_FirstEntryHasZeroReturn(t *testing.T) {
	tracker := NewTracker(t.TempDir()).WithClock(fixedClock("2024-01-05"))

	entry, err := tracker.AddEntry("", dec(1_000_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", entry.Date)
	assertDecimal(t, decimal.Zero, entry.ReturnRate)
	assertDecimal(t, decimal.Zero, entry.NetFlow)
}

func TestAddEntry_FlowAdjustedReturn(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-05", dec(1_000_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)

	// 1,100,000 after a 50,000 deposit: only the remaining 50,000 gain is
	// market performance -> 5.00%.
	entry, err := tracker.AddEntry("2024-02-05", dec(1_100_000), dec(50_000), decimal.Zero, "")
	require.NoError(t, err)
	assertDecimal(t, dec(50_000), entry.NetFlow)
	assertDecimal(t, dec(5), entry.ReturnRate)
}

func TestAddEntry_WithdrawalRaisesReturn(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-05", dec(1_000_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)

	// Value held flat while 100,000 was withdrawn: the market earned it back.
	entry, err := tracker.AddEntry("2024-02-05", dec(1_000_000), decimal.Zero, dec(100_000), "")
	require.NoError(t, err)
	assertDecimal(t, dec(-100_000), entry.NetFlow)
	assertDecimal(t, dec(10), entry.ReturnRate)
}

func TestAddEntry_ZeroBaselineGuard(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-05", decimal.Zero, decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)
	entry, err := tracker.AddEntry("2024-02-05", dec(500_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)
	assertDecimal(t, decimal.Zero, entry.ReturnRate)
}

func TestAddEntry_AppendOnly(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	first, err := tracker.AddEntry("2024-01-05", dec(1_000_000), decimal.Zero, decimal.Zero, "start")
	require.NoError(t, err)
	_, err = tracker.AddEntry("2024-02-05", dec(900_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)

	entries, err := tracker.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Older entries are never revised by a later append.
	assert.Equal(t, first.Date, entries[0].Date)
	assertDecimal(t, first.TotalValue, entries[0].TotalValue)
	assertDecimal(t, first.ReturnRate, entries[0].ReturnRate)
	assert.Equal(t, "start", entries[0].Notes)
}

func TestAddEntry_ReturnRoundsToTwoDecimals(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-05", dec(300_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)
	// 10,000 / 300,000 * 100 = 3.333...% -> 3.33
	entry, err := tracker.AddEntry("2024-02-05", dec(310_000), decimal.Zero, decimal.Zero, "")
	require.NoError(t, err)
	assertDecimal(t, decimal.RequireFromString("3.33"), entry.ReturnRate)
}

func TestSummary_EmptyLedgerIsNil(t *testing.T) {
	summary, err := NewTracker(t.TempDir()).Summary()
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestSummary_Totals(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-01", dec(1_000_000), dec(1_000_000), decimal.Zero, "initial funding")
	require.NoError(t, err)
	_, err = tracker.AddEntry("2024-12-31", dec(1_150_000), dec(50_000), dec(50_000), "")
	require.NoError(t, err)

	summary, err := tracker.Summary()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assertDecimal(t, dec(1_150_000), summary.CurrentValue)
	assertDecimal(t, dec(1_000_000), summary.NetInvested) // 1,050,000 in - 50,000 out
	assertDecimal(t, dec(150_000), summary.TotalReturn)
	assertDecimal(t, dec(15), summary.TotalReturnRate)
	assert.Equal(t, 365, summary.PeriodDays)
}

func TestSummary_NonPositiveNetInvestedHasZeroRate(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	_, err := tracker.AddEntry("2024-01-01", dec(500_000), decimal.Zero, dec(100_000), "")
	require.NoError(t, err)

	summary, err := tracker.Summary()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assertDecimal(t, decimal.Zero, summary.TotalReturnRate)
}

func TestEntries_SurviveReload(t *testing.T) {
	dir := t.TempDir()
	_, err := NewTracker(dir).AddEntry("2024-01-05", dec(1_000_000), dec(200_000), decimal.Zero, "CSV取込 (12銘柄)")
	require.NoError(t, err)

	entries, err := NewTracker(dir).Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assertDecimal(t, dec(1_000_000), entries[0].TotalValue)
	assertDecimal(t, dec(200_000), entries[0].Deposit)
	assert.Equal(t, "CSV取込 (12銘柄)", entries[0].Notes)
}
