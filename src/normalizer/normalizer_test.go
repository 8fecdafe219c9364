package normalizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/username/kabufolio/src/formats"
	"github.com/username/kabufolio/src/models"
)

const sbiHoldingsCSV = "評価日,銘柄コード,銘柄名,保有数量,基準価格,評価額,評価損益,評価損益率\n" +
	"2024/01/05,1306,ＴＯＰＩＸ連動型上場投資信託,100,\"2,150\",\"￥215,000\",\"￥15,000\",7.5%\n" +
	"2024/01/05,8306,三菱ＵＦＪフィナンシャル・グループ,200,1250,\"￥250,000\",\"-￥10,000\",-3.8%\n"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sbiLayout(t *testing.T) *formats.Layout {
	t.Helper()
	l, ok := formats.NewDefaultRegistry().Layout("sbi_portfolio")
	require.True(t, ok)
	return l
}

func TestDecodeFile_UTF8(t *testing.T) {
	path := writeFile(t, "assetbalance.csv", []byte(sbiHoldingsCSV))
	decoded, enc, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Equal(t, sbiHoldingsCSV, decoded)
}

func TestDecodeFile_ShiftJIS(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(sbiHoldingsCSV))
	require.NoError(t, err)

	path := writeFile(t, "assetbalance.csv", sjis)
	decoded, enc, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shift_jis", enc)
	assert.Equal(t, sbiHoldingsCSV, decoded)
}

func TestDecodeFile_UTF8BOM(t *testing.T) {
	path := writeFile(t, "assetbalance.csv", append([]byte{0xEF, 0xBB, 0xBF}, sbiHoldingsCSV...))
	decoded, enc, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "utf-8-sig", enc)
	assert.Equal(t, sbiHoldingsCSV, decoded)
}

func TestDecodeFile_AllCandidatesFail(t *testing.T) {
	path := writeFile(t, "garbage.csv", []byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, _, err := DecodeFile(path)
	assert.True(t, errors.Is(err, ErrEncoding))
}

func TestCleanNumeric_Idempotent(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"¥215,000", "215000"},
		{"￥100", "100"},
		{"7.5%", "7.5"},
		{"-3.8％", "-3.8"},
		{"1250", "1250"},
		{" 42 ", "42"},
	}
	for _, tt := range tests {
		cleaned := CleanNumeric(tt.raw)
		assert.Equal(t, tt.want, cleaned)
		// Cleaning an already clean value changes nothing.
		assert.Equal(t, cleaned, CleanNumeric(cleaned))
	}
}

func TestParseNumber_NullOnFailure(t *testing.T) {
	assert.Nil(t, ParseNumber(""))
	assert.Nil(t, ParseNumber("-"))
	assert.Nil(t, ParseNumber("取得中"))
	v := ParseNumber("¥1,234.5")
	require.NotNil(t, v)
	assert.InDelta(t, 1234.5, *v, 1e-9)
}

func TestParseDate_FormatsAndNull(t *testing.T) {
	for _, raw := range []string{"2024-01-05", "2024/01/05", "2024/1/5", "2024年1月5日", "20240105"} {
		d := ParseDate(raw)
		require.NotNil(t, d, raw)
		assert.Equal(t, "2024-01-05", d.Format("2006-01-02"))
	}
	assert.Nil(t, ParseDate("invalid"))
	assert.Nil(t, ParseDate(""))
}

func TestNormalize_SBIHoldings(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(sbiHoldingsCSV))
	require.NoError(t, err)
	path := writeFile(t, "assetbalance.csv", sjis)

	table, err := Normalize(path, sbiLayout(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		models.ColDate, models.ColSymbol, models.ColName, models.ColQuantity,
		models.ColUnitPrice, models.ColMarketValue, models.ColGainLoss, models.ColGainLossRate,
	}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	require.NotNil(t, first.Date)
	assert.Equal(t, "2024-01-05", first.Date.Format("2006-01-02"))
	assert.Equal(t, "1306", first.Symbol)
	require.NotNil(t, first.MarketValue)
	assert.InDelta(t, 215000, *first.MarketValue, 1e-9)
	require.NotNil(t, first.GainLossRate)
	assert.InDelta(t, 7.5, *first.GainLossRate, 1e-9)

	second := table.Rows[1]
	require.NotNil(t, second.GainLoss)
	assert.InDelta(t, -10000, *second.GainLoss, 1e-9)
}

func TestNormalize_BadCellsBecomeNullNotErrors(t *testing.T) {
	csvData := "評価日,銘柄コード,銘柄名,保有数量,評価額\n" +
		"不明な日付,1306,テスト銘柄,100,取得中\n"
	path := writeFile(t, "assetbalance.csv", []byte(csvData))

	table, err := Normalize(path, sbiLayout(t))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.Nil(t, row.Date)
	assert.Nil(t, row.MarketValue) // failed parse is null, never zero
	require.NotNil(t, row.Quantity)
	assert.InDelta(t, 100, *row.Quantity, 1e-9)

	// The row survives; a sum over the table must skip the null cell.
	sum, counted := table.SumMarketValue()
	assert.Zero(t, sum)
	assert.Zero(t, counted)
}

func TestNormalize_UnmatchedColumnsAreOmitted(t *testing.T) {
	csvData := "銘柄コード,銘柄名,評価額\n1306,テスト銘柄,\"¥215,000\"\n"
	path := writeFile(t, "assetbalance.csv", []byte(csvData))

	table, err := Normalize(path, sbiLayout(t))
	require.NoError(t, err)
	assert.Equal(t, []string{models.ColSymbol, models.ColName, models.ColMarketValue}, table.Columns)
	assert.False(t, table.HasColumn(models.ColDate))
}

func TestNormalize_EmptyFileIsConversionError(t *testing.T) {
	path := writeFile(t, "assetbalance.csv", nil)
	_, err := Normalize(path, sbiLayout(t))
	assert.True(t, errors.Is(err, ErrConversion))
}

func TestReadHeader(t *testing.T) {
	path := writeFile(t, "assetbalance.csv", []byte(sbiHoldingsCSV))
	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "評価日", header[0])
	assert.Len(t, header, 8)
}
