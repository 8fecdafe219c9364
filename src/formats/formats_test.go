package formats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_FilenameHeuristicWinsOutright(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"sbi english name", "/tmp/AssetBalance_20240105.csv", "sbi_portfolio"},
		{"sbi japanese name", "/tmp/資産残高一覧.csv", "sbi_portfolio"},
		{"sbi trading name", "/tmp/trading_history.csv", "sbi_trading"},
		{"sbi trading japanese", "/tmp/取引履歴2024.csv", "sbi_trading"},
		{"rakuten name", "/tmp/保有商品一覧.csv", "rakuten_portfolio"},
		{"rakuten english", "/tmp/my_portfolio.csv", "rakuten_portfolio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Header content is irrelevant when the filename matches.
			layout, err := r.Detect(tt.path, []string{"completely", "unrelated", "header"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, layout.Name)
		})
	}
}

func TestDetect_HeaderHeuristicNeedsThreeMatches(t *testing.T) {
	r := NewDefaultRegistry()

	// Three alias-matching canonical columns: symbol, name, quantity.
	layout, err := r.Detect("/tmp/mystery.csv", []string{"銘柄コード", "銘柄名", "保有数量"})
	require.NoError(t, err)
	assert.Equal(t, "sbi_portfolio", layout.Name)

	// Two matches are not enough for any layout.
	_, err = r.Detect("/tmp/mystery.csv", []string{"銘柄コード", "銘柄名", "何か別の列"})
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestDetect_RegistrationOrderBreaksTies(t *testing.T) {
	r := NewDefaultRegistry()

	// 銘柄コード/銘柄名/数量 reach the threshold for both SBI layouts; the
	// first registered one wins, there is no best-score search.
	layout, err := r.Detect("/tmp/mystery.csv", []string{"約定日", "銘柄コード", "銘柄名", "数量"})
	require.NoError(t, err)
	assert.Equal(t, "sbi_portfolio", layout.Name)
}

func TestDetect_UnknownWithoutHeader(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Detect("/tmp/mystery.csv", nil)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestDetect_AliasSubstringContainment(t *testing.T) {
	r := NewDefaultRegistry()

	// Vendors decorate headers; containment still binds them.
	layout, err := r.Detect("/tmp/mystery.csv", []string{"銘柄コード(4桁)", "銘柄名称欄:銘柄名", "保有数量(口)", "評価額(円)"})
	require.NoError(t, err)
	assert.Equal(t, "sbi_portfolio", layout.Name)
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := NewDefaultRegistry()
	dup := r.Layouts()[0]
	err := r.Register(dup)
	assert.Error(t, err)
}

func TestHeaderMatchCount_CountsCanonicalColumnsOnce(t *testing.T) {
	r := NewDefaultRegistry()
	l, ok := r.Layout("sbi_portfolio")
	require.True(t, ok)

	// Two header cells matching the same canonical column count once.
	assert.Equal(t, 1, l.HeaderMatchCount([]string{"銘柄コード", "Symbol"}))
}
