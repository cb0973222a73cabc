package mgnrega

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_FirstAliasWins(t *testing.T) {
	raw := map[string]any{
		"persondays_of_central_liability_so_far": "1500",
		"persondays_generated":                   9999.0,
	}
	got := NewMapper(nil).Map(raw)
	assert.Equal(t, 1500.0, got.Persondays)
}

func TestMap_SecondAliasOnly(t *testing.T) {
	// Every field, fed only its second alias, maps that value.
	for _, f := range Fields {
		if len(f.Aliases) < 2 {
			continue
		}
		raw := map[string]any{f.Aliases[1]: "42.5"}
		got := NewMapper(nil).Map(raw)
		v, ok := got.Value(f.Name)
		require.True(t, ok)
		assert.Equal(t, 42.5, v, f.Name)
	}
}

func TestMap_NoAliasIsZero(t *testing.T) {
	got := NewMapper(nil).Map(map[string]any{"unrelated": 5})
	assert.Equal(t, MetricsRecord{}, got)

	got = NewMapper(nil).Map(nil)
	assert.Equal(t, MetricsRecord{}, got)
}

func TestMap_SkipsNonNumericAliasAndFallsThrough(t *testing.T) {
	raw := map[string]any{
		"total_households_worked": "n/a",
		"no_of_households_worked": json.Number("321"),
	}
	got := NewMapper(nil).Map(raw)
	assert.Equal(t, 321.0, got.HouseholdsWorked)
}

func TestMap_CustomAliasTable(t *testing.T) {
	table := DefaultAliases()
	table["persondays"] = []string{"pd"}

	got := NewMapper(table).Map(map[string]any{"pd": 7, "persondays_generated": 100})
	assert.Equal(t, 7.0, got.Persondays)
}

func TestFirstNumber(t *testing.T) {
	src := map[string]any{"a": nil, "b": math.Inf(1), "c": " 12.25 ", "d": 3}
	assert.Equal(t, 12.25, FirstNumber(src, []string{"a", "b", "c", "d"}))
	assert.Equal(t, 3.0, FirstNumber(src, []string{"missing", "d"}))
	assert.Zero(t, FirstNumber(src, []string{"a", "b"}))
	assert.Zero(t, FirstNumber(src, nil))
}

func TestSafeNum(t *testing.T) {
	for _, v := range []any{nil, "abc", math.NaN(), math.Inf(1), math.Inf(-1), "", "NaN", "Infinity", struct{}{}} {
		assert.Zero(t, SafeNum(v), "%#v", v)
	}

	for _, v := range []float64{0, 1, -3.5, 1e9, 0.001} {
		assert.Equal(t, v, SafeNum(v))
	}
	assert.Equal(t, 12.0, SafeNum("12"))
	assert.Equal(t, 7.0, SafeNum(int64(7)))
	assert.Equal(t, 2.5, SafeNum(json.Number("2.5")))
	assert.Equal(t, -4.0, SafeNum("-4"), "negative values are not validated beyond finiteness")
}

func TestSanitized(t *testing.T) {
	m := MetricsRecord{Persondays: math.NaN(), HouseholdsWorked: 5, WageExpenditure: math.Inf(1)}
	s := m.Sanitized()
	assert.Zero(t, s.Persondays)
	assert.Equal(t, 5.0, s.HouseholdsWorked)
	assert.Zero(t, s.WageExpenditure)
	assert.True(t, math.IsNaN(m.Persondays), "original untouched")
}

func TestFields_UniqueNamesAndColumns(t *testing.T) {
	names := map[string]bool{}
	cols := map[string]bool{}
	for _, f := range Fields {
		assert.False(t, names[f.Name], "duplicate name %s", f.Name)
		assert.False(t, cols[f.Column], "duplicate column %s", f.Column)
		assert.NotEmpty(t, f.Aliases, f.Name)
		names[f.Name] = true
		cols[f.Column] = true
	}

	// JSON names in the table match the struct tags.
	data, err := json.Marshal(MetricsRecord{})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, len(Fields))
	for name := range names {
		assert.Contains(t, decoded, name)
	}
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"wageExpenditure": ["wage_exp_lakhs"]}`), 0o600))

	table, err := LoadAliases(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"wage_exp_lakhs"}, table["wageExpenditure"])
	assert.Equal(t, DefaultAliases()["persondays"], table["persondays"], "untouched fields keep defaults")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"wageExpenditur": ["x"]}`), 0o600))
	_, err = LoadAliases(bad)
	assert.Error(t, err)

	_, err = LoadAliases(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
