/*
mapper.go - Upstream record -> MetricsRecord

PURPOSE:
  The open-data source does not fix its field names. Each indicator has an
  ordered list of acceptable upstream keys; the first key present whose value
  is a finite number wins, otherwise the indicator is 0.

ALIAS TABLE:
  Defaults come from the Fields table (types.go). A JSON file of the form

    {"persondays": ["persondays_generated", "persondays"]}

  can replace the list for any indicator without code changes (see
  LoadAliases and FIELD_ALIASES_FILE).

NUMBERS:
  Upstream values arrive as JSON numbers or as numeric strings
  ("123456", "2345.67"). Strings are parsed with shopspring/decimal so no
  locale or float-formatting surprises creep in.

SEE ALSO:
  - types.go: Fields
  - resolver.go: uses Mapper on fresh upstream records, SafeNum on store reads
*/
package mgnrega

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// AliasTable maps a field's JSON name to its upstream key candidates.
type AliasTable map[string][]string

// DefaultAliases returns a fresh copy of the built-in alias lists.
func DefaultAliases() AliasTable {
	t := make(AliasTable, len(Fields))
	for _, f := range Fields {
		t[f.Name] = append([]string(nil), f.Aliases...)
	}
	return t
}

// LoadAliases reads a JSON alias override file and merges it over the
// defaults. Unknown field names are rejected so typos don't go unnoticed.
func LoadAliases(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var overrides AliasTable
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}

	table := DefaultAliases()
	for name, aliases := range overrides {
		if _, ok := FieldByName(name); !ok {
			return nil, fmt.Errorf("alias file: unknown field %q", name)
		}
		table[name] = aliases
	}
	return table, nil
}

// Mapper normalizes raw upstream records.
type Mapper struct {
	aliases AliasTable
}

// NewMapper creates a mapper. A nil table means DefaultAliases.
func NewMapper(aliases AliasTable) *Mapper {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Mapper{aliases: aliases}
}

// Map converts one raw record. Missing or non-numeric fields become 0.
func (m *Mapper) Map(raw map[string]any) MetricsRecord {
	var out MetricsRecord
	for _, f := range Fields {
		*f.ref(&out) = FirstNumber(raw, m.aliases[f.Name])
	}
	return out
}

// FirstNumber returns the value of the first key present in src whose value
// is a finite number, or 0.
func FirstNumber(src map[string]any, keys []string) float64 {
	for _, k := range keys {
		v, ok := src[k]
		if !ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			return n
		}
	}
	return 0
}

// SafeNum coerces anything to a finite float: nil, garbage and non-finite
// values become 0.
func SafeNum(v any) float64 {
	n, ok := toNumber(v)
	if !ok {
		return 0
	}
	return n
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	case []byte:
		return parseDecimal(string(x))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
