package mgnrega

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD KEY - financial year + short month name
// =============================================================================

// FiscalYearStartMonth is the first month of the program's financial year.
const FiscalYearStartMonth = time.April

// PeriodKey addresses one persisted month: FinYear "2024-2025", Month "Dec".
type PeriodKey struct {
	FinYear string
	Month   string
}

func (k PeriodKey) String() string {
	return k.FinYear + "-" + k.Month
}

// shortMonths is fixed to English short names so the key never depends on
// the host locale.
var shortMonths = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// ToPeriodKey converts a calendar (month, year) to the persisted-store key.
func ToPeriodKey(month, year int) (PeriodKey, error) {
	if err := validateMonth(month); err != nil {
		return PeriodKey{}, err
	}
	if year <= 0 {
		return PeriodKey{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return PeriodKey{FinYear: FinYear(month, year), Month: MonthName(month)}, nil
}

// FinYear returns "{year}-{year+1}" for April onwards, "{year-1}-{year}"
// for January to March.
func FinYear(month, year int) string {
	if month >= int(FiscalYearStartMonth) {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// MonthName returns the short name for month 1-12, or "" if out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return shortMonths[month-1]
}

// MonthNumber is the exact inverse of MonthName.
func MonthNumber(name string) (int, error) {
	for i, m := range shortMonths {
		if m == name {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMonthName, name)
}

// ParseFinYear returns the starting year of "2023-2024".
func ParseFinYear(finYear string) (int, error) {
	start, end, ok := strings.Cut(finYear, "-")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFinYear, finYear)
	}
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFinYear, finYear)
	}
	e, err := strconv.Atoi(end)
	if err != nil || e != s+1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFinYear, finYear)
	}
	return s, nil
}

// CalendarYear returns the calendar year in which month of finYear falls.
// Jan-Mar belong to the second year of the financial year.
func CalendarYear(finYear string, month int) (int, error) {
	start, err := ParseFinYear(finYear)
	if err != nil {
		return 0, err
	}
	if month < int(FiscalYearStartMonth) {
		return start + 1, nil
	}
	return start, nil
}

// PeriodOrdinal orders calendar months numerically.
func PeriodOrdinal(year, month int) int {
	return year*12 + month - 1
}

// KeyOrdinal is PeriodOrdinal for a persisted key.
func KeyOrdinal(k PeriodKey) (int, error) {
	m, err := MonthNumber(k.Month)
	if err != nil {
		return 0, err
	}
	y, err := CalendarYear(k.FinYear, m)
	if err != nil {
		return 0, err
	}
	return PeriodOrdinal(y, m), nil
}

func validateMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return nil
}
