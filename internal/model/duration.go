package model

import (
	"fmt"
	"strings"

	"github.com/and161185/glucokeeper/internal/errs"
)

// DurationUnit is the unit of a token lifetime.
type DurationUnit string

// Supported token lifetime units.
const (
	UnitDays   DurationUnit = "days"
	UnitMonths DurationUnit = "months"
	UnitYears  DurationUnit = "years"
)

// ParseDurationUnit validates a unit name.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch u := DurationUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitDays, UnitMonths, UnitYears:
		return u, nil
	default:
		return "", fmt.Errorf("duration unit %q: %w", s, errs.ErrInvalidArgument)
	}
}

// TokenDuration is a token lifetime expressed in calendar-ish units.
type TokenDuration struct {
	Amount int
	Unit   DurationUnit
}

// MaxTokenDays caps a token lifetime (100 years of 365 days).
const MaxTokenDays = 100 * 365

// Days converts the duration to a day count. Months count as 30 days and years as 365;
// the conversion is approximate on purpose and ignores calendar lengths. Lifetimes over
// MaxTokenDays are errs.ErrInvalidArgument.
func (d TokenDuration) Days() (int, error) {
	if d.Amount <= 0 {
		return 0, fmt.Errorf("duration amount %d: %w", d.Amount, errs.ErrInvalidArgument)
	}
	var per int
	switch d.Unit {
	case UnitDays:
		per = 1
	case UnitMonths:
		per = 30
	case UnitYears:
		per = 365
	default:
		return 0, fmt.Errorf("duration unit %q: %w", d.Unit, errs.ErrInvalidArgument)
	}
	if d.Amount > MaxTokenDays/per {
		return 0, fmt.Errorf("duration %d %s exceeds %d days: %w", d.Amount, d.Unit, MaxTokenDays, errs.ErrInvalidArgument)
	}
	return d.Amount * per, nil
}
