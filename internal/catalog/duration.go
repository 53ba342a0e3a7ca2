package catalog

import (
	"fmt"
	"time"

	"pricebook/internal/types"
)

// unlimitedYears is how far an UNLIMITED duration reaches. Date arithmetic
// stays total by treating "forever" as a large finite offset.
const unlimitedYears = 100

// NoNumber marks the absent count of an UNLIMITED duration.
const NoNumber = -1

// Duration is a calendar span: a unit and a count. An UNLIMITED duration has
// no count (Number == NoNumber).
type Duration struct {
	Unit   types.TimeUnit `json:"unit" yaml:"unit"`
	Number int            `json:"number" yaml:"number"`
}

// NewDuration returns a bounded duration of n units.
func NewDuration(unit types.TimeUnit, n int) Duration {
	return Duration{Unit: unit, Number: n}
}

// Unlimited returns the UNLIMITED duration.
func Unlimited() Duration {
	return Duration{Unit: types.UnitUnlimited, Number: NoNumber}
}

// IsUnlimited reports whether d never ends.
func (d Duration) IsUnlimited() bool {
	return d.Unit == types.UnitUnlimited
}

// AddTo returns t shifted forward by d. Month and year arithmetic follows
// time.AddDate normalization.
func (d Duration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case types.UnitDays:
		return t.AddDate(0, 0, d.Number)
	case types.UnitWeeks:
		return t.AddDate(0, 0, 7*d.Number)
	case types.UnitMonths:
		return t.AddDate(0, d.Number, 0)
	case types.UnitYears:
		return t.AddDate(d.Number, 0, 0)
	default:
		return t.AddDate(unlimitedYears, 0, 0)
	}
}

func (d Duration) String() string {
	if d.IsUnlimited() {
		return string(types.UnitUnlimited)
	}
	return fmt.Sprintf("%d %s", d.Number, d.Unit)
}

// validate checks the unit/count invariant. owner names the phase the duration
// belongs to.
func (d Duration) validate(owner string) ValidationErrors {
	var errs ValidationErrors
	if !d.Unit.IsValid() {
		errs.Add(kindDuration, owner, "unknown time unit '%s'", d.Unit)
		return errs
	}
	if d.IsUnlimited() {
		if d.Number != NoNumber {
			errs.Add(kindDuration, owner, "UNLIMITED duration must not have a number, got %d", d.Number)
		}
		return errs
	}
	if d.Number < 0 {
		errs.Add(kindDuration, owner, "duration number must not be negative, got %d", d.Number)
	}
	return errs
}
