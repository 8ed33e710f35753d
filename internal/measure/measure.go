// Package measure implements the value+unit model used by the inventory
// ledger and recipes. Conversion is defined only within a compatibility
// class (mass, volume, count); cross-class operations report failure rather
// than producing a wrong number.
package measure

import (
	"errors"
	"fmt"
)

// ErrIncompatibleUnits is returned when converting between units of
// different compatibility classes (e.g. gram to milliliter).
var ErrIncompatibleUnits = errors.New("incompatible units")

// Unit is a measurement unit.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMilliliter Unit = "ml"
	UnitLiter      Unit = "l"
	UnitPiece      Unit = "pcs"
)

// class partitions units into compatibility classes.
type class int

const (
	classMass class = iota
	classVolume
	classCount
	classUnknown
)

func unitClass(u Unit) class {
	switch u {
	case UnitGram, UnitKilogram:
		return classMass
	case UnitMilliliter, UnitLiter:
		return classVolume
	case UnitPiece:
		return classCount
	}
	return classUnknown
}

// baseFactor is the multiplier from a unit to its class base unit
// (gram, milliliter, piece).
func baseFactor(u Unit) float64 {
	switch u {
	case UnitKilogram, UnitLiter:
		return 1000
	default:
		return 1
	}
}

// ParseUnit validates a unit string from external input.
func ParseUnit(s string) (Unit, error) {
	u := Unit(s)
	if unitClass(u) == classUnknown {
		return "", fmt.Errorf("unknown unit %q", s)
	}
	return u, nil
}

// Measurement is a non-negative amount in a given unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// New builds a Measurement, clamping negative values to zero.
func New(value float64, unit Unit) Measurement {
	if value < 0 {
		value = 0
	}
	return Measurement{Value: value, Unit: unit}
}

// Convert returns m expressed in the target unit. Units of different
// compatibility classes do not convert.
func (m Measurement) Convert(to Unit) (Measurement, error) {
	fromClass, toClass := unitClass(m.Unit), unitClass(to)
	if fromClass == classUnknown || toClass == classUnknown || fromClass != toClass {
		return Measurement{}, fmt.Errorf("%w: %s to %s", ErrIncompatibleUnits, m.Unit, to)
	}
	if m.Unit == to {
		return m, nil
	}
	return Measurement{
		Value: m.Value * baseFactor(m.Unit) / baseFactor(to),
		Unit:  to,
	}, nil
}

// Add returns m + other in m's unit.
func (m Measurement) Add(other Measurement) (Measurement, error) {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return Measurement{}, err
	}
	return New(m.Value+conv.Value, m.Unit), nil
}

// Sub returns m - other in m's unit, clamped at zero.
func (m Measurement) Sub(other Measurement) (Measurement, error) {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return Measurement{}, err
	}
	return New(m.Value-conv.Value, m.Unit), nil
}

// MulScalar returns m scaled by k, clamped at zero for negative k.
func (m Measurement) MulScalar(k float64) Measurement {
	return New(m.Value*k, m.Unit)
}

// Comparisons convert the right operand into the left operand's unit first.
// When conversion is impossible they return false in both directions; callers
// that need to distinguish "cannot compare" must call Convert themselves.

func (m Measurement) Less(other Measurement) bool {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return false
	}
	return m.Value < conv.Value
}

func (m Measurement) LessEq(other Measurement) bool {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return false
	}
	return m.Value <= conv.Value
}

func (m Measurement) Greater(other Measurement) bool {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return false
	}
	return m.Value > conv.Value
}

func (m Measurement) GreaterEq(other Measurement) bool {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return false
	}
	return m.Value >= conv.Value
}

func (m Measurement) Equal(other Measurement) bool {
	conv, err := other.Convert(m.Unit)
	if err != nil {
		return false
	}
	return m.Value == conv.Value
}

func (m Measurement) String() string {
	return fmt.Sprintf("%g %s", m.Value, m.Unit)
}
