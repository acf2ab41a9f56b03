// Package core provides the savings ledger model and money handling.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between minor units and their display representation.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	maxMajorUnits = decimal.New(1, 15)
	idPrinter     = message.NewPrinter(language.Indonesian)
)

// ParseDecimalToCents converts a decimal string to minor units with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. The result is
// always positive. Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents, user input should not
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThan(maxMajorUnits) {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney is ParseDecimalToCents wrapped in a Money.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// FromMajor builds a Money from whole currency units.
func FromMajor(units int64) Money {
	return Money{Cents: units * 100}
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Decimal returns the exact major-unit value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Major returns the value in whole currency units as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Major() float64 {
	return m.Decimal().InexactFloat64()
}

// String formats the amount as Indonesian Rupiah without fraction digits,
// for example "Rp 1.500.000".
func (m Money) String() string {
	units := m.Decimal().Round(0).IntPart()
	if units < 0 {
		return idPrinter.Sprintf("-Rp %d", -units)
	}
	return idPrinter.Sprintf("Rp %d", units)
}

// MarshalJSON writes the amount as a plain JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = d.Round(2).Shift(2).IntPart()
	return nil
}
