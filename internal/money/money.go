// Package money centralizes fixed-precision decimal arithmetic so no
// monetary or P/L quantity anywhere in the bot is ever represented as a
// binary float.
package money

import (
	"github.com/shopspring/decimal"
)

// D is the fixed-precision type used for every money, price, and P/L field.
type D = decimal.Decimal

// Zero is the additive identity, exported for readability at call sites.
var Zero = decimal.Zero

// FromFloat constructs a D from a float64. Reserved for values that
// genuinely originate as floats (broker JSON payloads before validation);
// never use this to "fix up" a value already computed in decimal.
func FromFloat(f float64) D {
	return decimal.NewFromFloat(f)
}

// FromString parses a decimal literal, returning an error on malformed input
// rather than silently truncating precision.
func FromString(s string) (D, error) {
	return decimal.NewFromString(s)
}

// Pct multiplies a decimal amount by a fractional percentage (e.g. 0.01 for 1%).
func Pct(amount D, fraction D) D {
	return amount.Mul(fraction)
}

// RoundCents rounds to 2 decimal places, halves away from zero, the
// precision at which trade prices and P/L are persisted.
func RoundCents(d D) D {
	return d.Round(2)
}

// decimal.Decimal already implements json.Marshaler/Unmarshaler using its
// string representation (spec §3: "never binary floats for money or P/L");
// struct fields of type D round-trip losslessly through encoding/json
// without any extra wiring here.
