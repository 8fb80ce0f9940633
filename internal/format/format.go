// Package format renders market figures the way the terminal client shows
// them: en-US grouping, dollar prefix, and T/B/M suffixes for large values.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Price uses two fraction digits at or above 1000, up to four at or above 1,
// and up to eight below that.
func Price(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	abs := math.Abs(v)
	maxFrac := 8
	switch {
	case abs >= 1000:
		maxFrac = 2
	case abs >= 1:
		maxFrac = 4
	}
	return sign(v) + "$" + decimal(abs, 2, maxFrac)
}

// MarketCap is Number with a dollar prefix.
func MarketCap(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return sign(v) + "$" + Number(math.Abs(v))
}

// Number abbreviates values of a million or more to two decimals with a
// T, B or M suffix. Smaller values keep up to three fraction digits.
func Number(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%s%.2fT", sign(v), abs/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%s%.2fB", sign(v), abs/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%s%.2fM", sign(v), abs/1e6)
	default:
		return sign(v) + decimal(abs, 0, 3)
	}
}

// Percent always carries a sign so direction is readable without color.
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v)
}

func decimal(v float64, minFrac, maxFrac int) string {
	return printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(minFrac),
		number.MaxFractionDigits(maxFrac),
	))
}

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return ""
}
