package numeric

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidFormat reports input that cannot be read as a decimal amount.
var ErrInvalidFormat = errors.New("invalid format")

// Bounds on an expanded scientific value: a uint256 has at most 78 digits and
// token decimals never exceed 255.
const (
	maxIntegerDigits  = 78
	maxFractionDigits = 255
)

// NormalizeDecimalString strips whitespace and thousands separators and
// expands scientific notation into a plain decimal string.
//
// Non-scientific input is returned as-is once cleaned. Empty input yields "".
func NormalizeDecimalString(raw string) (string, error) {
	cleaned := stripSeparators(raw)
	if cleaned == "" {
		return "", nil
	}

	idx := strings.IndexAny(cleaned, "eE")
	if idx < 0 {
		return cleaned, nil
	}

	return expandScientific(cleaned[:idx], cleaned[idx+1:])
}

func stripSeparators(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == ',' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// expandScientific shifts the mantissa digits by the exponent without
// going through floating point.
func expandScientific(mantissa, exponent string) (string, error) {
	if exponent == "" {
		return "", fmt.Errorf("%w: missing exponent", ErrInvalidFormat)
	}
	exp, err := strconv.Atoi(exponent)
	if err != nil {
		return "", fmt.Errorf("%w: exponent %q", ErrInvalidFormat, exponent)
	}

	sign := ""
	switch {
	case strings.HasPrefix(mantissa, "-"):
		sign = "-"
		mantissa = mantissa[1:]
	case strings.HasPrefix(mantissa, "+"):
		mantissa = mantissa[1:]
	}

	intPart, fracPart, err := splitDigits(mantissa)
	if err != nil {
		return "", err
	}

	digits := intPart + fracPart
	if strings.Trim(digits, "0") == "" {
		return "0", nil
	}

	if exp > maxIntegerDigits+len(digits) || exp < -(maxFractionDigits+len(intPart)) {
		return "", fmt.Errorf("%w: exponent %d out of range", ErrInvalidFormat, exp)
	}
	point := len(intPart) + exp
	lead := len(digits) - len(strings.TrimLeft(digits, "0"))
	if point-lead > maxIntegerDigits {
		return "", fmt.Errorf("%w: more than %d integer digits", ErrInvalidFormat, maxIntegerDigits)
	}
	if point < -maxFractionDigits {
		return "", fmt.Errorf("%w: exponent %d out of range", ErrInvalidFormat, exp)
	}

	var out string
	switch {
	case point <= 0:
		out = "0." + strings.Repeat("0", -point) + digits
	case point >= len(digits):
		out = digits + strings.Repeat("0", point-len(digits))
	default:
		out = digits[:point] + "." + digits[point:]
	}

	return sign + trimZeros(out), nil
}

// splitDigits splits "123.45" into "123" and "45", requiring at least one digit.
func splitDigits(value string) (string, string, error) {
	intPart, fracPart, _ := strings.Cut(value, ".")
	if intPart == "" && fracPart == "" {
		return "", "", fmt.Errorf("%w: no digits in %q", ErrInvalidFormat, value)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", "", fmt.Errorf("%w: %q is not a decimal number", ErrInvalidFormat, value)
	}
	return intPart, fracPart, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func trimZeros(value string) string {
	intPart, fracPart, hasFrac := strings.Cut(value, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if !hasFrac {
		return intPart
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// ToBaseUnits converts a user-supplied decimal string into an exact integer
// amount in the token's smallest unit. Fractional digits beyond decimals are
// truncated. Empty input is zero.
func ToBaseUnits(raw string, decimals uint8) (*big.Int, error) {
	normalized, err := NormalizeDecimalString(raw)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return big.NewInt(0), nil
	}

	if strings.HasPrefix(normalized, "-") {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidFormat, raw)
	}
	normalized = strings.TrimPrefix(normalized, "+")

	intPart, fracPart, err := splitDigits(normalized)
	if err != nil {
		return nil, err
	}

	scale := int(decimals)
	if len(fracPart) > scale {
		fracPart = fracPart[:scale]
	} else {
		fracPart += strings.Repeat("0", scale-len(fracPart))
	}

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return big.NewInt(0), nil
	}

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return value, nil
}

// SafeToBaseUnits is ToBaseUnits for UI-facing paths: any parse failure
// yields zero.
func SafeToBaseUnits(raw string, decimals uint8) *big.Int {
	value, err := ToBaseUnits(raw, decimals)
	if err != nil {
		return big.NewInt(0)
	}
	return value
}

// FormatUnits renders a base-unit amount as a decimal string without
// trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := trimZeros(rat.FloatString(int(decimals)))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// ToFloat converts a base-unit amount into a float64 in human units.
func ToFloat(value *big.Int, decimals uint8) float64 {
	if value == nil {
		return 0
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f, _ := new(big.Rat).SetFrac(value, denom).Float64()
	return f
}
