package driver

import (
	"strconv"
	"strings"
)

// Text forms of process values as exchanged with HMI clients.

func FormatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// FormatBools joins the values with commas, in order.
func FormatBools(vs []bool) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = FormatBool(v)
	}
	return strings.Join(parts, ",")
}

func FormatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatReal uses the shortest of %e and %f with 6 significant digits.
func FormatReal(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}

// ParseBool accepts 1/0 and the forms of strconv.ParseBool.
func ParseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}

// ParseUint parses a decimal value that must fit in bits.
func ParseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, bits)
}

func ParseInt(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	return int32(v), err
}

func ParseReal(s string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	return float32(v), err
}
