package types

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scalar is a JSON value reduced to the text shown in a table cell or readout.
// Strings are kept verbatim, numbers use their shortest decimal form, null and
// missing values are empty.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0 || string(raw) == "null":
		*s = ""
	case raw[0] == '"':
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case string(raw) == "true" || string(raw) == "false":
		*s = Scalar(raw)
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		*s = Scalar(formatNumber(string(raw)))
	default:
		*s = Scalar(raw)
	}
	return nil
}

// String returns the display text.
func (s Scalar) String() string {
	return string(s)
}

// Float parses the scalar as a number. Unparseable values return NaN and false.
func (s Scalar) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}

func formatNumber(text string) string {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	return FormatNumber(f)
}

// FormatNumber renders f the way a browser stringifies a number: integral
// values without a fraction, exponent notation only for very large or tiny values.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
