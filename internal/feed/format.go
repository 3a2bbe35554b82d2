package feed

import (
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"
)

// FormatUptime renders an uptime in milliseconds with one decimal and the
// largest unit whose rounded value stays under 60 (seconds, minutes) or 24
// (hours), falling back to days. The thresholds compare the rounded text, so
// 59999ms renders as "1.0 Min", not "60.0 Sec".
func FormatUptime(ms float64) string {
	seconds := toFixed1(ms / 1000)
	minutes := toFixed1(ms / (1000 * 60))
	hours := toFixed1(ms / (1000 * 60 * 60))
	days := toFixed1(ms / (1000 * 60 * 60 * 24))

	switch {
	case below(seconds, 60):
		return seconds + " Sec"
	case below(minutes, 60):
		return minutes + " Min"
	case below(hours, 24):
		return hours + " Hrs"
	default:
		return days + " Days"
	}
}

var (
	ten  = big.NewRat(10, 1)
	half = big.NewRat(1, 2)
)

// toFixed1 renders v with one decimal. It rounds the exact binary value of v,
// so 0.15 (stored just below) gives "0.1", and an exact tie rounds up in
// magnitude, so 0.25 gives "0.3".
func toFixed1(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.Abs(v) >= 1e21:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	scaled := new(big.Rat).SetFloat64(v)
	scaled.Mul(scaled, ten)
	n := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	frac := new(big.Rat).Sub(scaled, new(big.Rat).SetInt(n))
	if frac.Cmp(half) >= 0 {
		n.Add(n, big.NewInt(1))
	}
	digits := n.String()
	if len(digits) < 2 {
		digits = "0" + digits
	}
	return sign + digits[:len(digits)-1] + "." + digits[len(digits)-1:]
}

// below compares rendered text the way a numeric comparison against a string
// would: text that is not a number is never below.
func below(text string, limit float64) bool {
	v, err := strconv.ParseFloat(text, 64)
	return err == nil && v < limit
}

// StreamURL derives the push-stream URL from the page origin: http becomes ws,
// https becomes wss.
func StreamURL(origin, path string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
