package parser

import (
	"strconv"
	"time"
)

// Common timestamp layouts ordered by likelihood.
var commonLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseTimestamp parses a timestamp into nanoseconds since epoch.
// layout, when non-empty, is tried before the built-in layouts.
func ParseTimestamp(s, layout string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidTimestamp
	}

	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		if ns, err := parseISO8601(s); err == nil {
			return ns, nil
		}
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixNano(), nil
		}
	}
	for _, l := range commonLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UnixNano(), nil
		}
	}

	if isNumeric(s) {
		return parseNumericTimestamp(s)
	}
	return 0, ErrInvalidTimestamp
}

// parseISO8601 parses YYYY-MM-DD[(T| )hh:mm:ss[.frac][Z|±hh[:]mm]] by direct digit arithmetic.
func parseISO8601(s string) (int64, error) {
	year := parseDigits(s[0:4])
	month := parseDigits(s[5:7])
	day := parseDigits(s[8:10])
	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, ErrInvalidTimestamp
	}

	var hour, minute, second, nsec int
	loc := time.UTC

	if len(s) > 10 {
		if s[10] != 'T' && s[10] != ' ' {
			return 0, ErrInvalidTimestamp
		}
		if len(s) < 19 {
			return 0, ErrInvalidTimestamp
		}
		hour = parseDigits(s[11:13])
		minute = parseDigits(s[14:16])
		second = parseDigits(s[17:19])
		if hour < 0 || minute < 0 || second < 0 {
			return 0, ErrInvalidTimestamp
		}

		i := 19
		if i < len(s) && s[i] == '.' {
			end := i + 1
			for end < len(s) && s[end] >= '0' && s[end] <= '9' {
				end++
			}
			nsec = parseFraction(s[i+1 : end])
			i = end
		}

		if i < len(s) {
			switch s[i] {
			case 'Z':
			case '+', '-':
				rest := s[i+1:]
				if len(rest) < 2 {
					return 0, ErrInvalidTimestamp
				}
				offH := parseDigits(rest[0:2])
				offM := 0
				switch {
				case len(rest) >= 5 && rest[2] == ':':
					offM = parseDigits(rest[3:5])
				case len(rest) >= 4:
					offM = parseDigits(rest[2:4])
				}
				if offH < 0 || offM < 0 {
					return 0, ErrInvalidTimestamp
				}
				offset := offH*3600 + offM*60
				if s[i] == '-' {
					offset = -offset
				}
				loc = time.FixedZone("", offset)
			default:
				return 0, ErrInvalidTimestamp
			}
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, nsec, loc)
	return t.UnixNano(), nil
}

// parseNumericTimestamp treats small values as Excel serial dates and large
// values as unix seconds.
func parseNumericTimestamp(s string) (int64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidTimestamp
	}
	if v > 1 && v < 100000 {
		days := int64(v)
		t := excelEpoch.AddDate(0, 0, int(days))
		if frac := v - float64(days); frac > 0 {
			t = t.Add(time.Duration(frac * 24 * float64(time.Hour)))
		}
		return t.UnixNano(), nil
	}
	return int64(v * 1e9), nil
}

// parseDigits parses an all-digit string, returning -1 on any other byte.
func parseDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// parseFraction parses fractional seconds to nanoseconds.
func parseFraction(s string) int {
	result := 0
	mult := 100000000
	for i := 0; i < len(s) && i < 9; i++ {
		result += int(s[i]-'0') * mult
		mult /= 10
	}
	return result
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && dots == 0:
			dots++
		case c == '-' && i == 0:
		default:
			return false
		}
	}
	return true
}
