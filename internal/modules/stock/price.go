package stock

import (
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice extracts a positive unit price from text such as "1 234,50 kr".
// The last of ',' and '.' is the decimal separator. It reports false when no
// positive number can be read.
func ParsePrice(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r), r == ',', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == ' ':
			// thousands separator
		default:
			if b.Len() > 0 {
				goto done
			}
		}
	}
done:
	s := strings.Trim(b.String(), ",.")
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
