package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reNumberToken    = regexp.MustCompile(`(?:^|[^0-9.,])(\d{1,3}(?:[\s.]\d{3})+|\d+(?:[.,]\d+)?)`)
	reThousandsDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// ParseDecimal parses a numeric token that may use a comma decimal separator
// ("27,5") or Norwegian thousands grouping ("1.700", "1 700"). Returns false
// when the token does not reduce to a number.
func ParseDecimal(token string) (float64, bool) {
	compact := strings.ReplaceAll(token, " ", "")
	compact = strings.ReplaceAll(compact, " ", "")
	if compact == "" {
		return 0, false
	}
	switch {
	case reThousandsDot.MatchString(compact):
		compact = strings.ReplaceAll(compact, ".", "")
	case reThousandsComma.MatchString(compact):
		compact = strings.ReplaceAll(compact, ",", "")
	case strings.Contains(compact, ",") && !strings.Contains(compact, "."):
		compact = strings.ReplaceAll(compact, ",", ".")
	}
	v, err := strconv.ParseFloat(compact, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseQuantity pulls a count out of a quantity cell ("2", "2 stk", "2,0").
// Returns nil when the cell holds no parseable number.
func ParseQuantity(input string) *float64 {
	line := strings.ReplaceAll(input, " ", " ")
	m := reNumberToken.FindStringSubmatch(line)
	if len(m) < 2 {
		return nil
	}
	if v, ok := ParseDecimal(strings.TrimSpace(m[1])); ok {
		return FloatPtr(v)
	}
	return nil
}
