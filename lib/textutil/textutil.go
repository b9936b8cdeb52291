package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var moneyRegex = regexp.MustCompile(`\$?([\d]+(?:\.\d{1,2})?)`)
var moneyRangeRegex = regexp.MustCompile(`\$([\d,.]+)\s*[-–]\s*\$([\d,.]+)`)
var intRegex = regexp.MustCompile(`(\d+)`)

// ParseMoney extracts a numeric dollar amount from text like "$1,500.00".
// Returns false when no amount is present.
func ParseMoney(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	match := moneyRegex.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseMoneyRange extracts a "$30.00-$45.00" style range.
func ParseMoneyRange(text string) (min, max float64, ok bool) {
	match := moneyRangeRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, 0, false
	}
	min, errMin := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	max, errMax := strconv.ParseFloat(strings.ReplaceAll(match[2], ",", ""), 64)
	if errMin != nil || errMax != nil {
		return 0, 0, false
	}
	return min, max, true
}

// ParseInt extracts the first integer from text like "15 proposals".
func ParseInt(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	match := intRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
