package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// cronParser accepts strict five-field expressions (minute, hour, day of
// month, month, day of week). Descriptors like @daily are not accepted.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpression reports whether expr is a valid five-field cron
// expression.
func ValidateCronExpression(expr string) bool {
	_, err := cronParser.Parse(expr)
	return err == nil
}

var weekdayNames = map[string]string{
	"0": "Sunday",
	"1": "Monday",
	"2": "Tuesday",
	"3": "Wednesday",
	"4": "Thursday",
	"5": "Friday",
	"6": "Saturday",
	"7": "Sunday",
}

// DescribeCronExpression produces a best-effort human-readable summary for
// common expression shapes. Anything it cannot recognize is echoed back
// unchanged, including invalid expressions.
func DescribeCronExpression(expr string) string {
	if !ValidateCronExpression(expr) {
		return expr
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	min, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if dom == "*" && month == "*" && dow == "*" {
		switch {
		case min == "*" && hour == "*":
			return "Every minute"
		case strings.HasPrefix(min, "*/") && hour == "*":
			if n, ok := parseStep(min); ok {
				return fmt.Sprintf("Every %d minutes", n)
			}
		case min == "0" && hour == "*":
			return "Every hour"
		case isNumber(min) && hour == "*":
			return fmt.Sprintf("Every hour at minute %s", min)
		case min == "0" && strings.HasPrefix(hour, "*/"):
			if n, ok := parseStep(hour); ok {
				return fmt.Sprintf("Every %d hours", n)
			}
		}
	}

	if !isNumber(min) || !isNumber(hour) {
		return expr
	}
	clock := formatClock(hour, min)

	switch {
	case dom == "*" && month == "*" && dow == "*":
		return fmt.Sprintf("Daily at %s", clock)
	case dom == "*" && month == "*" && dow == "1-5":
		return fmt.Sprintf("Weekdays at %s", clock)
	case dom == "*" && month == "*" && (dow == "0,6" || dow == "6,0"):
		return fmt.Sprintf("Weekends at %s", clock)
	case dom == "*" && month == "*" && isNumber(dow):
		if name, ok := weekdayNames[dow]; ok {
			return fmt.Sprintf("%ss at %s", name, clock)
		}
	case isNumber(dom) && month == "*" && dow == "*":
		return fmt.Sprintf("Monthly on day %s at %s", dom, clock)
	}

	return expr
}

func parseStep(field string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(field, "*/"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func isNumber(field string) bool {
	_, err := strconv.Atoi(field)
	return err == nil
}

// formatClock renders hour/minute fields as a 12-hour clock, e.g. "9:00 AM".
func formatClock(hourField, minField string) string {
	h, _ := strconv.Atoi(hourField)
	m, _ := strconv.Atoi(minField)

	suffix := "AM"
	display := h
	switch {
	case h == 0:
		display = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		display = h - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}
