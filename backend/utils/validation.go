package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// ParseViewParams reads top, offset and cohort from the query string. Any
// invalid value is reported in the returned details keyed by parameter.
func ParseViewParams(c *fiber.Ctx) (views.Params, map[string]string) {
	var p views.Params
	details := make(map[string]string)

	if v := c.Query("top"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			details["top"] = "must be an integer"
		case n < 1 || n > config.MaxTopN:
			details["top"] = "must be between 1 and " + strconv.Itoa(config.MaxTopN)
		default:
			p.Top = n
		}
	}
	if v := c.Query("offset"); v != "" {
		n, msg := ParseOffset(v)
		if msg != "" {
			details["offset"] = msg
		}
		p.Offset = views.OffsetOf(n)
	}
	if v := c.Query("cohort"); v != "" {
		m, msg := ParseCohort(v)
		if msg != "" {
			details["cohort"] = msg
		}
		p.Cohort = m
	}

	if len(details) == 0 {
		return p, nil
	}
	return p, details
}

// ParseOffset accepts a non-negative month offset.
func ParseOffset(s string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, "must be a non-negative integer"
	}
	return n, ""
}

func ParseCohort(s string) (cohort.Month, string) {
	m, err := cohort.ParseMonth(strings.TrimSpace(s))
	if err != nil {
		return 0, "must be a month formatted YYYY-MM"
	}
	return m, ""
}
