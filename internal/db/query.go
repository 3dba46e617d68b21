package db

import (
	"strconv"
	"strings"
)

// TagAny builds a TAG clause matching documents carrying any of values.
// Values are escaped. An empty list yields an empty clause.
func TagAny(field string, values ...string) string {
	if len(values) == 0 {
		return ""
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return "@" + field + ":{" + strings.Join(escaped, " | ") + "}"
}

// NumericRange builds an inclusive NUMERIC clause. Nil bounds are open.
func NumericRange(field string, minVal, maxVal *int) string {
	if minVal == nil && maxVal == nil {
		return ""
	}
	lo, hi := "-inf", "+inf"
	if minVal != nil {
		lo = strconv.Itoa(*minVal)
	}
	if maxVal != nil {
		hi = strconv.Itoa(*maxVal)
	}
	return "@" + field + ":[" + lo + " " + hi + "]"
}

// And joins non-empty clauses into one intersection.
func And(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)
