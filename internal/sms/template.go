package sms

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	"admissions-portal/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Process fills {placeholder} tokens in tmpl from data. A placeholder with no
// key in data is left as written; a key holding nil becomes an empty string.
// Both cases are logged as warnings on log.
func Process(log *slog.Logger, tmpl string, data models.TemplateData) string {
	if log == nil {
		log = slog.Default()
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := data[key]
		if !ok {
			log.Warn("placeholder not found in template_data", slog.String("placeholder", key))
			return match
		}
		if value == nil {
			log.Warn("placeholder is null", slog.String("placeholder", key))
			return ""
		}
		return stringify(value)
	})
}

// stringify renders JSON-decoded numbers without a trailing ".0" so that
// {"amount": 150} prints as 150.
func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// Plain digits below 1e21, exponent form beyond it.
		if a := math.Abs(x); a == 0 || (a >= 1e-6 && a < 1e21) {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return stringify(float64(x))
	default:
		return fmt.Sprint(x)
	}
}

// ValidateRequired reports the fields that are absent or nil in data.
func ValidateRequired(fields []string, data models.TemplateData) (bool, []string) {
	var missing []string
	for _, f := range fields {
		if v, ok := data[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	return len(missing) == 0, missing
}
