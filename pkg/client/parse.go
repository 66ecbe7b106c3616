package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/menta2k/claimprint/pkg/types"
)

// FallbackCategory is suggested when no listed category fits
const FallbackCategory = "Misc"

// ErrEmptyResponse is returned when a model answers with no text
var ErrEmptyResponse = errors.New("empty response from model")

var reTrailing = regexp.MustCompile(`,(\s*[}\]])`)

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"January 2, 2006",
}

// Prompt builds the extraction instruction for a receipt image
func Prompt(categories []string) string {
	return fmt.Sprintf(`Analyze this receipt. Extract the total amount (numeric), merchant name, and date.
Also, suggest which category from this list it fits best: %s.
If none fit well, choose '%s'.
Return ONLY a JSON object of the form:
{"amount": 12.34, "merchant": "Shop name", "date": "YYYY-MM-DD", "suggestedCategory": "Category"}`,
		strings.Join(categories, ", "), FallbackCategory)
}

// ParseReceiptJSON decodes a model answer into receipt fields. Code fences,
// comments and trailing commas are tolerated; the date is normalized to
// YYYY-MM-DD when it can be parsed and kept verbatim otherwise.
func ParseReceiptJSON(raw string) (*types.ReceiptFields, error) {
	text := SanitizeModelJSON(raw)
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var fields types.ReceiptFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt json: %w", err)
	}

	fields.Merchant = strings.TrimSpace(fields.Merchant)
	fields.SuggestedCategory = strings.TrimSpace(fields.SuggestedCategory)
	fields.Date = NormalizeDate(fields.Date)
	return &fields, nil
}

// NormalizeDate rewrites a date in one of the common receipt formats as
// YYYY-MM-DD. Unrecognized input is returned trimmed but otherwise unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return s
}

// MatchCategory returns the listed category equal to suggested ignoring case,
// or FallbackCategory
func MatchCategory(suggested string, categories []string) string {
	suggested = strings.TrimSpace(suggested)
	for _, c := range categories {
		if strings.EqualFold(c, suggested) {
			return c
		}
	}
	return FallbackCategory
}

// SanitizeModelJSON removes code fences, comments, and trailing commas and
// keeps only the outermost {...}
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = stripComments(raw)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// stripComments drops // and /* */ comments that sit outside string literals
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
		case strings.HasPrefix(s[i:], "//"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end - 1
			continue
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
