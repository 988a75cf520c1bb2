package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/meridian/internal/model"
)

// regexConfidence is the fixed confidence of a pattern match.
const regexConfidence = 0.6

// snippetRadius is the context kept on each side of a match, in characters.
const snippetRadius = 50

// amount matches "<label>: $<number>[ unit]". The unit, when present, is kept
// on the value as M, B or K so later numeric coercion can scale it. A unit must
// sit on the same line as the number and stand alone: "K-1" or "M&A" after a
// figure is not a scale.
const amount = `[:\s]*\$?(\d[\d,]*\.?\d*)(?:[ \t]*(million|billion|bn|m|thousand|k)(?:[^\w&-]|$))?`

type fieldPattern struct {
	name string
	re   *regexp.Regexp
}

// regexFields are scanned in order; each field takes its first match only.
var regexFields = []fieldPattern{
	{"revenue", regexp.MustCompile(`(?i)(?:total\s+revenue|net\s+sales|revenue)` + amount)},
	{"ebitda", regexp.MustCompile(`(?i)ebitda` + amount)},
	{"net_income", regexp.MustCompile(`(?i)(?:net\s+income|net\s+profit|net\s+earnings)` + amount)},
	{"total_debt", regexp.MustCompile(`(?i)total\s+debt` + amount)},
	{"cash_and_equivalents", regexp.MustCompile(`(?i)cash\s+and\s+(?:cash\s+)?equivalents` + amount)},
}

var unitSuffix = map[string]string{
	"million":  "M",
	"m":        "M",
	"billion":  "B",
	"bn":       "B",
	"thousand": "K",
	"k":        "K",
}

// ExtractRegex scans text for the fixed set of headline financial figures.
// Text without any of the labels yields no fields.
func ExtractRegex(text string) []Field {
	var out []Field
	for _, fp := range regexFields {
		m := fp.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		value := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
		if m[4] >= 0 {
			value += unitSuffix[strings.ToLower(text[m[4]:m[5]])]
		}
		out = append(out, Field{
			Name:           fp.name,
			Value:          value,
			Type:           "number",
			Confidence:     regexConfidence,
			ContextSnippet: snippet(text, m[0], m[1]),
			Method:         model.MethodRegex,
		})
	}
	return out
}

// snippet returns the match with up to snippetRadius characters of
// surrounding text on each side, trimmed.
func snippet(text string, start, end int) string {
	for i := 0; i < snippetRadius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	for i := 0; i < snippetRadius && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return strings.TrimSpace(text[start:end])
}
