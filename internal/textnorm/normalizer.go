// Package textnorm canonicalizes raw bank transaction descriptions so that
// descriptions from the same payer differing only in embedded ids normalize
// to the same token string.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// NoDescription is returned for empty or stopword-only descriptions.
	NoDescription = "NO DESCRIPTION"
	// StateToken replaces US state abbreviations.
	StateToken = "StateAbbr"
)

// StateAbbreviations are the 50 US state postal codes, lowercase.
var StateAbbreviations = []string{
	"al", "ak", "az", "ar", "ca", "co", "ct", "de", "fl", "ga",
	"hi", "id", "il", "in", "ia", "ks", "ky", "la", "me", "md",
	"ma", "mi", "mn", "ms", "mo", "mt", "ne", "nv", "nh", "nj",
	"nm", "ny", "nc", "nd", "oh", "ok", "or", "pa", "ri", "sc",
	"sd", "tn", "tx", "ut", "vt", "va", "wa", "wv", "wi", "wy",
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true,
	"for": true, "from": true, "of": true, "on": true, "the": true, "to": true,
	"with": true, "via": true, "is": true, "it": true, "this": true, "that": true,
	"ref": true, "no": true, "num": true, "nbr": true,
}

var (
	states = func() map[string]bool {
		m := make(map[string]bool, len(StateAbbreviations))
		for _, s := range StateAbbreviations {
			m[s] = true
		}
		return m
	}()

	confPattern  = regexp.MustCompile(`(?i)conf(?:irmation)?\s*#\s*:?\s*\S*`)
	nonAlnum     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	digitGroup3  = regexp.MustCompile(`\d{3,}`)
	accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// tokenRule drops a lowercase token when it matches. Rules run in order, the
// more specific id shapes first.
type tokenRule struct {
	name  string
	match func(tok string, letters, digits int) bool
}

var tokenRules = []tokenRule{
	{"long digit run", func(tok string, letters, digits int) bool { return letters == 0 && digits >= 18 }},
	{"embedded id", func(tok string, letters, digits int) bool { return letters > 0 && digits >= 5 && digits <= 17 }},
	{"exact four digits", func(tok string, letters, digits int) bool { return letters == 0 && digits == 4 }},
	{"short digit run", func(tok string, letters, digits int) bool { return letters == 0 && digits >= 1 && digits <= 3 }},
	{"digit only", func(tok string, letters, digits int) bool { return letters == 0 && digits > 0 }},
	{"long mixed word", func(tok string, letters, digits int) bool {
		return letters > 0 && digits > 0 && len([]rune(tok)) >= 9
	}},
	{"single character", func(tok string, letters, digits int) bool { return len([]rune(tok)) == 1 }},
}

// Normalize returns the canonical form of a raw description. It never returns
// an empty string and Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NoDescription || strings.EqualFold(raw, "nan") {
		return NoDescription
	}

	folded, _, err := transform.String(accentFolder, raw)
	if err == nil {
		raw = folded
	}
	raw = confPattern.ReplaceAllString(raw, " ")
	raw = nonAlnum.ReplaceAllString(raw, " ")

	var out []string
	for _, field := range strings.Fields(raw) {
		if field == StateToken {
			out = append(out, StateToken)
			continue
		}
		for _, word := range splitCamel(field) {
			if tok, ok := cleanToken(strings.ToLower(word)); ok {
				out = append(out, tok)
			}
		}
	}

	joined := strings.Join(out, " ")
	if onlyStopwords(out) || strings.EqualFold(joined, "nan") {
		return NoDescription
	}
	return joined
}

func cleanToken(tok string) (string, bool) {
	letters, digits := 0, 0
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	// A run of three or more digits inside a word is an id; keep the letters.
	if letters > 0 && digits < 5 && digitGroup3.MatchString(tok) {
		return cleanToken(digitGroup3.ReplaceAllString(tok, ""))
	}
	for _, rule := range tokenRules {
		if rule.match(tok, letters, digits) {
			return "", false
		}
	}
	if letters == 2 && digits == 0 && states[tok] {
		return StateToken, true
	}
	return tok, true
}

// splitCamel breaks "PayrollDeposit" into "Payroll" "Deposit" and
// "ACMEPayroll" into "ACME" "Payroll". Digits stay attached.
func splitCamel(s string) []string {
	rs := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur)
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(rs) && unicode.IsLower(rs[i+1]) {
			boundary = true
		}
		if boundary {
			words = append(words, string(rs[start:i]))
			start = i
		}
	}
	return append(words, string(rs[start:]))
}

func onlyStopwords(tokens []string) bool {
	for _, t := range tokens {
		if t != StateToken && !stopwords[t] {
			return false
		}
	}
	return true
}

// IsStopword reports whether a normalized token carries no payer signal.
func IsStopword(tok string) bool {
	return tok == StateToken || stopwords[tok]
}

// ContentTokens returns the normalized tokens with stopwords removed.
func ContentTokens(normalized string) []string {
	if normalized == NoDescription {
		return nil
	}
	var out []string
	for _, t := range strings.Fields(normalized) {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}
