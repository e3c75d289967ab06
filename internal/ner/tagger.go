// Package ner extracts counterparty entities and payment channel/purpose tags
// from normalized transaction descriptions.
package ner

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
)

// EntityType classifies an entity span.
type EntityType string

const (
	EntityOrg    EntityType = "ORG"
	EntityPerson EntityType = "PERSON"
	EntityOther  EntityType = "OTHER"
)

// Entity is a token span [Start, End) of a normalized description.
type Entity struct {
	Text  string
	Type  EntityType
	Start int
	End   int
}

// Tags are the NER-derived fields copied onto a transaction.
type Tags struct {
	Who    string
	WhoCat string
	How    string
	What   string
}

// NoneTags is the result for a description without entities or keywords.
var NoneTags = Tags{Who: models.NoneValue, WhoCat: models.NoneValue, How: models.NoneValue, What: models.NoneValue}

// Tagger is the sequence-tagging capability.
type Tagger interface {
	Entities(normalized string) []Entity
	Tag(normalized string) Tags
}

// Lexicon is the reference vocabulary behind LexiconTagger.
type Lexicon struct {
	Organizations []string          `json:"organizations"`
	OrgSuffixes   []string          `json:"orgSuffixes"`
	FirstNames    []string          `json:"firstNames"`
	Other         []string          `json:"other"`
	Channels      map[string]string `json:"channels"`
	Purposes      map[string]string `json:"purposes"`
}

// LoadLexicon reads a JSON lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	var lex Lexicon
	if err := json.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	return &lex, nil
}

// DefaultLexicon returns the built-in vocabulary.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Organizations: []string{
			"acme", "amazon", "walmart", "target", "uber", "lyft", "doordash", "instacart",
			"grubhub", "paypal", "venmo", "cash app", "square", "stripe", "adp", "paychex",
			"gusto", "intuit", "us treasury", "irs", "ssa", "social security", "va benefits",
			"unemployment", "dept of labor", "edd", "chase", "wells fargo", "bank of america",
			"citibank", "capital one", "discover", "american express", "synchrony", "navy federal",
			"usaa", "earnin", "dave", "brigit", "chime", "mr cooper", "sallie mae", "navient",
			"rise credit", "possible finance", "opploans", "netcredit", "oportun", "speedy cash",
			"advance america", "check into cash", "att", "verizon", "comcast",
			"tmobile", "spotify", "netflix", "google", "apple", "microsoft", "fedex", "usps",
			"home depot", "lowes", "costco", "kroger", "safeway", "publix", "shell", "exxon",
			"chevron", "mcdonalds", "starbucks", "state farm", "geico", "progressive",
		},
		OrgSuffixes: []string{"inc", "llc", "corp", "corporation", "co", "ltd", "bank", "credit union", "cu", "services", "group", "company"},
		FirstNames: []string{
			"james", "john", "robert", "michael", "william", "david", "richard", "joseph",
			"thomas", "charles", "mary", "patricia", "jennifer", "linda", "elizabeth",
			"barbara", "susan", "jessica", "sarah", "karen", "maria", "jose", "juan",
			"luis", "carlos", "daniel", "matthew", "anthony", "mark", "ashley", "emily",
		},
		Other: []string{"atm", "interest", "fee", "overdraft", "dividend", "cashback"},
		Channels: map[string]string{
			"ach":             "ACH",
			"direct dep":      "DIRECT DEPOSIT",
			"direct deposit":  "DIRECT DEPOSIT",
			"dir dep":         "DIRECT DEPOSIT",
			"zelle":           "ZELLE",
			"venmo":           "P2P",
			"cash app":        "P2P",
			"paypal":          "P2P",
			"wire":            "WIRE",
			"atm":             "ATM",
			"pos":             "POS",
			"debit card":      "CARD",
			"card":            "CARD",
			"check":           "CHECK",
			"mobile deposit":  "MOBILE DEPOSIT",
			"online transfer": "ONLINE TRANSFER",
			"xfer":            "TRANSFER",
			"transfer":        "TRANSFER",
		},
		Purposes: map[string]string{
			"payroll":       "PAYROLL",
			"salary":        "PAYROLL",
			"wages":         "PAYROLL",
			"benefit":       "BENEFIT",
			"benefits":      "BENEFIT",
			"ssa":           "BENEFIT",
			"ssi":           "BENEFIT",
			"pension":       "BENEFIT",
			"unemployment":  "BENEFIT",
			"tax refund":    "REFUND",
			"refund":        "REFUND",
			"loan":          "LOAN",
			"advance":       "LOAN",
			"installment":   "LOAN",
			"repayment":     "LOAN",
			"rent":          "RENT",
			"mortgage":      "MORTGAGE",
			"insurance":     "INSURANCE",
			"transfer":      "TRANSFER",
			"deposit":       "DEPOSIT",
			"nsf":           "NSF",
			"overdraft":     "NSF",
			"returned item": "NSF",
		},
	}
}

// phrase is a lexicon entry split into tokens.
type phrase struct {
	tokens []string
	value  string
}

// LexiconTagger is a greedy longest-match tagger over a Lexicon. It is safe
// for concurrent use once constructed.
type LexiconTagger struct {
	orgs       map[string]bool
	other      map[string]bool
	firstNames map[string]bool
	suffixes   map[string]bool
	reserved   map[string]bool
	channels   []phrase
	purposes   []phrase
	maxOrgLen  int
}

// NewLexiconTagger compiles a lexicon. Entries are normalized with the same
// rules as descriptions so that lookups line up.
func NewLexiconTagger(lex *Lexicon) *LexiconTagger {
	if lex == nil {
		lex = DefaultLexicon()
	}
	lt := &LexiconTagger{
		orgs:       make(map[string]bool),
		other:      make(map[string]bool),
		firstNames: make(map[string]bool),
		suffixes:   make(map[string]bool),
		reserved:   make(map[string]bool),
	}
	for _, o := range lex.Organizations {
		key := normalizeEntry(o)
		if key == "" {
			continue
		}
		lt.orgs[key] = true
		if n := len(strings.Fields(key)); n > lt.maxOrgLen {
			lt.maxOrgLen = n
		}
	}
	for _, o := range lex.Other {
		lt.other[normalizeEntry(o)] = true
	}
	for _, n := range lex.FirstNames {
		lt.firstNames[strings.ToLower(n)] = true
	}
	for _, s := range lex.OrgSuffixes {
		lt.suffixes[strings.ToLower(s)] = true
	}
	lt.channels = compilePhrases(lex.Channels)
	lt.purposes = compilePhrases(lex.Purposes)
	for _, p := range append(append([]phrase{}, lt.channels...), lt.purposes...) {
		for _, tok := range p.tokens {
			lt.reserved[tok] = true
		}
	}
	return lt
}

func normalizeEntry(s string) string {
	n := textnorm.Normalize(s)
	if n == textnorm.NoDescription {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return n
}

// compilePhrases orders phrases longest first so multi-word keywords win.
func compilePhrases(m map[string]string) []phrase {
	out := make([]phrase, 0, len(m))
	for k, v := range m {
		out = append(out, phrase{tokens: strings.Fields(strings.ToLower(k)), value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].tokens) != len(out[j].tokens) {
			return len(out[i].tokens) > len(out[j].tokens)
		}
		return strings.Join(out[i].tokens, " ") < strings.Join(out[j].tokens, " ")
	})
	return out
}

// Entities returns entity spans in left-to-right order.
func (lt *LexiconTagger) Entities(normalized string) []Entity {
	if normalized == textnorm.NoDescription {
		return nil
	}
	tokens := strings.Fields(normalized)
	var entities []Entity
	for i := 0; i < len(tokens); {
		if e, ok := lt.matchAt(tokens, i); ok {
			entities = append(entities, e)
			i = e.End
			continue
		}
		i++
	}
	return entities
}

func (lt *LexiconTagger) matchAt(tokens []string, i int) (Entity, bool) {
	maxLen := lt.maxOrgLen
	if rest := len(tokens) - i; rest < maxLen {
		maxLen = rest
	}
	for n := maxLen; n >= 1; n-- {
		text := strings.Join(tokens[i:i+n], " ")
		if lt.orgs[text] {
			return Entity{Text: text, Type: EntityOrg, Start: i, End: i + n}, true
		}
	}

	// "<name> <name> ... llc" marks everything before the suffix as an org.
	for j := i + 1; j < len(tokens) && j <= i+3; j++ {
		if lt.isKeyword(tokens[j-1]) {
			break
		}
		if lt.suffixes[tokens[j]] {
			return Entity{Text: strings.Join(tokens[i:j], " "), Type: EntityOrg, Start: i, End: j + 1}, true
		}
	}

	if lt.firstNames[tokens[i]] {
		end := i + 1
		if end < len(tokens) && !lt.isKeyword(tokens[end]) && !lt.suffixes[tokens[end]] {
			end++
		}
		return Entity{Text: strings.Join(tokens[i:end], " "), Type: EntityPerson, Start: i, End: end}, true
	}

	if lt.other[tokens[i]] {
		return Entity{Text: tokens[i], Type: EntityOther, Start: i, End: i + 1}, true
	}
	return Entity{}, false
}

// isKeyword reports whether tok belongs to a channel or purpose phrase, or is
// a placeholder that cannot be part of a name.
func (lt *LexiconTagger) isKeyword(tok string) bool {
	return lt.reserved[tok] || tok == textnorm.StateToken
}

// Tag derives who/whoCat from the first ORG or PERSON entity and how/what
// from channel and purpose keywords. Missing fields are "None".
func (lt *LexiconTagger) Tag(normalized string) Tags {
	tags := NoneTags
	if normalized == textnorm.NoDescription {
		return tags
	}
	for _, e := range lt.Entities(normalized) {
		if e.Type == EntityOrg || e.Type == EntityPerson {
			tags.Who = e.Text
			tags.WhoCat = string(e.Type)
			break
		}
	}
	tokens := strings.Fields(normalized)
	if v, ok := firstPhrase(lt.channels, tokens); ok {
		tags.How = v
	}
	if v, ok := firstPhrase(lt.purposes, tokens); ok {
		tags.What = v
	}
	return tags
}

func firstPhrase(phrases []phrase, tokens []string) (string, bool) {
	for _, p := range phrases {
		if containsSeq(tokens, p.tokens) {
			return p.value, true
		}
	}
	return "", false
}

func containsSeq(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(tokens); i++ {
		for j := range seq {
			if tokens[i+j] != seq[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
