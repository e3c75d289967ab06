package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/irfndi/redzone-go/internal/models"
)

// OutputOptions selects the wire shape of an assessment.
type OutputOptions struct {
	SchemaVersion string
	Verbosity     models.Verbosity
}

// SelectedFields returns the account sections kept for the verbosity.
func (o OutputOptions) SelectedFields() []string {
	switch o.Verbosity.Mode {
	case models.VerbosityScore:
		return []string{"scores"}
	case models.VerbositySummary:
		return models.SummaryFields
	case models.VerbosityFields:
		return o.Verbosity.Fields
	}
	return models.OutputFields
}

// ShapeResult renders the result as a JSON object honoring verbosity and
// schema version. Score-only output also reduces customerInfo to its scores.
// Error results keep their shape regardless of verbosity.
func ShapeResult(result *models.AssessmentResult, opts OutputOptions) (map[string]any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assessment: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}

	if result.RunError == 0 {
		keep := map[string]bool{}
		for _, f := range opts.SelectedFields() {
			keep[f] = true
		}
		for _, acct := range objects(out["accounts"]) {
			for _, f := range models.OutputFields {
				if !keep[f] {
					delete(acct, f)
				}
			}
		}
		if opts.Verbosity.Mode == models.VerbosityScore {
			if info, ok := out["customerInfo"].(map[string]any); ok {
				for k := range info {
					if k != "scores" {
						delete(info, k)
					}
				}
			}
		}
	}

	if strings.EqualFold(opts.SchemaVersion, models.SchemaV1) {
		for _, acct := range objects(out["accounts"]) {
			flattenScores(acct)
		}
		if info, ok := out["customerInfo"].(map[string]any); ok {
			flattenScores(info)
		}
		return snakeKeys(out).(map[string]any), nil
	}
	return out, nil
}

func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// flattenScores replaces each {score, modelReasons} object by its integer.
func flattenScores(holder map[string]any) {
	scores, ok := holder["scores"].(map[string]any)
	if !ok {
		return
	}
	for k, v := range scores {
		if s, ok := v.(map[string]any); ok {
			scores[k] = s["score"]
		}
	}
}

func snakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[SnakeCase(k)] = snakeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = snakeKeys(t[i])
		}
		return t
	}
	return v
}

// SnakeCase converts a camelCase key: "averageBalance3M" → "average_balance_3m".
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				b.WriteByte('_')
			case unicode.IsDigit(r) && unicode.IsLetter(prev):
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
