package models

// ScoreType names one of the pretrained scorers.
type ScoreType string

const (
	ScoreRedZone     ScoreType = "redZone"
	ScoreRepeat      ScoreType = "repeat"
	ScoreLoanPaidOff ScoreType = "loanPaidOff"
	ScoreIsBad       ScoreType = "isBad"
)

// AllScoreTypes lists the score types in output order.
var AllScoreTypes = []ScoreType{ScoreRedZone, ScoreRepeat, ScoreLoanPaidOff, ScoreIsBad}

// Repeat opportunity buckets.
const (
	RepeatHigh   = "High"
	RepeatMedium = "Medium"
	RepeatLow    = "Low"
)

// Score is a scaled integer score with its explanatory factors.
type Score struct {
	Score        int      `json:"score"`
	ModelReasons []string `json:"modelReasons"`
}

// Scores groups all score types computed for an account or a customer.
type Scores struct {
	RedZone           Score  `json:"redZone"`
	Repeat            Score  `json:"repeat"`
	LoanPaidOff       Score  `json:"loanPaidOff"`
	IsBad             Score  `json:"isBad"`
	RepeatOpportunity string `json:"repeatOpportunity"`
}

// Set stores a score by type.
func (s *Scores) Set(t ScoreType, score Score) {
	switch t {
	case ScoreRedZone:
		s.RedZone = score
	case ScoreRepeat:
		s.Repeat = score
	case ScoreLoanPaidOff:
		s.LoanPaidOff = score
	case ScoreIsBad:
		s.IsBad = score
	}
}

// Get returns a score by type.
func (s *Scores) Get(t ScoreType) Score {
	switch t {
	case ScoreRedZone:
		return s.RedZone
	case ScoreRepeat:
		return s.Repeat
	case ScoreLoanPaidOff:
		return s.LoanPaidOff
	case ScoreIsBad:
		return s.IsBad
	}
	return Score{}
}
