package models

import "time"

// KnowledgeEntity is a confirmed counterparty pattern from the reference
// dataset.
type KnowledgeEntity struct {
	Pattern     string    `json:"pattern" db:"pattern"`
	Category    Category  `json:"category" db:"category"`
	SubCategory string    `json:"subCategory,omitempty" db:"sub_category"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Holiday is a non-business day on the payment calendar.
type Holiday struct {
	Date time.Time `json:"date" db:"holiday_date"`
	Name string    `json:"name" db:"name"`
}
