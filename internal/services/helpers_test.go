package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/models"
)

func mustDate(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func dates(ss ...string) []time.Time {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		out[i] = mustDate(s)
	}
	return out
}

func credit(who, date string, amount float64, cat models.Category) *models.Transaction {
	return labeled(who, date, amount, models.Credit, cat)
}

func debit(who, date string, amount float64, cat models.Category) *models.Transaction {
	return labeled(who, date, amount, models.Debit, cat)
}

func labeled(who, date string, amount float64, typ models.TransactionType, cat models.Category) *models.Transaction {
	t := &models.Transaction{
		AccountGUID:           "acct-1",
		TransGUID:             who + "-" + date,
		RawDescription:        who,
		NormalizedDescription: who,
		Date:                  mustDate(date),
		Amount:                decimal.NewFromFloat(amount),
		Type:                  typ,
		Who:                   who,
	}
	t.SetCategory(cat, models.LabelSourceInput)
	return t
}
