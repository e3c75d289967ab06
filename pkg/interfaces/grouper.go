package interfaces

import (
	"context"

	"github.com/irfndi/redzone-go/internal/models"
)

// TransactionGrouper assigns transactions to groups. Knowledge base strategies
// return the matched subset and the remainder; the similarity clusterer
// groups everything and returns an empty remainder.
type TransactionGrouper interface {
	Group(ctx context.Context, txns []*models.Transaction) (grouped, remainder []*models.Transaction, err error)
}
