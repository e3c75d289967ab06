package ner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/irfndi/redzone-go/internal/models"
)

// DefaultBatchSize is the number of descriptions handed to one worker.
const DefaultBatchSize = 256

// BatchTagger tags transactions in parallel batches. Results are written back
// by index so the caller observes the original transaction order.
type BatchTagger struct {
	tagger    Tagger
	workers   int
	batchSize int
}

// NewBatchTagger creates a batch tagger. workers and batchSize fall back to 1
// and DefaultBatchSize when non-positive.
func NewBatchTagger(tagger Tagger, workers, batchSize int) *BatchTagger {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchTagger{tagger: tagger, workers: workers, batchSize: batchSize}
}

// Workers returns the configured pool size.
func (b *BatchTagger) Workers() int {
	return b.workers
}

// TagAll returns the tags of each description, index-aligned with the input.
func (b *BatchTagger) TagAll(ctx context.Context, descriptions []string) ([]Tags, error) {
	out := make([]Tags, len(descriptions))
	if len(descriptions) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for start := 0; start < len(descriptions); start += b.batchSize {
		end := start + b.batchSize
		if end > len(descriptions) {
			end = len(descriptions)
		}
		lo, hi := start, end
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = b.tagger.Tag(descriptions[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TagTransactions fills who/whoCat/how/what on each transaction from its
// normalized description.
func (b *BatchTagger) TagTransactions(ctx context.Context, txns []*models.Transaction) error {
	descriptions := make([]string, len(txns))
	for i, t := range txns {
		descriptions[i] = t.NormalizedDescription
	}
	tags, err := b.TagAll(ctx, descriptions)
	if err != nil {
		return err
	}
	for i, t := range txns {
		t.Who = nonEmpty(tags[i].Who)
		t.WhoCat = nonEmpty(tags[i].WhoCat)
		t.How = nonEmpty(tags[i].How)
		t.What = nonEmpty(tags[i].What)
	}
	return nil
}

func nonEmpty(s string) string {
	if s == "" {
		return models.NoneValue
	}
	return s
}
