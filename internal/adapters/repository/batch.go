package repository

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds parallel writes issued by PutBatch.
const batchConcurrency = 8

// putEach runs put for every record and waits for all of them. The first
// error cancels the remaining writes.
func putEach(ctx context.Context, recs []Record, put func(context.Context, Record) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			return put(gctx, rec)
		})
	}
	return g.Wait()
}
