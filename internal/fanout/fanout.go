// Package fanout splits a request over fixed-size batches and issues the
// batches concurrently, collecting every outcome.
package fanout

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one batch. Batch echoes the items the call was made with.
type Result[I, R any] struct {
	Batch []I
	Data  []R
	Err   error
}

// Call performs one downstream request for a batch of items.
type Call[I, R any] func(ctx context.Context, batch []I) ([]R, error)

// Run issues one call per batch concurrently and waits for all of them.
// A failing batch is logged and does not cancel its siblings.
func Run[I, R any](ctx context.Context, log *slog.Logger, items []I, batchSize int, call Call[I, R]) []Result[I, R] {
	batches := Batches(items, batchSize)
	results := make([]Result[I, R], len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		g.Go(func() error {
			data, err := call(ctx, batch)
			results[i] = Result[I, R]{Batch: batch, Data: data, Err: err}
			if err != nil {
				log.WarnContext(ctx, "batch_call_failed",
					"batch_index", i,
					"batch_size", len(batch),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Batches partitions items into ceil(len/size) slices preserving order.
// A non-positive size yields a single batch.
func Batches[I any](items []I, size int) [][]I {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}

	batches := make([][]I, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, batches = items[size:], append(batches, items[0:size:size])
	}
	return append(batches, items)
}

// Succeeded flattens the data of every successful batch.
func Succeeded[I, R any](results []Result[I, R]) []R {
	var out []R
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Data...)
		}
	}
	return out
}

// Failed counts the batches that returned an error.
func Failed[I, R any](results []Result[I, R]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
