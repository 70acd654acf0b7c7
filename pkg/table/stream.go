package table

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/nnnkkk7/geoquery/pkg/fragment"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

type streamConfig struct {
	minChunk int64
	workers  int
}

// StreamOption configures a parallel stream.
type StreamOption func(*streamConfig)

// MinChunk sets the partition size lower bound. Values below 1 are
// treated as 1.
func MinChunk(n int64) StreamOption {
	return func(c *streamConfig) { c.minChunk = n }
}

// Workers bounds the number of partitions read concurrently.
func Workers(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Stream implements Table.
//
// The sequence is lazy: nothing is read until it is ranged over, and it can
// be ranged over once. The sequential form yields rows in backend cursor
// order. The parallel form estimates the row count, splits it with Split and
// reads every partition on its own cursor; rows from different partitions
// interleave in no guaranteed order. Leaving the loop early, canceling ctx or
// closing the view stops every partition and releases its cursor.
//
// Partition cursors page through the fragment with LIMIT/OFFSET, so the
// backend must return the rows of the fragment in a stable order; add an
// ORDER BY to the fragment when it does not.
func (v *view) Stream(ctx context.Context, parallel bool, opts ...StreamOption) iter.Seq2[Row, error] {
	cfg := streamConfig{minChunk: v.mat.minChunk, workers: v.mat.workers}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(Row, error) bool) {
		if !parallel {
			v.streamSequential(yield)
			return
		}
		v.streamParallel(ctx, cfg, yield)
	}
}

func (v *view) streamSequential(yield func(Row, error) bool) {
	cur, err := v.Iterator()
	if err != nil {
		yield(Row{}, err)
		return
	}
	defer func() { _ = cur.Close() }()

	for cur.Next() {
		if !yield(cur.Row(), nil) {
			return
		}
	}
	if err := cur.Err(); err != nil {
		yield(Row{}, err)
	}
}

func (v *view) streamParallel(ctx context.Context, cfg streamConfig, yield func(Row, error) bool) {
	// Partitions read on their own cursors. The primary statement is
	// released first: on a single-connection pool it holds the only
	// connection the count query could use.
	rows, err := v.claim()
	if err != nil {
		yield(Row{}, err)
		return
	}
	if rows != nil {
		_ = rows.Close()
	}

	total, err := v.RowCount(ctx)
	if err != nil {
		yield(Row{}, err)
		return
	}

	// Register under the lock so Close either sees this stream or the
	// stream sees the view closed.
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		yield(Row{}, sqlerr.ErrClosed)
		return
	}
	v.streams.Add(1)
	v.mu.Unlock()

	ranges := Split(total, cfg.minChunk)
	v.logger.Debug().
		Int64("rows", total).
		Int("partitions", len(ranges)).
		Int("workers", cfg.workers).
		Msg("parallel stream")

	if len(ranges) == 0 {
		v.streams.Done()
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.done, cancel)
	defer stop()

	out := make(chan Row, cfg.workers)
	result := make(chan error, 1)

	go func() {
		defer v.streams.Done()

		g, gctx := errgroup.WithContext(sctx)
		g.SetLimit(cfg.workers)
		for _, r := range ranges {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				return v.readPartition(gctx, r, out)
			})
		}
		result <- g.Wait()
		close(out)
	}()

	stopped := false
	for row := range out {
		if sctx.Err() != nil {
			break
		}
		if !yield(row, nil) {
			stopped = true
			break
		}
	}
	cancel()
	// drain so partitions blocked on a send can observe the cancellation
	for range out {
	}
	err = <-result

	switch {
	case stopped:
	case v.done.Err() != nil:
		yield(Row{}, sqlerr.ErrClosed)
	case ctx.Err() != nil:
		yield(Row{}, ctx.Err())
	case err != nil && !errors.Is(err, context.Canceled):
		yield(Row{}, err)
	}
}

// readPartition reads one range on its own cursor and sends its rows to out.
func (v *view) readPartition(ctx context.Context, r Range, out chan<- Row) error {
	page := fragment.New("SELECT * FROM ").
		AppendFragment(v.frag.Wrap().AsSource(fragment.NewAlias())).
		Append(fmt.Sprintf(" LIMIT %d OFFSET %d", r.Len(), r.Start))
	bound := page.Rebind(v.mat.kind.PlaceholderStyle())

	rows, err := v.mat.conn.Query(ctx, bound.Text, bound.Params...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &sqlerr.ExecutionError{Query: page.Text, Err: err}
	}

	cur := newCursor(rows, page.Text, v.columns, r.Start, nil)
	defer func() { _ = cur.Close() }()

	for cur.Next() {
		select {
		case out <- cur.Row():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := cur.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
