package csvflow

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

// chunk is one unit of worker work. done is closed once results is filled in.
type chunk struct {
	plan    *plan
	records []record
	results []Result
	done    chan struct{}
}

// runParallel decodes chunks of records on a fixed worker pool. The producer queues
// every chunk twice: on the work channel, and on the slots channel in input order.
// The consumer drains slots in order and waits on each chunk, so output order matches
// input order whatever the completion order. The bounded slots channel caps the
// number of chunks in flight and back-pressures the producer.
func (d *Decoder) runParallel(ctx context.Context, records iter.Seq2[record, error], res *resolver, yield func(Result) bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := d.opts.NumWorkers
	ratio := d.opts.WorkerWorkRatio
	work := make(chan *chunk, workers)
	slots := make(chan *chunk, workers*2)

	var srcErr error
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(slots)
		defer close(work)

		var cur *chunk
		flush := func() error {
			if cur == nil {
				return nil
			}
			c := cur
			cur = nil
			select {
			case slots <- c:
			case <-gCtx.Done():
				return gCtx.Err()
			}
			select {
			case work <- c:
				return nil
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}

		for rec, err := range records {
			if err != nil {
				// Rows read before the failure are still delivered.
				srcErr = err
				return flush()
			}
			pl, keep := res.advance(rec)
			if d.header == nil && pl.header != nil {
				d.header = pl.header
			}
			if !keep {
				continue
			}
			if cur == nil {
				cur = &chunk{plan: pl, records: make([]record, 0, ratio), done: make(chan struct{})}
			}
			cur.records = append(cur.records, rec)
			if len(cur.records) == ratio {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	for range workers {
		g.Go(func() error {
			for c := range work {
				if gCtx.Err() == nil {
					c.results = make([]Result, len(c.records))
					for i, rec := range c.records {
						c.results[i] = d.decodeRecord(c.plan, rec)
					}
				}
				close(c.done)
			}
			return nil
		})
	}

	stop := func(err error) {
		cancel()
		_ = g.Wait()
		if err != nil {
			d.err = err
		}
	}

	for c := range slots {
		if err := ctx.Err(); err != nil {
			stop(err)
			return
		}
		select {
		case <-c.done:
		case <-gCtx.Done():
			stop(ctx.Err())
			return
		}
		if c.results == nil && len(c.records) > 0 {
			stop(ctx.Err())
			return
		}
		for _, r := range c.results {
			if err := ctx.Err(); err != nil {
				stop(err)
				return
			}
			if !yield(r) {
				stop(nil)
				return
			}
		}
	}

	if err := g.Wait(); err != nil && d.err == nil {
		d.err = err
	}
	if srcErr != nil {
		d.err = srcErr
	}
}
