// Package app drives one backfill run end to end: it binds a publisher's
// configuration into the pipeline, then fetches, preprocesses, and persists
// one time batch at a time.
package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/pipeline"
	"github.com/tributary-data/tributary/internal/publisher"
	"github.com/tributary-data/tributary/internal/timewindow"
)

// Fetcher retrieves the raw event batch for one bucket and time window.
type Fetcher interface {
	Fetch(ctx context.Context, bucket string, window timewindow.Window) (event.Batch, error)
}

// EventWriter persists a cleaned batch, skipping natural-key conflicts,
// and reports how many rows were actually inserted.
type EventWriter interface {
	WriteEvents(ctx context.Context, batch event.Batch) (int, error)
}

// Runner orchestrates backfill runs.
type Runner struct {
	registry     *publisher.Registry
	fetcher      Fetcher
	writer       EventWriter
	batchHours   int
	bucketPrefix string
	logger       *log.Logger
}

// NewRunner creates a Runner. batchHours bounds how many hour buckets are
// held in memory at once; bucketPrefix is prepended to publisher slugs to
// form bucket names.
func NewRunner(registry *publisher.Registry, fetcher Fetcher, writer EventWriter, batchHours int, bucketPrefix string, logger *log.Logger) *Runner {
	if batchHours < 1 {
		batchHours = 1
	}
	return &Runner{
		registry:     registry,
		fetcher:      fetcher,
		writer:       writer,
		batchHours:   batchHours,
		bucketPrefix: bucketPrefix,
		logger:       logger,
	}
}

// Run processes the window for one publisher, batch by batch. Each batch's
// output is flushed to the store before the next batch starts, so partial
// progress survives a failure on a later batch.
//
// Failure policy is fail-fast: the first batch-fatal error (fetch,
// decompress, parse, schema, or store) aborts the remaining batches and is
// returned with the failing window attached. Earlier batches' writes are
// already committed and a resumed run skips their rows via the natural-key
// conflict rule.
func (r *Runner) Run(ctx context.Context, site publisher.Name, window timewindow.Window) error {
	entry, err := r.registry.Lookup(site)
	if err != nil {
		return err
	}

	steps, err := pipeline.Standard(string(site), entry.Engine)
	if err != nil {
		return err
	}
	pl := pipeline.New(r.logger, steps...)

	runID := uuid.NewString()
	started := time.Now()
	batches := window.Batches(r.batchHours)
	r.logger.Printf("run %s: site=%s window=%s batches=%d", runID, site, window, len(batches))

	for i, batch := range batches {
		if err := r.runBatch(ctx, pl, entry, batch); err != nil {
			r.logger.Printf("run %s: batch %d/%d (%s) failed: %v", runID, i+1, len(batches), batch, err)
			return err
		}
	}

	r.logger.Printf("run %s: finished in %s", runID, time.Since(started).Round(time.Millisecond))
	return nil
}

func (r *Runner) runBatch(ctx context.Context, pl *pipeline.Pipeline, entry *publisher.Site, window timewindow.Window) error {
	raw, err := r.fetcher.Fetch(ctx, r.bucketPrefix+entry.Bucket, window)
	if err != nil {
		return attachWindow(err, window)
	}
	if len(raw) == 0 {
		r.logger.Printf("run: window %s has no events", window)
		return nil
	}

	cleaned, _, err := pl.Run(raw)
	if err != nil {
		return attachWindow(err, window)
	}

	inserted, err := r.writer.WriteEvents(ctx, cleaned)
	if err != nil {
		return attachWindow(err, window)
	}
	r.logger.Printf("run: window %s: inserted %d rows, skipped %d rows that violated the unique key",
		window, inserted, len(cleaned)-inserted)
	return nil
}

// attachWindow annotates a batch-fatal error with the window it occurred
// in, so an aborted backfill can be resumed from that point.
func attachWindow(err error, window timewindow.Window) error {
	var pe *errors.PipelineError
	if errors.As(err, &pe) {
		return pe.WithDetails(map[string]interface{}{"window": window.String()})
	}
	return err
}
