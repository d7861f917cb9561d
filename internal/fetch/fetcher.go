package fetch

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/timewindow"
)

// objectPrefix is where the collector's enrichment stage writes good
// events inside each publisher bucket, before the date-hour folders.
const objectPrefix = "enriched/good/"

// Fetcher downloads and parses all event files for a publisher bucket and
// time window. Downloads run in parallel up to the configured concurrency;
// parsing and assembly are serialized per object.
type Fetcher struct {
	store       ObjectStore
	spool       *Spool // optional; nil disables spooling
	concurrency int
	logger      *log.Logger
}

// NewFetcher creates a fetcher. A nil spool disables local caching;
// concurrency below 1 is clamped to 1.
func NewFetcher(store ObjectStore, spool *Spool, concurrency int, logger *log.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		store:       store,
		spool:       spool,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Fetch returns the combined raw batch for every hour bucket in the
// window. The first fetch, decompress, or parse failure aborts the whole
// fetch; record order across objects is not meaningful downstream.
func (f *Fetcher) Fetch(ctx context.Context, bucket string, window timewindow.Window) (event.Batch, error) {
	var keys []string
	for _, hour := range window.Buckets() {
		hourKeys, err := f.store.List(ctx, bucket, objectPrefix+timewindow.HourKey(hour))
		if err != nil {
			return nil, err
		}
		keys = append(keys, hourKeys...)
	}
	f.logger.Printf("fetch: %d objects in %s for window %s", len(keys), bucket, window)

	sem := semaphore.NewWeighted(int64(f.concurrency))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		batches  = make([]event.Batch, len(keys))
		firstErr error
	)

	for i, key := range keys {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(i int, key string) {
			defer sem.Release(1)
			defer wg.Done()

			batch, err := f.fetchObject(ctx, bucket, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			batches[i] = batch
		}(i, key)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var out event.Batch
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}

// fetchObject retrieves one event file (spool first, then object storage)
// and parses it into raw rows.
func (f *Fetcher) fetchObject(ctx context.Context, bucket, key string) (event.Batch, error) {
	var raw []byte
	if f.spool != nil {
		cached, hit, err := f.spool.Get(bucket, key)
		if err != nil {
			return nil, err
		}
		if hit {
			raw = cached
		}
	}

	if raw == nil {
		fetched, err := f.store.Get(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		raw = fetched
		if f.spool != nil {
			if err := f.spool.Put(bucket, key, raw); err != nil {
				// Spool writes are best-effort; the fetch itself succeeded.
				f.logger.Printf("fetch: spool write failed for %s: %v", key, err)
			}
		}
	}

	data, err := decompress(raw)
	if err != nil {
		return nil, err
	}
	return parseRecords(data)
}
