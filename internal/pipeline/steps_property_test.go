package pipeline

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tributary-data/tributary/internal/event"
)

// TestProperty_DedupKeyUniqueness validates that after deduplication every
// non-nil event_id appears exactly once, regardless of input order or the
// number of duplicates.
func TestProperty_DedupKeyUniqueness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	step := DeleteRowsDuplicateKey(event.FieldEventID, event.FieldDerivedTstamp)

	properties.Property("every surviving event_id is unique", prop.ForAll(
		func(ids []int, offsets []int64) bool {
			batch := genBatch(ids, offsets)
			out, _, err := step(batch)
			if err != nil {
				return false
			}
			seen := make(map[string]bool)
			for _, row := range out {
				id := row.String(event.FieldEventID)
				if seen[id] {
					return false
				}
				seen[id] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10)),
		gen.SliceOf(gen.Int64Range(0, 3600)),
	))

	properties.Property("the survivor holds the minimum timestamp of its group", prop.ForAll(
		func(ids []int, offsets []int64) bool {
			batch := genBatch(ids, offsets)

			minByID := make(map[string]time.Time)
			for _, row := range batch {
				id := row.String(event.FieldEventID)
				ts, ok := row.Time(event.FieldDerivedTstamp)
				if !ok {
					continue
				}
				if existing, seen := minByID[id]; !seen || ts.Before(existing) {
					minByID[id] = ts
				}
			}

			out, _, err := step(batch)
			if err != nil {
				return false
			}
			for _, row := range out {
				id := row.String(event.FieldEventID)
				ts, ok := row.Time(event.FieldDerivedTstamp)
				if !ok {
					continue
				}
				if !ts.Equal(minByID[id]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10)),
		gen.SliceOf(gen.Int64Range(0, 3600)),
	))

	properties.TestingRun(t)
}

// TestProperty_ConvertTypesFixedPoint validates that type coercion is
// idempotent: applying the step to its own output changes nothing.
func TestProperty_ConvertTypesFixedPoint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	step := ConvertFieldTypes(StandardConvertTypesConfig())

	properties.Property("converting twice equals converting once", prop.ForAll(
		func(sessionIdx int64, height float64, secs int64) bool {
			batch := event.Batch{{
				event.FieldDomainSessionIdx: fmt.Sprintf("%d", sessionIdx),
				event.FieldDocHeight:        fmt.Sprintf("%g", height),
				event.FieldDerivedTstamp:    time.Unix(secs, 0).UTC().Format("2006-01-02 15:04:05"),
				event.FieldEventName:        "page_view",
			}}

			once, _, err := step(batch)
			if err != nil {
				return false
			}
			twice, _, err := step(once)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(once, twice)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Float64Range(0, 100_000),
		gen.Int64Range(0, 2_000_000_000),
	))

	properties.TestingRun(t)
}

// genBatch builds a coerced batch whose event IDs come from a small integer
// domain (forcing duplicates) with per-row timestamp offsets.
func genBatch(ids []int, offsets []int64) event.Batch {
	base := time.Date(2022, 11, 2, 5, 0, 0, 0, time.UTC)
	batch := make(event.Batch, 0, len(ids))
	for i, id := range ids {
		var offset int64
		if len(offsets) > 0 {
			offset = offsets[i%len(offsets)]
		}
		batch = append(batch, event.Row{
			event.FieldEventID:       fmt.Sprintf("event-%d", id),
			event.FieldDerivedTstamp: base.Add(time.Duration(offset) * time.Second),
		})
	}
	return batch
}
