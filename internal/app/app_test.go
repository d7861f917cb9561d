package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/formpayload"
	"github.com/tributary-data/tributary/internal/publisher"
	"github.com/tributary-data/tributary/internal/timewindow"
)

// mockFetcher returns a canned batch per window start hour and records the
// windows it was asked for.
type mockFetcher struct {
	batches map[string]event.Batch
	errAt   string
	fetched []string
}

func (m *mockFetcher) Fetch(ctx context.Context, bucket string, window timewindow.Window) (event.Batch, error) {
	key := window.String()
	m.fetched = append(m.fetched, key)
	if key == m.errAt {
		return nil, errors.NewFetchError(errors.CodeObjectFetchFailed, "failed to fetch "+key, fmt.Errorf("boom"))
	}
	return m.batches[key], nil
}

// mockWriter records written batches.
type mockWriter struct {
	written []event.Batch
	err     error
}

func (m *mockWriter) WriteEvents(ctx context.Context, batch event.Batch) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.written = append(m.written, batch)
	return len(batch), nil
}

func testRegistry(t *testing.T) *publisher.Registry {
	t.Helper()
	registry, err := publisher.NewRegistry(formpayload.NewParser())
	require.NoError(t, err)
	return registry
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// completeRow has every required field populated so it survives the pipeline.
func completeRow(eventID string) event.Row {
	return event.Row{
		event.FieldDerivedTstamp:    "2022-11-02 05:13:07.792",
		event.FieldDocHeight:        "4214",
		event.FieldDomainSessionIdx: "2",
		event.FieldDomainUserID:     "user-1",
		event.FieldDvceScreenHeight: "1080",
		event.FieldDvceScreenWidth:  "1920",
		event.FieldEventID:          eventID,
		event.FieldEventName:        "page_view",
		event.FieldNetworkUserID:    "net-1",
		event.FieldPageURLPath:      "/",
	}
}

func window(hours int) timewindow.Window {
	return timewindow.Window{Start: time.Date(2022, 11, 2, 5, 0, 0, 0, time.UTC), Hours: hours}
}

func TestRun_ProcessesAllBatches(t *testing.T) {
	fetcher := &mockFetcher{batches: map[string]event.Batch{
		"2022/11/02/05+1h": {completeRow("e1")},
		"2022/11/02/06+1h": {completeRow("e2"), completeRow("e3")},
	}}
	writer := &mockWriter{}
	runner := NewRunner(testRegistry(t), fetcher, writer, 1, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.AfroLA, window(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"2022/11/02/05+1h", "2022/11/02/06+1h"}, fetcher.fetched)
	require.Len(t, writer.written, 2)
	assert.Len(t, writer.written[0], 1)
	assert.Len(t, writer.written[1], 2)

	// The pipeline stamped the publisher before persisting.
	assert.Equal(t, "afro-la", writer.written[0][0].String(event.FieldSiteName))
}

func TestRun_EmptyWindowWritesNothing(t *testing.T) {
	fetcher := &mockFetcher{batches: map[string]event.Batch{}}
	writer := &mockWriter{}
	runner := NewRunner(testRegistry(t), fetcher, writer, 1, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.AfroLA, window(2))
	require.NoError(t, err)
	assert.Empty(t, writer.written)
}

func TestRun_UnknownPublisherFailsBeforeFetching(t *testing.T) {
	fetcher := &mockFetcher{}
	runner := NewRunner(testRegistry(t), fetcher, &mockWriter{}, 1, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.Name("la-times"), window(2))
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownPublisher, errors.GetCode(err))
	assert.Empty(t, fetcher.fetched)
}

func TestRun_FailFastStopsLaterBatches(t *testing.T) {
	fetcher := &mockFetcher{
		batches: map[string]event.Batch{
			"2022/11/02/05+1h": {completeRow("e1")},
		},
		errAt: "2022/11/02/06+1h",
	}
	writer := &mockWriter{}
	runner := NewRunner(testRegistry(t), fetcher, writer, 1, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.AfroLA, window(3))
	require.Error(t, err)

	// The first batch was persisted; the failing one stopped the run before
	// the third was touched.
	assert.Len(t, writer.written, 1)
	assert.Equal(t, []string{"2022/11/02/05+1h", "2022/11/02/06+1h"}, fetcher.fetched)

	// The error names the window so the run can be resumed there.
	var pe *errors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "2022/11/02/06+1h", pe.Details["window"])
}

func TestRun_WriteFailureAborts(t *testing.T) {
	fetcher := &mockFetcher{batches: map[string]event.Batch{
		"2022/11/02/05+1h": {completeRow("e1")},
		"2022/11/02/06+1h": {completeRow("e2")},
	}}
	writer := &mockWriter{err: errors.NewStoreError("failed to insert event row", fmt.Errorf("disk full"))}
	runner := NewRunner(testRegistry(t), fetcher, writer, 1, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.AfroLA, window(2))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCategoryStore, errors.GetCategory(err))
	assert.Len(t, fetcher.fetched, 1)
}

func TestRun_BatchHoursGroupWindows(t *testing.T) {
	fetcher := &mockFetcher{batches: map[string]event.Batch{}}
	runner := NewRunner(testRegistry(t), fetcher, &mockWriter{}, 6, "tributary-", discardLogger())

	err := runner.Run(context.Background(), publisher.The19th, window(24))
	require.NoError(t, err)
	assert.Len(t, fetcher.fetched, 4)
}
