package fetch

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"strings"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
)

// decompress unpacks one gzipped event file. Every collector object is a
// .gz file of newline-delimited JSON records.
func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewFetchError(errors.CodeDecompressFailed, "object is not valid gzip", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.NewFetchError(errors.CodeDecompressFailed, "gzip stream is truncated or corrupt", err)
	}
	return out, nil
}

// parseRecords splits decompressed object data into newline-delimited JSON
// records and decodes each into a raw event row. Field values stay exactly
// as the decoder produced them; typing happens in the pipeline.
func parseRecords(data []byte) (event.Batch, error) {
	var batch event.Batch
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, errors.NewFetchError(errors.CodeRecordParseFailed, "event record is not valid JSON", err)
		}

		row := make(event.Row, len(record))
		for k, v := range record {
			row[event.Field(k)] = v
		}
		batch = append(batch, row)
	}
	return batch, nil
}
