// Package pipeline implements the ordered preprocessing chain applied to
// event batches. Each step is a pure function of immutable configuration
// plus a batch, returning a new batch and a report of what changed. The
// step order is a contract: every step's precondition depends on the one
// before it (see Standard).
package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	ua "github.com/mileusna/useragent"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/formpayload"
	"github.com/tributary-data/tributary/internal/newsletter"
)

// Report is one step's side-channel log: row counts for filtering steps,
// a one-line note for everything else.
type Report struct {
	Step    string
	RowsIn  int
	RowsOut int
	Note    string
}

// String renders the report for logging.
func (r Report) String() string {
	if r.RowsIn != r.RowsOut {
		return fmt.Sprintf("%s: %d -> %d rows (%s)", r.Step, r.RowsIn, r.RowsOut, r.Note)
	}
	return fmt.Sprintf("%s: %s", r.Step, r.Note)
}

// Func is a single preprocessing step.
type Func func(batch event.Batch) (event.Batch, Report, error)

// SelectFields projects the batch down to exactly the given field set.
// Recognized fields absent from the input appear as nil columns so the
// downstream schema is stable; unrecognized input fields are dropped.
func SelectFields(relevant []event.Field) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			selected := make(event.Row, len(relevant))
			for _, f := range relevant {
				if v, ok := row[f]; ok {
					selected[f] = v
				} else {
					selected[f] = nil
				}
			}
			out = append(out, selected)
		}
		return out, Report{
			Step:    "select_fields",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("projected to %d relevant fields", len(relevant)),
		}, nil
	}
}

// ConvertTypesConfig names the field sets each coercion applies to.
type ConvertTypesConfig struct {
	Int         []event.Field
	Float       []event.Field
	Datetime    []event.Field
	Categorical []event.Field
	JSON        []event.Field
}

// StandardConvertTypesConfig returns the coercion sets from the field
// registry.
func StandardConvertTypesConfig() ConvertTypesConfig {
	return ConvertTypesConfig{
		Int:         event.IntFields(),
		Float:       event.FloatFields(),
		Datetime:    event.DatetimeFields(),
		Categorical: event.CategoricalFields(),
		JSON:        event.JSONFields(),
	}
}

// ConvertFieldTypes coerces cells to their registry kinds: ints, floats,
// UTC timestamps, bounded-domain strings, and decoded JSON payloads.
// Coercion is a fixed point: already-typed values pass through unchanged,
// so converting twice yields identical results. A cell that cannot be
// coerced degrades to nil rather than failing the batch; required-field
// filtering decides the row's fate afterwards.
//
// Must run before deduplication (which compares parsed timestamps) and
// before required-field filtering (which expects well-typed nils).
func ConvertFieldTypes(cfg ConvertTypesConfig) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			converted := row.Clone()
			for _, f := range cfg.Int {
				converted[f] = coerceInt(converted[f])
			}
			for _, f := range cfg.Float {
				converted[f] = coerceFloat(converted[f])
			}
			for _, f := range cfg.Datetime {
				converted[f] = coerceDatetime(converted[f])
			}
			for _, f := range cfg.Categorical {
				converted[f] = coerceString(converted[f])
			}
			for _, f := range cfg.JSON {
				converted[f] = coercePayload(converted[f])
			}
			out = append(out, converted)
		}
		return out, Report{
			Step:    "convert_field_types",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    "converted field data types",
		}, nil
	}
}

// DeleteRowsDuplicateKey removes all but one row per duplicate primary key.
// Rows are ordered by parsed timestamp first, so the survivor of each
// duplicate group is the earliest-timestamped one (the likely parent event;
// later duplicates are collector retransmissions). Input order is
// irrelevant. Rows with a nil key are kept; the required-field filter
// removes them next.
func DeleteRowsDuplicateKey(key, timestamp event.Field) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		sorted := make(event.Batch, len(batch))
		copy(sorted, batch)
		sort.SliceStable(sorted, func(i, j int) bool {
			ti, iOK := sorted[i].Time(timestamp)
			tj, jOK := sorted[j].Time(timestamp)
			if !iOK || !jOK {
				// Rows without a parsed timestamp sort last.
				return iOK
			}
			return ti.Before(tj)
		})

		seen := make(map[string]bool, len(sorted))
		out := make(event.Batch, 0, len(sorted))
		for _, row := range sorted {
			if row.IsNil(key) {
				out = append(out, row)
				continue
			}
			k := row.String(key)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, row)
		}
		return out, Report{
			Step:    "delete_rows_duplicate_key",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("deleted %d rows with duplicate %s", len(batch)-len(out), key),
		}, nil
	}
}

// DeleteRowsEmpty drops rows holding a nil value in any required field.
// A required field whose key is entirely absent from a row indicates a
// field-registry mismatch upstream and fails the whole batch.
func DeleteRowsEmpty(required []event.Field) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			keep := true
			for _, f := range required {
				v, ok := row[f]
				if !ok {
					return nil, Report{}, errors.NewSchemaError(
						errors.CodeMissingRequiredField,
						fmt.Sprintf("required field %s absent from row after selection", f),
					)
				}
				if v == nil {
					keep = false
					break
				}
			}
			if keep {
				out = append(out, row)
			}
		}
		return out, Report{
			Step:    "delete_rows_empty",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("deleted %d rows with at least 1 empty required field", len(batch)-len(out)),
		}, nil
	}
}

// DeleteRowsBot drops rows whose useragent classifies as automated traffic.
// Rows without a useragent are kept; they cannot be classified either way.
func DeleteRowsBot() Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			agent := row.String(event.FieldUserAgent)
			if agent != "" && ua.Parse(agent).Bot {
				continue
			}
			out = append(out, row)
		}
		return out, Report{
			Step:    "delete_rows_bot",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("deleted %d bot-traffic rows", len(batch)-len(out)),
		}, nil
	}
}

// AddFieldSiteName stamps every row with the publisher slug.
func AddFieldSiteName(siteName string) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			stamped := row.Clone()
			stamped[event.FieldSiteName] = siteName
			out = append(out, stamped)
		}
		return out, Report{
			Step:    "add_field_site_name",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("added site name %s as a new field", siteName),
		}, nil
	}
}

// ReplaceNaNs normalizes every residual missing-value sentinel (NaN floats,
// typed nil payload pointers) to an untyped nil so serialization for the
// store never leaks framework-specific markers.
func ReplaceNaNs() Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			cleaned := row.Clone()
			for f, v := range cleaned {
				switch tv := v.(type) {
				case float64:
					if math.IsNaN(tv) {
						cleaned[f] = nil
					}
				case *formpayload.Raw:
					if tv == nil {
						cleaned[f] = nil
					}
				}
			}
			out = append(out, cleaned)
		}
		return out, Report{
			Step:    "replace_nans",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    "replaced missing-value sentinels with nil",
		}, nil
	}
}

// AddFieldFormSubmitIsNewsletter runs the publisher's classification engine
// on submit_form rows and writes the boolean result; all other rows get a
// nil flag. A payload decode failure degrades that row to false rather
// than failing the batch.
func AddFieldFormSubmitIsNewsletter(engine *newsletter.Engine) Func {
	return func(batch event.Batch) (event.Batch, Report, error) {
		classified := 0
		out := make(event.Batch, 0, len(batch))
		for _, row := range batch {
			annotated := row.Clone()
			if annotated.EventName() == event.NameSubmitForm {
				ok, err := engine.Classify(annotated)
				if err != nil {
					// Malformed payload: not a newsletter, not batch-fatal.
					ok = false
				}
				annotated[event.FieldFormSubmitIsNewsletter] = ok
				classified++
			} else {
				annotated[event.FieldFormSubmitIsNewsletter] = nil
			}
			out = append(out, annotated)
		}
		return out, Report{
			Step:    "add_field_form_submit_is_newsletter",
			RowsIn:  len(batch),
			RowsOut: len(out),
			Note:    fmt.Sprintf("annotated newsletter flag on %d submit_form rows", classified),
		}, nil
	}
}

// datetimeLayouts are tried in order when coercing timestamp strings. The
// collector emits space-separated UTC timestamps with fractional seconds.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

func coerceInt(v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case int64:
		return tv
	case int:
		return int64(tv)
	case float64:
		if math.IsNaN(tv) {
			return nil
		}
		return int64(tv)
	case string:
		if n, err := strconv.ParseInt(tv, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(tv, 64); err == nil && !math.IsNaN(f) {
			return int64(f)
		}
		return nil
	default:
		return nil
	}
}

func coerceFloat(v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(tv) {
			return nil
		}
		return tv
	case int64:
		return float64(tv)
	case int:
		return float64(tv)
	case string:
		if f, err := strconv.ParseFloat(tv, 64); err == nil && !math.IsNaN(f) {
			return f
		}
		return nil
	default:
		return nil
	}
}

func coerceDatetime(v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case time.Time:
		return tv.UTC()
	case string:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, tv); err == nil {
				return t.UTC()
			}
		}
		return nil
	default:
		return nil
	}
}

func coerceString(v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case string:
		return tv
	default:
		return nil
	}
}

func coercePayload(v interface{}) interface{} {
	switch tv := v.(type) {
	case nil:
		return nil
	case *formpayload.Raw:
		if tv == nil {
			return nil
		}
		return tv
	case string:
		data, err := formpayload.Decode(tv)
		if err != nil {
			// Decode failure degrades to "no data" for the row.
			return nil
		}
		return &formpayload.Raw{Source: tv, Data: data}
	default:
		return nil
	}
}
