package pipeline

import (
	"log"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/newsletter"
)

// Pipeline is an ordered list of preprocessing steps. The output batch of
// one step is the input of the next; no step may be reordered without
// violating a downstream precondition.
type Pipeline struct {
	steps  []Func
	logger *log.Logger
}

// New assembles a pipeline from steps, in the order given. The logger
// receives one line per step report; it must not be nil.
func New(logger *log.Logger, steps ...Func) *Pipeline {
	return &Pipeline{steps: steps, logger: logger}
}

// Run threads a batch through every step in order. Row-level problems are
// filtered and counted inside the steps; only batch-fatal errors (schema
// mismatches) propagate.
func (p *Pipeline) Run(batch event.Batch) (event.Batch, []Report, error) {
	reports := make([]Report, 0, len(p.steps))
	for _, step := range p.steps {
		var report Report
		var err error
		batch, report, err = step(batch)
		if err != nil {
			return nil, reports, err
		}
		reports = append(reports, report)
		p.logger.Printf("pipeline: %s", report)
	}
	p.logger.Printf("pipeline: preprocessed batch has %d rows", len(batch))
	return batch, reports, nil
}

// Standard returns the canonical step list for one publisher's batch:
//
//  1. select relevant fields (schema stability)
//  2. convert field types (typed nils and parsed timestamps for 3 and 4)
//  3. delete duplicate-key rows (needs parsed timestamps)
//  4. delete rows missing required fields (classification reads these
//     without nil checks)
//  5. delete bot-traffic rows
//  6. add the site_name field
//  7. normalize missing-value sentinels to nil
//  8. annotate the newsletter flag (needs 2's decoded payloads, 4's
//     guarantees, and 7's clean nils)
//
// It fails if the required set is not a subset of the relevant set, which
// would make step 4 report a false schema mismatch on every row.
func Standard(siteName string, engine *newsletter.Engine) ([]Func, error) {
	relevant := event.Relevant()
	required := event.Required()

	inRelevant := make(map[event.Field]bool, len(relevant))
	for _, f := range relevant {
		inRelevant[f] = true
	}
	for _, f := range required {
		if !inRelevant[f] {
			return nil, errors.NewSchemaError(
				errors.CodeUnknownField,
				"required field "+string(f)+" is not in the relevant field set",
			)
		}
	}

	return []Func{
		SelectFields(relevant),
		ConvertFieldTypes(StandardConvertTypesConfig()),
		DeleteRowsDuplicateKey(event.FieldEventID, event.FieldDerivedTstamp),
		DeleteRowsEmpty(required),
		DeleteRowsBot(),
		AddFieldSiteName(siteName),
		ReplaceNaNs(),
		AddFieldFormSubmitIsNewsletter(engine),
	}, nil
}
