// Package newsletter classifies form-submission events as newsletter
// sign-ups. Each publisher has its own rule list: a closed set of variants
// built from small named predicates combined with short-circuit AND (and,
// for OpenVallejo, an OR between two form shapes). There is no inheritance;
// a variant is just its ordered predicate slice.
package newsletter

import (
	"strings"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/formpayload"
)

// Variant tags one publisher's rule set.
type Variant string

const (
	VariantBase            Variant = "base"
	VariantAfroLA          Variant = "afro-la"
	VariantDallasFreePress Variant = "dallas-free-press"
	VariantOpenVallejo     Variant = "open-vallejo"
	VariantThe19th         Variant = "the-19th"
)

// Predicate is one named classification check over a single event row.
// Returning false short-circuits the whole classification to false; an
// error is surfaced to the caller, which decides how to degrade it.
type Predicate struct {
	Name string
	Eval func(row event.Row) (bool, error)
}

// Engine evaluates an ordered predicate list against submit_form rows.
type Engine struct {
	variant Variant
	rules   []Predicate
}

// Variant returns the engine's publisher tag.
func (e *Engine) Variant() Variant {
	return e.variant
}

// RuleNames returns the ordered predicate names, for inspection in tests
// and logs.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Classify reports whether a form-submission row is a newsletter sign-up.
// It is defined only for rows whose event name is submit_form; the pipeline
// guarantees that precondition before calling. Predicates are evaluated in
// order and the first false (or error) ends evaluation.
func (e *Engine) Classify(row event.Row) (bool, error) {
	for _, rule := range e.rules {
		ok, err := rule.Eval(row)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ForVariant returns the rule engine for a publisher tag. The parser is
// shared so payloads parsed once during classification are not re-parsed
// by later predicates or rows.
func ForVariant(v Variant, parser *formpayload.Parser) (*Engine, error) {
	base := []Predicate{
		hasData(),
		hasEmailInput(parser),
	}

	switch v {
	case VariantBase:
		return &Engine{variant: v, rules: base}, nil
	case VariantAfroLA:
		return &Engine{variant: v, rules: append(base, isOnSubscribePage())}, nil
	case VariantDallasFreePress:
		return &Engine{variant: v, rules: append(base, formIDEquals("is_newsletter_inline_form", "mc-embedded-subscribe-form", parser))}, nil
	case VariantOpenVallejo:
		return &Engine{variant: v, rules: append(base, anyOf("is_newsletter_form",
			formIDContains("is_newsletter_inline_form", "mc-embedded-subscribe-form", parser),
			isPopupForm(),
		))}, nil
	case VariantThe19th:
		return &Engine{variant: v, rules: append(base, formIDContains("is_newsletter_form", "newsletter", parser))}, nil
	default:
		return nil, errors.NewInternalError("no newsletter rule set for variant "+string(v), nil)
	}
}

// hasData checks that the submit-form payload field is non-nil. Cheapest
// check first: it avoids payload parsing for the common empty case.
func hasData() Predicate {
	return Predicate{
		Name: "has_data",
		Eval: func(row event.Row) (bool, error) {
			return !row.IsNil(event.FieldFormSubmit), nil
		},
	}
}

// hasEmailInput checks that the form has an <input type="email"> element,
// which all partner newsletter forms share.
func hasEmailInput(parser *formpayload.Parser) Predicate {
	return Predicate{
		Name: "has_email_input",
		Eval: func(row event.Row) (bool, error) {
			payload, err := parsePayload(row, parser)
			if err != nil {
				return false, err
			}
			for _, el := range payload.Elements {
				if el.NodeName == "INPUT" && el.Type != nil && *el.Type == "email" {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// isOnSubscribePage checks that the submission happened on the dedicated
// subscribe page.
func isOnSubscribePage() Predicate {
	return Predicate{
		Name: "is_in_newsletter_page",
		Eval: func(row event.Row) (bool, error) {
			return row.String(event.FieldPageURLPath) == "/subscribe", nil
		},
	}
}

func formIDEquals(name, formID string, parser *formpayload.Parser) Predicate {
	return Predicate{
		Name: name,
		Eval: func(row event.Row) (bool, error) {
			payload, err := parsePayload(row, parser)
			if err != nil {
				return false, err
			}
			return payload.FormID == formID, nil
		},
	}
}

func formIDContains(name, substr string, parser *formpayload.Parser) Predicate {
	return Predicate{
		Name: name,
		Eval: func(row event.Row) (bool, error) {
			payload, err := parsePayload(row, parser)
			if err != nil {
				return false, err
			}
			return strings.Contains(payload.FormID, substr), nil
		},
	}
}

// isPopupForm matches OpenVallejo's pop-up newsletter form. The shape has
// not been observed in production data yet, so the predicate is always
// false until a real sample exists.
func isPopupForm() Predicate {
	return Predicate{
		Name: "is_newsletter_popup_form",
		Eval: func(row event.Row) (bool, error) {
			return false, nil
		},
	}
}

// anyOf combines alternative predicates with short-circuit OR. An error
// from any alternative surfaces immediately.
func anyOf(name string, alternatives ...Predicate) Predicate {
	return Predicate{
		Name: name,
		Eval: func(row event.Row) (bool, error) {
			for _, alt := range alternatives {
				ok, err := alt.Eval(row)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func parsePayload(row event.Row, parser *formpayload.Parser) (*formpayload.Payload, error) {
	raw, _ := row[event.FieldFormSubmit].(*formpayload.Raw)
	return parser.Parse(raw)
}
