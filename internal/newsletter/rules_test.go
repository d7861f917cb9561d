package newsletter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/formpayload"
)

func payloadRow(t *testing.T, source string) event.Row {
	t.Helper()
	data, err := formpayload.Decode(source)
	require.NoError(t, err)
	return event.Row{
		event.FieldEventName:  string(event.NameSubmitForm),
		event.FieldFormSubmit: &formpayload.Raw{Source: source, Data: data},
	}
}

func emailFormSource(formID string) string {
	return fmt.Sprintf(`{"formId": %q, "formClasses": [], "elements": [{"name": "EMAIL", "nodeName": "INPUT", "value": "reader@example.com", "type": "email"}]}`, formID)
}

func TestBase_NoDataShortCircuits(t *testing.T) {
	engine, err := ForVariant(VariantBase, formpayload.NewParser())
	require.NoError(t, err)

	row := event.Row{
		event.FieldEventName:  string(event.NameSubmitForm),
		event.FieldFormSubmit: nil,
	}
	ok, err := engine.Classify(row)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBase_EmailInputRequired(t *testing.T) {
	engine, err := ForVariant(VariantBase, formpayload.NewParser())
	require.NoError(t, err)

	withEmail := payloadRow(t, emailFormSource("any-form"))
	ok, err := engine.Classify(withEmail)
	require.NoError(t, err)
	assert.True(t, ok)

	noElements := payloadRow(t, `{"formId": "any-form", "formClasses": [], "elements": []}`)
	ok, err = engine.Classify(noElements)
	require.NoError(t, err)
	assert.False(t, ok)

	textOnly := payloadRow(t, `{"formId": "any-form", "formClasses": [], "elements": [{"name": "q", "nodeName": "INPUT", "value": "", "type": "text"}]}`)
	ok, err = engine.Classify(textOnly)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAfroLA_SubscribePageOnly(t *testing.T) {
	engine, err := ForVariant(VariantAfroLA, formpayload.NewParser())
	require.NoError(t, err)

	row := payloadRow(t, emailFormSource("any-form"))
	row[event.FieldPageURLPath] = "/subscribe"
	ok, err := engine.Classify(row)
	require.NoError(t, err)
	assert.True(t, ok)

	row[event.FieldPageURLPath] = "/"
	ok, err = engine.Classify(row)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDallasFreePress_ExactFormID(t *testing.T) {
	engine, err := ForVariant(VariantDallasFreePress, formpayload.NewParser())
	require.NoError(t, err)

	ok, err := engine.Classify(payloadRow(t, emailFormSource("mc-embedded-subscribe-form")))
	require.NoError(t, err)
	assert.True(t, ok)

	// A prefix match is not enough; the ID must be exact.
	ok, err = engine.Classify(payloadRow(t, emailFormSource("mc-embedded-subscribe-form-2")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenVallejo_InlineFormBySubstring(t *testing.T) {
	engine, err := ForVariant(VariantOpenVallejo, formpayload.NewParser())
	require.NoError(t, err)

	ok, err := engine.Classify(payloadRow(t, emailFormSource("mc-embedded-subscribe-form-2")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Classify(payloadRow(t, emailFormSource("donation-form")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThe19th_NewsletterSubstring(t *testing.T) {
	engine, err := ForVariant(VariantThe19th, formpayload.NewParser())
	require.NoError(t, err)

	ok, err := engine.Classify(payloadRow(t, emailFormSource("footer-newsletter-signup")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Classify(payloadRow(t, emailFormSource("search-form")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassify_MalformedPayloadSurfacesError(t *testing.T) {
	engine, err := ForVariant(VariantBase, formpayload.NewParser())
	require.NoError(t, err)

	row := event.Row{
		event.FieldEventName:  string(event.NameSubmitForm),
		event.FieldFormSubmit: &formpayload.Raw{Source: "{'formId': 'unterminated"},
	}
	_, err = engine.Classify(row)
	assert.Error(t, err)
}

func TestForVariant_UnknownVariant(t *testing.T) {
	_, err := ForVariant(Variant("unheard-of"), formpayload.NewParser())
	assert.Error(t, err)
}

func TestRuleNames_OrderIsBaseFirst(t *testing.T) {
	engine, err := ForVariant(VariantAfroLA, formpayload.NewParser())
	require.NoError(t, err)
	assert.Equal(t, []string{"has_data", "has_email_input", "is_in_newsletter_page"}, engine.RuleNames())
}
