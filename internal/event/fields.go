// Package event defines the canonical analytics event schema: the set of
// recognized collector fields, their semantic kinds, and the row/batch types
// the preprocessing pipeline operates on.
package event

// Field is the name of one column in an event batch, as emitted by the
// tracking collector.
type Field string

// Collector fields of interest. Field documentation follows the Snowplow
// canonical event model: https://docs.snowplow.io/docs/understanding-your-pipeline/canonical-event/.
const (
	// FieldBrViewHeight is the browser viewport height in pixels.
	FieldBrViewHeight Field = "br_viewheight"

	// FieldBrViewWidth is the browser viewport width in pixels.
	FieldBrViewWidth Field = "br_viewwidth"

	// FieldDerivedTstamp is the event timestamp making allowance for an
	// inaccurate device clock. Nominally UTC.
	FieldDerivedTstamp Field = "derived_tstamp"

	// FieldDocHeight is the page height in pixels.
	FieldDocHeight Field = "doc_height"

	// FieldDomainSessionIdx is the ordinal of the current user session,
	// dependent on domain_userid.
	FieldDomainSessionIdx Field = "domain_sessionidx"

	// FieldDomainUserID is the user ID set via 1st-party cookie.
	FieldDomainUserID Field = "domain_userid"

	// FieldDvceScreenHeight is the device screen height in pixels.
	FieldDvceScreenHeight Field = "dvce_screenheight"

	// FieldDvceScreenWidth is the device screen width in pixels.
	FieldDvceScreenWidth Field = "dvce_screenwidth"

	// FieldEventID is the event's ID. Unique within one publisher's batch
	// after deduplication; part of the (site_name, event_id) natural key
	// in the events table.
	FieldEventID Field = "event_id"

	// FieldEventName is the event category. See Name for the bounded domain.
	FieldEventName Field = "event_name"

	// FieldNetworkUserID is the user ID set via 3rd-party cookie.
	FieldNetworkUserID Field = "network_userid"

	// FieldPageReferrer is the URL of the referrer.
	FieldPageReferrer Field = "page_referrer"

	// FieldPageURLFragment is the page URL fragment, e.g. "about" in
	// https://dallasfreepress.com/#about.
	FieldPageURLFragment Field = "page_urlfragment"

	// FieldPageURLPath is the page URL path, e.g. "/event-directory/" in
	// https://dallasfreepress.com/event-directory/.
	FieldPageURLPath Field = "page_urlpath"

	// FieldPageURLQuery is the page URL query string.
	FieldPageURLQuery Field = "page_urlquery"

	// FieldPpYOffsetMax is the maximum page y-offset seen in the last ping
	// period. Only meaningful when event_name == "page_ping".
	FieldPpYOffsetMax Field = "pp_yoffset_max"

	// FieldRefrMedium is the referrer type: "social", "search", "internal",
	// "unknown" or "email".
	FieldRefrMedium Field = "refr_medium"

	// FieldRefrSource is the referrer name when recognised, e.g. "Google".
	FieldRefrSource Field = "refr_source"

	// FieldRefrURLFragment is the referrer URL fragment.
	FieldRefrURLFragment Field = "refr_urlfragment"

	// FieldRefrURLHost is the referrer URL host.
	FieldRefrURLHost Field = "refr_urlhost"

	// FieldRefrURLPath is the referrer URL path.
	FieldRefrURLPath Field = "refr_urlpath"

	// FieldRefrURLQuery is the referrer URL query string.
	FieldRefrURLQuery Field = "refr_urlquery"

	// FieldFormChange holds the JSON payload of a change_form event.
	FieldFormChange Field = "unstruct_event_com_snowplowanalytics_snowplow_change_form_1"

	// FieldFormFocus holds the JSON payload of a focus_form event.
	FieldFormFocus Field = "unstruct_event_com_snowplowanalytics_snowplow_focus_form_1"

	// FieldFormSubmit holds the JSON payload of a submit_form event,
	// describing the HTML form and all its inputs.
	FieldFormSubmit Field = "unstruct_event_com_snowplowanalytics_snowplow_submit_form_1"

	// FieldUserAgent is the raw useragent string.
	FieldUserAgent Field = "useragent"
)

// Fields added by the pipeline rather than the collector.
const (
	// FieldSiteName is the publisher's slug, stamped onto every row.
	FieldSiteName Field = "site_name"

	// FieldFormSubmitIsNewsletter is the newsletter classification result.
	// Defined only for submit_form rows; nil otherwise.
	FieldFormSubmitIsNewsletter Field = "form_submit_is_newsletter"
)

// Kind is the semantic type of a field's values after coercion.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindDatetime
	KindCategorical
	KindJSON
	KindBool
)

// kinds maps every recognized field to its semantic kind.
var kinds = map[Field]Kind{
	FieldBrViewHeight:           KindFloat,
	FieldBrViewWidth:            KindFloat,
	FieldDerivedTstamp:          KindDatetime,
	FieldDocHeight:              KindFloat,
	FieldDomainSessionIdx:       KindInt,
	FieldDomainUserID:           KindString,
	FieldDvceScreenHeight:       KindFloat,
	FieldDvceScreenWidth:        KindFloat,
	FieldEventID:                KindString,
	FieldEventName:              KindCategorical,
	FieldNetworkUserID:          KindString,
	FieldPageReferrer:           KindString,
	FieldPageURLFragment:        KindString,
	FieldPageURLPath:            KindString,
	FieldPageURLQuery:           KindString,
	FieldPpYOffsetMax:           KindFloat,
	FieldRefrMedium:             KindCategorical,
	FieldRefrSource:             KindCategorical,
	FieldRefrURLFragment:        KindString,
	FieldRefrURLHost:            KindString,
	FieldRefrURLPath:            KindString,
	FieldRefrURLQuery:           KindString,
	FieldFormChange:             KindJSON,
	FieldFormFocus:              KindJSON,
	FieldFormSubmit:             KindJSON,
	FieldUserAgent:              KindString,
	FieldSiteName:               KindCategorical,
	FieldFormSubmitIsNewsletter: KindBool,
}

// KindOf returns the semantic kind of a field and whether it is recognized.
func (f Field) KindOf() (Kind, bool) {
	k, ok := kinds[f]
	return k, ok
}

// Relevant returns the set of collector fields the pipeline stages. Fields
// added by the pipeline itself (site_name, form_submit_is_newsletter) are
// not part of the projection set.
func Relevant() []Field {
	return []Field{
		FieldBrViewHeight,
		FieldBrViewWidth,
		FieldDerivedTstamp,
		FieldDocHeight,
		FieldDomainSessionIdx,
		FieldDomainUserID,
		FieldDvceScreenHeight,
		FieldDvceScreenWidth,
		FieldEventID,
		FieldEventName,
		FieldNetworkUserID,
		FieldPageReferrer,
		FieldPageURLFragment,
		FieldPageURLPath,
		FieldPageURLQuery,
		FieldPpYOffsetMax,
		FieldRefrMedium,
		FieldRefrSource,
		FieldRefrURLFragment,
		FieldRefrURLHost,
		FieldRefrURLPath,
		FieldRefrURLQuery,
		FieldFormChange,
		FieldFormFocus,
		FieldFormSubmit,
		FieldUserAgent,
	}
}

// Required returns the fields that must be non-nil for a row to survive
// preprocessing. Classification and deduplication read these without
// further nil checks.
func Required() []Field {
	return []Field{
		FieldDerivedTstamp,
		FieldDocHeight,
		FieldDomainSessionIdx,
		FieldDomainUserID,
		FieldDvceScreenHeight,
		FieldDvceScreenWidth,
		FieldEventID,
		FieldEventName,
		FieldNetworkUserID,
		FieldPageURLPath,
	}
}

// IntFields returns the fields coerced to int64.
func IntFields() []Field { return fieldsOfKind(KindInt) }

// FloatFields returns the fields coerced to float64.
func FloatFields() []Field { return fieldsOfKind(KindFloat) }

// DatetimeFields returns the fields coerced to UTC timestamps.
func DatetimeFields() []Field { return fieldsOfKind(KindDatetime) }

// CategoricalFields returns the bounded-domain string fields.
func CategoricalFields() []Field {
	return []Field{FieldEventName, FieldRefrMedium, FieldRefrSource}
}

// JSONFields returns the semi-structured payload fields.
func JSONFields() []Field { return fieldsOfKind(KindJSON) }

func fieldsOfKind(k Kind) []Field {
	var out []Field
	for _, f := range Relevant() {
		if kinds[f] == k {
			out = append(out, f)
		}
	}
	return out
}

// Name is the bounded domain of event_name values.
type Name string

const (
	NamePageView   Name = "page_view"
	NamePagePing   Name = "page_ping"
	NameFocusForm  Name = "focus_form"
	NameChangeForm Name = "change_form"
	NameSubmitForm Name = "submit_form"
)

// ValidName reports whether s is a recognized event name.
func ValidName(s string) bool {
	switch Name(s) {
	case NamePageView, NamePagePing, NameFocusForm, NameChangeForm, NameSubmitForm:
		return true
	}
	return false
}
