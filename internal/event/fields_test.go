package event

import (
	"testing"
	"time"
)

func TestRequired_IsSubsetOfRelevant(t *testing.T) {
	relevant := make(map[Field]bool)
	for _, f := range Relevant() {
		relevant[f] = true
	}
	for _, f := range Required() {
		if !relevant[f] {
			t.Errorf("required field %s is not relevant", f)
		}
	}
}

func TestEveryRelevantFieldHasAKind(t *testing.T) {
	for _, f := range Relevant() {
		if _, ok := f.KindOf(); !ok {
			t.Errorf("field %s has no kind", f)
		}
	}
	for _, f := range []Field{FieldSiteName, FieldFormSubmitIsNewsletter} {
		if _, ok := f.KindOf(); !ok {
			t.Errorf("pipeline field %s has no kind", f)
		}
	}
}

func TestKindPartitionsAreDisjoint(t *testing.T) {
	seen := make(map[Field]string)
	groups := map[string][]Field{
		"int":         IntFields(),
		"float":       FloatFields(),
		"datetime":    DatetimeFields(),
		"categorical": CategoricalFields(),
		"json":        JSONFields(),
	}
	for group, fields := range groups {
		for _, f := range fields {
			if prev, ok := seen[f]; ok {
				t.Errorf("field %s is in both %s and %s", f, prev, group)
			}
			seen[f] = group
		}
	}
}

func TestValidName(t *testing.T) {
	for _, s := range []string{"page_view", "page_ping", "focus_form", "change_form", "submit_form"} {
		if !ValidName(s) {
			t.Errorf("%s not recognized", s)
		}
	}
	if ValidName("link_click") {
		t.Error("link_click recognized")
	}
}

func TestRow_Accessors(t *testing.T) {
	ts := time.Date(2022, 11, 2, 5, 0, 0, 0, time.UTC)
	row := Row{
		FieldEventID:       "e1",
		FieldDerivedTstamp: ts,
		FieldDocHeight:     4214.0,
		FieldEventName:     "page_ping",
		FieldPageReferrer:  nil,
	}

	if row.String(FieldEventID) != "e1" {
		t.Errorf("String = %q", row.String(FieldEventID))
	}
	if got, ok := row.Time(FieldDerivedTstamp); !ok || !got.Equal(ts) {
		t.Errorf("Time = %v, %v", got, ok)
	}
	if got, ok := row.Float(FieldDocHeight); !ok || got != 4214.0 {
		t.Errorf("Float = %v, %v", got, ok)
	}
	if row.EventName() != NamePagePing {
		t.Errorf("EventName = %s", row.EventName())
	}
	if !row.IsNil(FieldPageReferrer) || !row.IsNil(FieldUserAgent) {
		t.Error("IsNil wrong for nil value or absent key")
	}
	if row.IsNil(FieldEventID) {
		t.Error("IsNil wrong for present value")
	}
}

func TestRow_CloneIsIndependent(t *testing.T) {
	row := Row{FieldEventID: "e1"}
	clone := row.Clone()
	clone[FieldEventID] = "e2"
	if row.String(FieldEventID) != "e1" {
		t.Error("clone shares storage with the original")
	}
}
