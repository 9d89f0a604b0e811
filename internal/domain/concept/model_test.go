package concept

import (
	"errors"
	"testing"
	"time"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

func intPtr(v int) *int { return &v }

var (
	yes     = &Concept{ID: 11, Name: "Yes"}
	no      = &Concept{ID: 12, Name: "No"}
	smokes  = &Concept{ID: 1, Name: "Smokes?"}
	aspirin = &Drug{ID: 5, Name: "Aspirin 81mg"}
)

func TestEqual_StoredAnswersCompareByID(t *testing.T) {
	a := &ConceptAnswer{ID: intPtr(1), Concept: smokes, AnswerConcept: yes}
	b := &ConceptAnswer{ID: intPtr(1), Concept: smokes, AnswerConcept: no}
	c := &ConceptAnswer{ID: intPtr(2), Concept: smokes, AnswerConcept: yes}

	if !a.Equal(b) {
		t.Error("same id must be equal whatever the references")
	}
	if a.Equal(c) {
		t.Error("different ids must differ even with identical references")
	}
}

func TestEqual_StructuralWhenTransient(t *testing.T) {
	tests := []struct {
		name string
		a, b *ConceptAnswer
		want bool
	}{
		{"same references", &ConceptAnswer{Concept: smokes, AnswerConcept: yes}, &ConceptAnswer{Concept: smokes, AnswerConcept: yes}, true},
		{"different answer", &ConceptAnswer{Concept: smokes, AnswerConcept: yes}, &ConceptAnswer{Concept: smokes, AnswerConcept: no}, false},
		{"missing side skipped", &ConceptAnswer{Concept: smokes, AnswerConcept: yes}, &ConceptAnswer{AnswerConcept: yes, AnswerDrug: aspirin}, true},
		{"disjoint fields are equal", &ConceptAnswer{AnswerConcept: yes}, &ConceptAnswer{AnswerDrug: aspirin}, true},
		{"empty answers are equal", &ConceptAnswer{}, &ConceptAnswer{}, true},
		{"one stored one transient", &ConceptAnswer{ID: intPtr(3), AnswerConcept: yes}, &ConceptAnswer{AnswerConcept: yes}, true},
		{"nil other", &ConceptAnswer{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqual_UnsavedReferencesOnlyMatchThemselves(t *testing.T) {
	draft := &Concept{Name: "Maybe"}
	copyOfDraft := &Concept{Name: "Maybe"}

	a := &ConceptAnswer{AnswerConcept: draft}
	if !a.Equal(&ConceptAnswer{AnswerConcept: draft}) {
		t.Error("the same unsaved concept must match itself")
	}
	if a.Equal(&ConceptAnswer{AnswerConcept: copyOfDraft}) {
		t.Error("distinct unsaved concepts must not match")
	}
}

func TestHash(t *testing.T) {
	if got := (&ConceptAnswer{ID: intPtr(77), Concept: smokes}).Hash(); got != 77 {
		t.Errorf("stored answer hash = %d, want 77", got)
	}
	if got := (&ConceptAnswer{}).Hash(); got != 9 {
		t.Errorf("empty answer hash = %d, want 9", got)
	}

	want := int32(9)
	want = want*1 + 31
	want = want*11 + 31
	want = want*5 + 31
	if got := (&ConceptAnswer{Concept: smokes, AnswerConcept: yes, AnswerDrug: aspirin}).Hash(); got != want {
		t.Errorf("hash = %d, want %d", got, want)
	}
}

func TestHash_WrapsAround(t *testing.T) {
	big := &Concept{ID: 1 << 30}
	a := &ConceptAnswer{Concept: big, AnswerConcept: big}
	want := int32(9)
	want = want*int32(1<<30) + 31
	want = want*int32(1<<30) + 31
	if got := a.Hash(); got != want {
		t.Errorf("hash = %d, want %d", got, want)
	}
}

func TestHash_EqualAnswersHashAlike(t *testing.T) {
	a := &ConceptAnswer{Concept: smokes, AnswerConcept: yes}
	b := &ConceptAnswer{Concept: &Concept{ID: 1}, AnswerConcept: &Concept{ID: 11}}
	if !a.Equal(b) || a.Hash() != b.Hash() {
		t.Errorf("equal answers must share a hash: %d vs %d", a.Hash(), b.Hash())
	}
}

func TestHash_StableUnderUnrelatedMutation(t *testing.T) {
	a := &ConceptAnswer{ID: intPtr(4), Concept: smokes}
	before := a.Hash()
	a.AnswerConcept = no
	a.Creator = "someone"
	if a.Hash() != before {
		t.Error("id hash must not depend on references")
	}
}

func TestChangeAuditingIsNoOp(t *testing.T) {
	a := &ConceptAnswer{}
	a.SetChangedBy("bob")
	a.SetDateChanged(time.Now())
	a.StampChanged("bob", time.Now())
	if a.ChangedBy() != "" || a.DateChanged() != nil {
		t.Error("concept answers never report a changer")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		a     *ConceptAnswer
		field string
		key   string
	}{
		{"nothing set cites concept", &ConceptAnswer{}, "concept", KeyConceptRequired},
		{"answer without concept", &ConceptAnswer{AnswerConcept: yes}, "concept", KeyConceptRequired},
		{"concept without answer", &ConceptAnswer{Concept: smokes}, "answerConcept", KeyAnswerRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *apperr.ValidationError
			if err := Validate(tt.a); !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field || ve.Key != tt.key {
				t.Errorf("expected %s/%s, got %s/%s", tt.field, tt.key, ve.Field, ve.Key)
			}
		})
	}

	if err := Validate(&ConceptAnswer{Concept: smokes, AnswerDrug: aspirin}); err != nil {
		t.Errorf("drug answer should be valid, got %v", err)
	}
}

func TestCoding(t *testing.T) {
	coded := &Concept{ID: 3, Name: "Yes", Code: "373066001", System: "http://snomed.info/sct"}
	c := (&ConceptAnswer{AnswerConcept: coded}).Coding()
	if *c.System != "http://snomed.info/sct" || *c.Code != "373066001" || *c.Display != "Yes" {
		t.Errorf("unexpected coding %s|%s|%s", *c.System, *c.Code, *c.Display)
	}

	local := yes.Coding()
	if *local.System != localConceptSystem || *local.Code != "11" {
		t.Errorf("expected local fallback, got %s|%s", *local.System, *local.Code)
	}

	drug := (&ConceptAnswer{AnswerDrug: aspirin}).Coding()
	if *drug.System != drugSystem || *drug.Code != "5" || *drug.Display != "Aspirin 81mg" {
		t.Errorf("unexpected drug coding %s|%s|%s", *drug.System, *drug.Code, *drug.Display)
	}
}

func TestAnswerOptions(t *testing.T) {
	cc := AnswerOptions(smokes, []*ConceptAnswer{{AnswerConcept: yes}, {AnswerConcept: no}})
	if cc.Text == nil || *cc.Text != "Smokes?" {
		t.Errorf("unexpected text %v", cc.Text)
	}
	if len(cc.Coding) != 2 || *cc.Coding[1].Display != "No" {
		t.Errorf("unexpected codings %+v", cc.Coding)
	}
}
