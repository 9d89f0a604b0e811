// Package concept holds coded concepts, drugs and the answers a question
// concept accepts.
package concept

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofhir/fhir/r4"

	"github.com/ehr/ehrcore/internal/platform/apperr"
)

// Message keys reported in validation errors.
const (
	KeyConceptRequired     = "ConceptAnswer.error.conceptRequired"
	KeyAnswerRequired      = "ConceptAnswer.error.answerRequired"
	KeyConceptNameRequired = "Concept.error.nameRequired"
	KeyDrugNameRequired    = "Drug.error.nameRequired"
)

const (
	localConceptSystem = "urn:ehrcore:concept"
	drugSystem         = "urn:ehrcore:drug"
)

// Concept is a coded term. ID zero means not yet stored.
type Concept struct {
	ID     int    `json:"id"`
	UUID   string `json:"uuid,omitempty"`
	Name   string `json:"name"`
	Code   string `json:"code,omitempty"`
	System string `json:"system,omitempty"`
}

// Equal compares stored concepts by id. A concept without an id is only
// equal to itself.
func (c *Concept) Equal(other *Concept) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil || c.ID == 0 || other.ID == 0 {
		return false
	}
	return c.ID == other.ID
}

func (c *Concept) Hash() int32 { return int32(c.ID) }

// Drug is a formulation that can stand as an answer in place of a concept.
type Drug struct {
	ID        int    `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	Name      string `json:"name"`
	ConceptID *int   `json:"concept_id,omitempty"`
}

// Equal follows the same rules as Concept.Equal.
func (d *Drug) Equal(other *Drug) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil || d.ID == 0 || other.ID == 0 {
		return false
	}
	return d.ID == other.ID
}

func (d *Drug) Hash() int32 { return int32(d.ID) }

// ConceptAnswer links a question concept to one allowed answer, given as a
// concept, a drug, or both.
type ConceptAnswer struct {
	ID            *int      `json:"id,omitempty"`
	UUID          string    `json:"uuid,omitempty"`
	Concept       *Concept  `json:"concept,omitempty"`
	AnswerConcept *Concept  `json:"answer_concept,omitempty"`
	AnswerDrug    *Drug     `json:"answer_drug,omitempty"`
	Creator       string    `json:"creator,omitempty"`
	DateCreated   time.Time `json:"date_created"`
}

// NewAnswer returns a transient answer; drug may be nil.
func NewAnswer(answer *Concept, drug *Drug) *ConceptAnswer {
	return &ConceptAnswer{AnswerConcept: answer, AnswerDrug: drug}
}

func (a *ConceptAnswer) IsNew() bool { return a.ID == nil }

func (a *ConceptAnswer) GlobalID() string { return a.UUID }

func (a *ConceptAnswer) StampCreated(by string, at time.Time) {
	if a.Creator == "" {
		a.Creator = by
	}
	if a.DateCreated.IsZero() {
		a.DateCreated = at
	}
}

func (a *ConceptAnswer) SnapshotAudit() func() {
	creator, created := a.Creator, a.DateCreated
	return func() { a.Creator, a.DateCreated = creator, created }
}

// Answers are never edited in place, so change auditing is not kept. The
// accessors always report nothing and the setters discard their input.
func (a *ConceptAnswer) StampChanged(string, time.Time) {}

func (a *ConceptAnswer) ChangedBy() string { return "" }

func (a *ConceptAnswer) DateChanged() *time.Time { return nil }

func (a *ConceptAnswer) SetChangedBy(string) {}

func (a *ConceptAnswer) SetDateChanged(time.Time) {}

// Equal compares by id when both answers are stored. Otherwise each
// reference pair populated on both sides must match; a pair missing on
// either side is skipped, so answers sharing no populated reference compare
// equal.
func (a *ConceptAnswer) Equal(other *ConceptAnswer) bool {
	if other == nil {
		return false
	}
	if a.ID != nil && other.ID != nil {
		return *a.ID == *other.ID
	}
	if a.Concept != nil && other.Concept != nil && !a.Concept.Equal(other.Concept) {
		return false
	}
	if a.AnswerConcept != nil && other.AnswerConcept != nil && !a.AnswerConcept.Equal(other.AnswerConcept) {
		return false
	}
	if a.AnswerDrug != nil && other.AnswerDrug != nil && !a.AnswerDrug.Equal(other.AnswerDrug) {
		return false
	}
	return true
}

// Hash is the id when stored, else a combination of the present references.
func (a *ConceptAnswer) Hash() int32 {
	if a.ID != nil {
		return int32(*a.ID)
	}
	h := int32(9)
	if a.Concept != nil {
		h = h*a.Concept.Hash() + 31
	}
	if a.AnswerConcept != nil {
		h = h*a.AnswerConcept.Hash() + 31
	}
	if a.AnswerDrug != nil {
		h = h*a.AnswerDrug.Hash() + 31
	}
	return h
}

// transient returns a shallow copy without the id, so it compares and
// hashes by its references.
func (a *ConceptAnswer) transient() *ConceptAnswer {
	out := *a
	out.ID = nil
	return &out
}

// Clone copies the answer and its references.
func (a *ConceptAnswer) Clone() *ConceptAnswer {
	out := *a
	if a.ID != nil {
		id := *a.ID
		out.ID = &id
	}
	if a.Concept != nil {
		c := *a.Concept
		out.Concept = &c
	}
	if a.AnswerConcept != nil {
		c := *a.AnswerConcept
		out.AnswerConcept = &c
	}
	if a.AnswerDrug != nil {
		d := *a.AnswerDrug
		out.AnswerDrug = &d
	}
	return &out
}

// Validate requires the question concept, then an answer concept or drug.
func Validate(a *ConceptAnswer) error {
	if a.Concept == nil {
		return apperr.Required("concept", KeyConceptRequired)
	}
	if a.AnswerConcept == nil && a.AnswerDrug == nil {
		return apperr.Required("answerConcept", KeyAnswerRequired)
	}
	return nil
}

func validateConcept(c *Concept) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Required("name", KeyConceptNameRequired)
	}
	return nil
}

func validateDrug(d *Drug) error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.Required("name", KeyDrugNameRequired)
	}
	return nil
}

// Coding renders the concept as an R4 Coding. Concepts without an external
// code fall back to their local id.
func (c *Concept) Coding() r4.Coding {
	system, code := c.System, c.Code
	if code == "" {
		system, code = localConceptSystem, strconv.Itoa(c.ID)
	}
	name := c.Name
	return r4.Coding{System: &system, Code: &code, Display: &name}
}

// Coding renders the answer: its concept when present, else its drug.
func (a *ConceptAnswer) Coding() r4.Coding {
	if a.AnswerConcept != nil {
		return a.AnswerConcept.Coding()
	}
	system, code, name := drugSystem, "", ""
	if a.AnswerDrug != nil {
		code, name = strconv.Itoa(a.AnswerDrug.ID), a.AnswerDrug.Name
	}
	return r4.Coding{System: &system, Code: &code, Display: &name}
}

// AnswerOptions renders the allowed answers of question as a CodeableConcept,
// the question name as its text.
func AnswerOptions(question *Concept, answers []*ConceptAnswer) r4.CodeableConcept {
	cc := r4.CodeableConcept{Coding: make([]r4.Coding, 0, len(answers))}
	if question != nil {
		text := question.Name
		cc.Text = &text
	}
	for _, a := range answers {
		cc.Coding = append(cc.Coding, a.Coding())
	}
	return cc
}
