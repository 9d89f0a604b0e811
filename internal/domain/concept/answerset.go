package concept

// AnswerSet is an insertion-ordered collection of answers. Two answers are
// duplicates only when they populate the same kinds of answer, their hashes
// match and Equal holds, so transient answers that are vacuously equal but
// reference different things stay apart. Equal is not transitive, so
// membership is a linear scan.
type AnswerSet struct {
	items []*ConceptAnswer
}

func NewAnswerSet(answers ...*ConceptAnswer) *AnswerSet {
	s := &AnswerSet{}
	for _, a := range answers {
		s.Add(a)
	}
	return s
}

func (s *AnswerSet) Contains(a *ConceptAnswer) bool {
	return s.indexOf(a) >= 0
}

// Add appends a unless an equal answer is already present.
func (s *AnswerSet) Add(a *ConceptAnswer) bool {
	if a == nil || s.Contains(a) {
		return false
	}
	s.items = append(s.items, a)
	return true
}

// Remove drops the first answer equal to a.
func (s *AnswerSet) Remove(a *ConceptAnswer) bool {
	i := s.indexOf(a)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

func (s *AnswerSet) Len() int { return len(s.items) }

// Items returns the answers in insertion order.
func (s *AnswerSet) Items() []*ConceptAnswer {
	out := make([]*ConceptAnswer, len(s.items))
	copy(out, s.items)
	return out
}

func (s *AnswerSet) indexOf(a *ConceptAnswer) int {
	h := a.Hash()
	for i, existing := range s.items {
		if existing.Hash() == h && sameKind(existing, a) && existing.Equal(a) {
			return i
		}
	}
	return -1
}

// sameKind reports whether a and b both answer with a concept, a drug, or
// both.
func sameKind(a, b *ConceptAnswer) bool {
	return (a.AnswerConcept == nil) == (b.AnswerConcept == nil) &&
		(a.AnswerDrug == nil) == (b.AnswerDrug == nil)
}
