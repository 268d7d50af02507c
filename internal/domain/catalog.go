package domain

import (
	"fmt"
	"slices"
)

// Catalog is the ordered, immutable question set loaded at startup.
type Catalog []Question

// Find returns the question with the given ID.
func (c Catalog) Find(id int) (Question, bool) {
	for i := range c {
		if c[i].ID == id {
			return c[i], true
		}
	}
	return Question{}, false
}

// Index builds an ID lookup table for repeated joins.
func (c Catalog) Index() map[int]Question {
	idx := make(map[int]Question, len(c))
	for _, q := range c {
		idx[q.ID] = q
	}
	return idx
}

// ByCategories keeps questions whose category is selected. An empty selection
// yields an empty catalog.
func (c Catalog) ByCategories(selected []Category) Catalog {
	want := make(map[Category]struct{}, len(selected))
	for _, cat := range selected {
		want[cat] = struct{}{}
	}
	out := Catalog{}
	for _, q := range c {
		if _, ok := want[q.Category]; ok {
			out = append(out, q)
		}
	}
	return out
}

// ByTypes keeps questions whose type is selected. An empty selection yields
// an empty catalog.
func (c Catalog) ByTypes(selected []QuestionType) Catalog {
	want := make(map[QuestionType]struct{}, len(selected))
	for _, qt := range selected {
		want[qt] = struct{}{}
	}
	out := Catalog{}
	for _, q := range c {
		if _, ok := want[q.Type]; ok {
			out = append(out, q)
		}
	}
	return out
}

// IDs returns the question identifiers in catalog order.
func (c Catalog) IDs() []int {
	ids := make([]int, len(c))
	for i, q := range c {
		ids[i] = q.ID
	}
	return ids
}

// Validate checks that question IDs are unique and every question uses a
// known type, category and difficulty.
func (c Collection) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCollection)
	}
	seen := make(map[int]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate question id %d", ErrInvalidCollection, c.ID, q.ID)
		}
		seen[q.ID] = struct{}{}
		switch {
		case !slices.Contains(QuestionTypes, q.Type):
			return fmt.Errorf("%w: %s: question %d has unknown type %q", ErrInvalidCollection, c.ID, q.ID, q.Type)
		case !slices.Contains(Categories, q.Category):
			return fmt.Errorf("%w: %s: question %d has unknown category %q", ErrInvalidCollection, c.ID, q.ID, q.Category)
		case !slices.Contains(Difficulties, q.Difficulty):
			return fmt.Errorf("%w: %s: question %d has unknown difficulty %q", ErrInvalidCollection, c.ID, q.ID, q.Difficulty)
		}
	}
	return nil
}
