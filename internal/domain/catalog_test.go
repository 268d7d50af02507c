package domain

import (
	"errors"
	"testing"
)

func TestCollectionValidate(t *testing.T) {
	valid := Collection{ID: "csharp", Questions: []Question{
		{ID: 1, Type: TypeTrueFalse, Category: CategoryBasics, Difficulty: DifficultyBeginner},
		{ID: 2, Type: TypeCodeWriting, Category: CategoryAsync, Difficulty: DifficultyAdvanced},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid collection, got %v", err)
	}

	cases := map[string]func(c *Collection){
		"missing id":         func(c *Collection) { c.ID = "" },
		"duplicate id":       func(c *Collection) { c.Questions[1].ID = 1 },
		"unknown type":       func(c *Collection) { c.Questions[0].Type = "essay" },
		"unknown category":   func(c *Collection) { c.Questions[1].Category = "pointers" },
		"unknown difficulty": func(c *Collection) { c.Questions[0].Difficulty = "expert" },
	}
	for name, mutate := range cases {
		c := Collection{ID: valid.ID, Questions: append([]Question(nil), valid.Questions...)}
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidCollection) {
			t.Fatalf("%s: expected ErrInvalidCollection, got %v", name, err)
		}
	}
}
