package domain

import (
	"errors"
	"testing"
)

func TestHasAnswerChangedIsOrderIndependent(t *testing.T) {
	prev := MultiAnswer("b", "a")
	if HasAnswerChanged(MultiAnswer("a", "b"), &prev) {
		t.Fatalf("reordered selection must not count as a change")
	}
	other := MultiAnswer("a", "c")
	if !HasAnswerChanged(MultiAnswer("a", "b"), &other) {
		t.Fatalf("different selection must count as a change")
	}
}

func TestHasAnswerChangedText(t *testing.T) {
	prev := TextAnswer("int x = 5;")
	if HasAnswerChanged(TextAnswer("  int x = 5;\n"), &prev) {
		t.Fatalf("surrounding whitespace must not count as a change")
	}
	if !HasAnswerChanged(TextAnswer("int x = 6;"), &prev) {
		t.Fatalf("expected change")
	}
	if !HasAnswerChanged(TextAnswer("x"), nil) {
		t.Fatalf("missing previous answer must count as a change")
	}
	multi := MultiAnswer("x")
	if !HasAnswerChanged(TextAnswer("x"), &multi) {
		t.Fatalf("kind mismatch must count as a change")
	}
}

func TestAnswerEqualIsStrict(t *testing.T) {
	if !MultiAnswer("a", "b").Equal(MultiAnswer("a", "b")) {
		t.Fatalf("expected equal answers")
	}
	if MultiAnswer("a", "b").Equal(MultiAnswer("b", "a")) {
		t.Fatalf("deep equality keeps order")
	}
	if TextAnswer("a").Equal(MultiAnswer("a")) {
		t.Fatalf("kinds differ")
	}
}

func TestWireEncoding(t *testing.T) {
	if got := EncodeWire(MultiAnswer("A", "C")); got != `["A","C"]` {
		t.Fatalf("unexpected multi encoding %q", got)
	}
	if got := EncodeWire(MultiAnswer()); got != `[]` {
		t.Fatalf("unexpected empty encoding %q", got)
	}
	if got := EncodeWire(TextAnswer("int x;")); got != "int x;" {
		t.Fatalf("text must be sent verbatim, got %q", got)
	}

	decoded, err := DecodeWire(`["A","C"]`, TypeMultipleChoice)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(MultiAnswer("A", "C")) {
		t.Fatalf("unexpected decoded answer %+v", decoded)
	}
	single, err := DecodeWire("B", TypeMultipleChoice)
	if err != nil || !single.Equal(MultiAnswer("B")) {
		t.Fatalf("bare string should decode as single selection, got %+v err=%v", single, err)
	}
	if _, err := DecodeWire(`["A"`, TypeMultipleChoice); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	text, _ := DecodeWire(`["A"]`, TypeCodeWriting)
	if text.Kind != KindText || text.Text != `["A"]` {
		t.Fatalf("non multiple-choice answers stay text, got %+v", text)
	}
}

func TestCatalogFilters(t *testing.T) {
	catalog := Catalog{
		{ID: 1, Type: TypeMultipleChoice, Category: CategoryBasics},
		{ID: 2, Type: TypeCodeWriting, Category: CategoryLINQ},
		{ID: 3, Type: TypeMultipleChoice, Category: CategoryLINQ},
	}
	if got := catalog.ByCategories([]Category{CategoryLINQ}).IDs(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected category filter result %v", got)
	}
	if got := catalog.ByTypes([]QuestionType{TypeMultipleChoice}).IDs(); len(got) != 2 || got[0] != 1 {
		t.Fatalf("unexpected type filter result %v", got)
	}
	if got := catalog.ByCategories(nil); len(got) != 0 {
		t.Fatalf("empty selection must yield no questions, got %d", len(got))
	}
}
