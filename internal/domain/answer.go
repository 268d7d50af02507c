package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AnswerKind discriminates the Answer variants.
type AnswerKind string

const (
	// KindText carries a single string (true/false, fill, code, output).
	KindText AnswerKind = "text"
	// KindMulti carries the selected option identifiers of a multiple-choice question.
	KindMulti AnswerKind = "multi"
)

// Answer is a user-supplied value for one question.
type Answer struct {
	Kind     AnswerKind `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Selected []string   `json:"selected,omitempty"`
}

// TextAnswer builds a single-text answer.
func TextAnswer(text string) Answer {
	return Answer{Kind: KindText, Text: text}
}

// MultiAnswer builds a multi-select answer. The order of ids is kept as given.
func MultiAnswer(ids ...string) Answer {
	selected := make([]string, len(ids))
	copy(selected, ids)
	return Answer{Kind: KindMulti, Selected: selected}
}

// IsZero reports whether the answer carries no variant at all.
func (a Answer) IsZero() bool {
	return a.Kind == ""
}

// Equal reports deep value equality, including selection order.
func (a Answer) Equal(other Answer) bool {
	if a.Kind != other.Kind || a.Text != other.Text || len(a.Selected) != len(other.Selected) {
		return false
	}
	for i := range a.Selected {
		if a.Selected[i] != other.Selected[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with a.
func (a Answer) Clone() Answer {
	if a.Selected == nil {
		return a
	}
	out := a
	out.Selected = append([]string(nil), a.Selected...)
	return out
}

// HasAnswerChanged compares next against the last server-confirmed answer.
// Multi-select answers are compared as sets, text answers after trimming.
// A missing previous answer or a kind mismatch always counts as a change.
func HasAnswerChanged(next Answer, previous *Answer) bool {
	if previous == nil || previous.Kind != next.Kind {
		return true
	}
	switch next.Kind {
	case KindMulti:
		return !sameSet(next.Selected, previous.Selected)
	case KindText:
		return strings.TrimSpace(next.Text) != strings.TrimSpace(previous.Text)
	default:
		return true
	}
}

func sameSet(a, b []string) bool {
	sa := sortedUnique(a)
	sb := sortedUnique(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EncodeWire converts an answer to the single string the scoring API expects.
// Multi-select answers become a JSON array string; text is sent verbatim.
func EncodeWire(a Answer) string {
	if a.Kind != KindMulti {
		return a.Text
	}
	selected := a.Selected
	if selected == nil {
		selected = []string{}
	}
	data, _ := json.Marshal(selected)
	return string(data)
}

// DecodeWire parses an answer string received from the scoring API.
// Multiple-choice values must be a JSON array; a bare string is accepted
// as a single selection.
func DecodeWire(raw string, qt QuestionType) (Answer, error) {
	if qt != TypeMultipleChoice {
		return TextAnswer(raw), nil
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return MultiAnswer(), nil
	}
	if !strings.HasPrefix(trimmed, "[") {
		return MultiAnswer(trimmed), nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(trimmed), &ids); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return MultiAnswer(ids...), nil
}
