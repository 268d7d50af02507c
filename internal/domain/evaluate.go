package domain

import "strings"

// IsCorrect judges an answer offline against the catalog. It is pure and is
// used for live scoring as well as for recomputing statistics. Unknown
// questions, unknown types and answers of the wrong kind are never correct.
func IsCorrect(questionID int, answer Answer, catalog Catalog) bool {
	question, ok := catalog.Find(questionID)
	if !ok {
		return false
	}
	return question.Check(answer)
}

// Check judges an answer against this question's canonical solution.
func (q Question) Check(answer Answer) bool {
	switch q.Type {
	case TypeMultipleChoice:
		if answer.Kind != KindMulti {
			return false
		}
		return sameSet(answer.Selected, q.CorrectOptions)
	case TypeTrueFalse:
		if answer.Kind != KindText {
			return false
		}
		return answer.Text == q.Solution
	case TypeFillInBlank, TypeErrorSpotting, TypeCodeWriting:
		if answer.Kind != KindText {
			return false
		}
		return StripCodeFence(answer.Text) == StripCodeFence(q.Solution)
	case TypeOutputPrediction:
		if answer.Kind != KindText {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(answer.Text), strings.TrimSpace(q.Solution))
	default:
		return false
	}
}

// StripCodeFence removes a surrounding ``` block (with an optional language
// tag on the opening line) and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		rest := s[3:]
		// The language tag can only be told apart from code when the fence
		// opens its own line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		s = rest
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsAnswered reports whether the answer is complete enough to count as given
// for the question's type.
func IsAnswered(q Question, answer Answer) bool {
	switch q.Type {
	case TypeFillInBlank, TypeErrorSpotting:
		text := strings.TrimSpace(answer.Text)
		return answer.Kind == KindText && text != "" && text != strings.TrimSpace(q.Template)
	case TypeOutputPrediction, TypeCodeWriting:
		return answer.Kind == KindText && strings.TrimSpace(answer.Text) != ""
	case TypeMultipleChoice:
		return answer.Kind == KindMulti && len(answer.Selected) > 0
	default:
		return answer.Kind == KindText && answer.Text != ""
	}
}
