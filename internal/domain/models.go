package domain

import (
	"math"
	"time"
)

// QuestionType is the closed set of question variants.
type QuestionType string

const (
	TypeMultipleChoice   QuestionType = "multiple_choice"
	TypeTrueFalse        QuestionType = "true_false"
	TypeFillInBlank      QuestionType = "fill_in_blank"
	TypeErrorSpotting    QuestionType = "error_spotting"
	TypeOutputPrediction QuestionType = "output_prediction"
	TypeCodeWriting      QuestionType = "code_writing"
)

// QuestionTypes lists every known question type in display order.
var QuestionTypes = []QuestionType{
	TypeMultipleChoice,
	TypeTrueFalse,
	TypeFillInBlank,
	TypeErrorSpotting,
	TypeOutputPrediction,
	TypeCodeWriting,
}

// Category is a fixed topical grouping.
type Category string

const (
	CategoryBasics      Category = "basics"
	CategoryOOP         Category = "oop"
	CategoryCollections Category = "collections"
	CategoryLINQ        Category = "linq"
	CategoryAsync       Category = "async"
	CategoryExceptions  Category = "exceptions"
	CategoryGenerics    Category = "generics"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryBasics,
	CategoryOOP,
	CategoryCollections,
	CategoryLINQ,
	CategoryAsync,
	CategoryExceptions,
	CategoryGenerics,
}

// Difficulty is the closed set of difficulty levels.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Difficulties lists every known difficulty from easiest to hardest.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// Option represents a selectable choice of a multiple-choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is immutable once the catalog is loaded.
type Question struct {
	ID         int          `json:"id"`
	Type       QuestionType `json:"type"`
	Category   Category     `json:"category"`
	Difficulty Difficulty   `json:"difficulty"`
	Prompt     string       `json:"prompt"`

	Options        []Option `json:"options,omitempty"`
	CorrectOptions []string `json:"correctOptions,omitempty"`

	// Template holds starter code containing the blank or the error to fix.
	Template    string `json:"template,omitempty"`
	Solution    string `json:"solution,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Collection is a named set of questions as served by a catalog loader.
type Collection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// QuestionProgress is the per-question performance record.
type QuestionProgress struct {
	QuestionID       int       `json:"questionId"`
	IsAnswered       bool      `json:"isAnswered"`
	IsCorrect        bool      `json:"isCorrect"`
	Attempts         int       `json:"attempts"`
	LastAnswer       Answer    `json:"lastAnswer"`
	TimeSpentSeconds int       `json:"timeSpentSeconds,omitempty"`
	LastAttemptAt    time.Time `json:"lastAttemptAt"`
}

// DifficultyProgress counts questions of a single difficulty inside a category.
type DifficultyProgress struct {
	TotalQuestions    int `json:"totalQuestions"`
	AnsweredQuestions int `json:"answeredQuestions"`
	CorrectAnswers    int `json:"correctAnswers"`
}

// CategoryProgress aggregates QuestionProgress records of one category.
type CategoryProgress struct {
	Category          Category                           `json:"category"`
	TotalQuestions    int                                `json:"totalQuestions"`
	AnsweredQuestions int                                `json:"answeredQuestions"`
	CorrectAnswers    int                                `json:"correctAnswers"`
	SuccessRate       float64                            `json:"successRate"`
	ByDifficulty      map[Difficulty]*DifficultyProgress `json:"byDifficulty"`
}

// TypeProgress aggregates QuestionProgress records of one question type.
type TypeProgress struct {
	Type              QuestionType `json:"type"`
	TotalQuestions    int          `json:"totalQuestions"`
	AnsweredQuestions int          `json:"answeredQuestions"`
	CorrectAnswers    int          `json:"correctAnswers"`
	SuccessRate       float64      `json:"successRate"`
}

// QuizSession is the anonymous user's time-boxed working set.
type QuizSession struct {
	ID             string         `json:"id"`
	CollectionID   string         `json:"collectionId"`
	CollectionName string         `json:"collectionName"`
	Questions      []Question     `json:"questions"`
	Answers        map[int]Answer `json:"answers"`
	// TimeSpent holds elapsed seconds per answered question.
	TimeSpent      map[int]int    `json:"timeSpent,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}

// QuestionIDs returns the session's question identifiers in order.
func (s QuizSession) QuestionIDs() []int {
	ids := make([]int, len(s.Questions))
	for i, q := range s.Questions {
		ids[i] = q.ID
	}
	return ids
}

// SuccessRate returns correct/answered as a percentage rounded to one decimal,
// or 0 when nothing was answered.
func SuccessRate(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	rate := float64(correct) / float64(answered) * 100
	return math.Round(rate*10) / 10
}
