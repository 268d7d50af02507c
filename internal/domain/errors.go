package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no active quiz session exists.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrCollectionNotFound indicates the question collection could not be loaded.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidCollection is returned when a loaded collection breaks the data model.
	ErrInvalidCollection = errors.New("invalid collection")
	// ErrQuestionNotFound indicates a question ID is not part of the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when navigating a quiz whose filter matched nothing.
	ErrNoQuestions = errors.New("no questions match the selected filter")
	// ErrInvalidState is returned when an action is not allowed in the current quiz state.
	ErrInvalidState = errors.New("action not allowed in current quiz state")
	// ErrNotAnswered is returned when finishing before the last question has an answer.
	ErrNotAnswered = errors.New("current question has not been answered")
	// ErrInvalidAnswer indicates a wire-encoded answer could not be decoded.
	ErrInvalidAnswer = errors.New("invalid answer encoding")
)
