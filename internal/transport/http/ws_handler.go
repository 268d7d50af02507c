package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"quiz-practice/internal/app"
	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
)

type WSHandler struct {
	practice          *app.Practice
	verifier          *identity.Verifier
	defaultCollection string
	upgrader          websocket.Upgrader
}

// NewWSHandler serves quizzes from defaultCollection unless the client asks
// for another one. A nil verifier treats every client as anonymous.
func NewWSHandler(practice *app.Practice, verifier *identity.Verifier, defaultCollection string) *WSHandler {
	return &WSHandler{
		practice:          practice,
		verifier:          verifier,
		defaultCollection: defaultCollection,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// answerPayload carries the answer in wire format: a JSON array of option
// ids for multiple choice, plain text otherwise. QuestionID defaults to the
// question on screen when the message is read.
type answerPayload struct {
	QuestionID int    `json:"questionId"`
	Value      string `json:"value"`
}

type finishPayload struct {
	Early bool `json:"early"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz per
// connection. Answers are scored concurrently with navigation; each outcome
// message names its question.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	collectionID := r.URL.Query().Get("collection")
	if collectionID == "" {
		collectionID = h.defaultCollection
	}
	if collectionID == "" {
		http.Error(w, "missing collection", http.StatusBadRequest)
		return
	}

	id := h.resolve(r)
	quiz, err := h.practice.Open(r.Context(), collectionID, id)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("ws open collection %s: %v", collectionID, err)
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}
	defer quiz.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// keep draining so in-flight answers can finish
				for range send {
				}
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "view", Payload: quiz.View()}

	ctx := r.Context()
	var inflight sync.WaitGroup
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var (
			view   app.View
			opErr  error
			sendOK = true
		)
		switch inbound.Type {
		case "start":
			var cfg app.Config
			if err := json.Unmarshal(inbound.Payload, &cfg); err != nil {
				send <- errorMessage("invalid start payload")
				continue
			}
			view, opErr = quiz.Start(ctx, cfg)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload")
				continue
			}
			current := quiz.View()
			if current.Question == nil {
				send <- errorMessage(domain.ErrNoQuestions.Error())
				continue
			}
			question := *current.Question
			if payload.QuestionID != 0 && payload.QuestionID != question.ID {
				found, ok := quiz.Question(payload.QuestionID)
				if !ok {
					send <- errorMessage(domain.ErrQuestionNotFound.Error())
					continue
				}
				question = found
			}
			answer, err := domain.DecodeWire(payload.Value, question.Type)
			if err != nil {
				send <- errorMessage(err.Error())
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				outcome, err := quiz.AnswerQuestion(ctx, question.ID, answer)
				if err != nil {
					send <- errorMessage(err.Error())
					return
				}
				send <- outboundMessage[any]{Type: "outcome", Payload: outcome}
				send <- outboundMessage[any]{Type: "view", Payload: quiz.View()}
			}()
			continue
		case "next":
			view, opErr = quiz.Next()
		case "prev":
			view, opErr = quiz.Prev()
		case "finish":
			var payload finishPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- errorMessage("invalid finish payload")
					continue
				}
			}
			view, opErr = quiz.Finish(ctx, payload.Early)
			if opErr == nil {
				send <- outboundMessage[any]{Type: "results", Payload: view}
				sendOK = false
			}
		case "retry":
			view, opErr = quiz.Retry(ctx)
		case "home":
			view = quiz.GoHome()
		default:
			send <- errorMessage("unsupported message type")
			continue
		}
		if opErr != nil {
			send <- errorMessage(opErr.Error())
			continue
		}
		if sendOK {
			send <- outboundMessage[any]{Type: "view", Payload: view}
		}
	}

	inflight.Wait()
	close(send)
	<-writerDone
}

// resolve reads the bearer token from the token query parameter or the
// Authorization header. Anonymous clients may pass a client id to resume
// their own session.
func (h *WSHandler) resolve(r *http.Request) identity.Identity {
	clientID := strings.TrimSpace(r.URL.Query().Get("client"))
	if h.verifier == nil {
		return identity.Anonymous{ClientID: clientID}
	}
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = r.Header.Get("Authorization")
	}
	return h.verifier.Resolve(strings.TrimSpace(raw), clientID)
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
