package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
)

func TestAdminProgressAccess(t *testing.T) {
	ctx := context.Background()
	verifier := identity.NewVerifier("secret")
	practice := newTestPractice(nil)
	practice.Stores(ctx, "user:u1").Progress.UpdateQuestionProgress(ctx, 1, domain.MultiAnswer("A"), true, 0)
	handler := NewAdminHandler(verifier, practice)

	admin, _ := verifier.SignToken("ops", []string{identity.RoleAdminRead}, time.Hour)
	learner, _ := verifier.SignToken("u1", nil, time.Hour)
	expired, _ := verifier.SignToken("ops", []string{identity.RoleAdminRead}, -time.Minute)

	cases := []struct {
		name    string
		header  string
		profile string
		want    int
	}{
		{"no token", "", "user:u1", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "user:u1", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "user:u1", http.StatusUnauthorized},
		{"missing role", "Bearer " + learner, "user:u1", http.StatusForbidden},
		{"missing profile", "Bearer " + admin, "", http.StatusBadRequest},
		{"admin", "Bearer " + admin, "user:u1", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/progress?profile="+tc.profile, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeProgress(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
		if tc.want != http.StatusOK {
			continue
		}
		var snap struct {
			TotalQuestionsAnswered int `json:"totalQuestionsAnswered"`
			BestStreak             int `json:"bestStreak"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snap.TotalQuestionsAnswered != 1 || snap.BestStreak != 1 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/progress?profile=user:u2", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	handler.ServeProgress(rec, req)
	var other struct {
		TotalQuestionsAnswered int `json:"totalQuestionsAnswered"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&other); err != nil || other.TotalQuestionsAnswered != 0 {
		t.Fatalf("profiles must not share progress, got %+v err=%v", other, err)
	}
}

func TestAdminProgressMethodNotAllowed(t *testing.T) {
	handler := NewAdminHandler(identity.NewVerifier("secret"), newTestPractice(nil))
	rec := httptest.NewRecorder()
	handler.ServeProgress(rec, httptest.NewRequest(http.MethodPost, "/admin/progress", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
