package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"tripparty/pkg/ai"
	"tripparty/pkg/domain"
	"tripparty/pkg/store"
)

func TestAskAdvisorFreshUserPrompt(t *testing.T) {
	a, mem, gen := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	result, err := a.AskAdvisor(context.Background(), user.ID, "where should I go in October?", "", 0)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Reply != gen.reply {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
	if len(gen.messages) != 2 {
		t.Fatalf("fresh user prompt should be system + user, got %d messages", len(gen.messages))
	}
	if gen.messages[0].Role != "system" || gen.messages[0].Content != advisorSystemPrompt {
		t.Fatalf("first prompt message should be the system instruction, got %+v", gen.messages[0])
	}
	if gen.messages[1].Role != domain.RoleUser || gen.messages[1].Content != "where should I go in October?" {
		t.Fatalf("second prompt message should be the new question, got %+v", gen.messages[1])
	}

	rows, err := mem.ListAdvisorMessages(user.ID, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected exactly two stored rows, got %d", len(rows))
	}
	if rows[0].Role != domain.RoleUser || rows[1].Role != domain.RoleAssistant {
		t.Fatalf("rows out of order: %s then %s", rows[0].Role, rows[1].Role)
	}
	if !rows[1].CreatedAt.After(rows[0].CreatedAt) {
		t.Fatalf("assistant row must sort after user row")
	}
}

func TestAskAdvisorIncludesHistoryChronologically(t *testing.T) {
	a, _, gen := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	if _, err := a.AskAdvisor(context.Background(), user.ID, "first question", "", 0); err != nil {
		t.Fatalf("ask 1: %v", err)
	}
	if _, err := a.AskAdvisor(context.Background(), user.ID, "second question", "", 0); err != nil {
		t.Fatalf("ask 2: %v", err)
	}

	// system + 4 history turns + new question
	if len(gen.messages) != 6 {
		t.Fatalf("expected 6 prompt messages, got %d", len(gen.messages))
	}
	if gen.messages[1].Content != "first question" || gen.messages[2].Role != domain.RoleAssistant {
		t.Fatalf("history not chronological: %+v", gen.messages[1:3])
	}
	if gen.messages[5].Content != "second question" {
		t.Fatalf("new question must come last, got %q", gen.messages[5].Content)
	}
}

func TestAskAdvisorTuning(t *testing.T) {
	a, _, gen := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	if _, err := a.AskAdvisor(context.Background(), user.ID, "two weeks around Spain on a budget", "", 0); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if gen.params.MaxTokens != 600 || gen.params.Temperature != 0.5 {
		t.Fatalf("expected tightened params for busy destination, got %+v", gen.params)
	}

	if _, err := a.AskAdvisor(context.Background(), user.ID, "quiet islands in Greece", "", 0); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if gen.params.MaxTokens != 1000 || gen.params.Temperature != 0.7 {
		t.Fatalf("expected default params, got %+v", gen.params)
	}
}

func TestAskAdvisorFailureClassification(t *testing.T) {
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{delay: time.Second}
	a, err := New(Config{Store: mem, Generator: gen, AskTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	user := mustSignUp(t, a, "alice")

	if _, err := a.AskAdvisor(context.Background(), user.ID, "slow question", "", 0); KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout classification, got %v", err)
	}

	gen.delay = 0
	gen.err = &ai.APIError{Status: http.StatusTooManyRequests}
	if _, err := a.AskAdvisor(context.Background(), user.ID, "rate limited", "", 0); KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate-limited classification, got %v", err)
	}

	gen.err = fmt.Errorf("connection refused")
	if _, err := a.AskAdvisor(context.Background(), user.ID, "down", "", 0); KindOf(err) != KindService {
		t.Fatalf("expected service classification, got %v", err)
	}

	// Failed attempts never persist anything.
	rows, err := mem.ListAdvisorMessages(user.ID, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows after failed attempts, got %d", len(rows))
	}
}

func TestAdvisorHistoryLimitAndOrder(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	for i := 0; i < 4; i++ {
		if _, err := a.AskAdvisor(context.Background(), user.ID, fmt.Sprintf("question %d", i), "", 0); err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
	}

	result, err := a.AdvisorHistory(context.Background(), user.ID, "", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	// The two most recent, still in chronological order.
	if result.Messages[0].Content != "question 3" || result.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected window: %+v", result.Messages)
	}
	if result.Total != 8 {
		t.Fatalf("expected total 8, got %d", result.Total)
	}
}

func TestAdvisorHistoryScopedByParty(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := mustSignUp(t, a, "alice")
	party := mustCreateParty(t, a, user.ID, 3)

	if _, err := a.AskAdvisor(context.Background(), user.ID, "general question", "", 0); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if _, err := a.AskAdvisor(context.Background(), user.ID, "party question", party.ID, 0); err != nil {
		t.Fatalf("ask: %v", err)
	}

	scoped, err := a.AdvisorHistory(context.Background(), user.ID, party.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(scoped.Messages) != 2 || scoped.Messages[0].Content != "party question" {
		t.Fatalf("party scope wrong: %+v", scoped.Messages)
	}
}

func TestClearAdvisorHistory(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	if _, err := a.AskAdvisor(context.Background(), user.ID, "hello", "", 0); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if err := a.ClearAdvisorHistory(user.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	result, err := a.AdvisorHistory(context.Background(), user.ID, "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(result.Messages) != 0 || result.Total != 0 {
		t.Fatalf("expected empty history, got %+v", result)
	}
}
