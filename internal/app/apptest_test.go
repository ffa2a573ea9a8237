package app

import (
	"context"
	"testing"
	"time"

	"tripparty/pkg/ai"
	"tripparty/pkg/domain"
	"tripparty/pkg/store"
)

// fakeGenerator records the last prompt and returns a canned reply.
type fakeGenerator struct {
	reply    string
	err      error
	messages []ai.Message
	params   ai.Params
	delay    time.Duration
}

func (f *fakeGenerator) Chat(ctx context.Context, messages []ai.Message, params ai.Params) (string, error) {
	f.messages = messages
	f.params = params
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeGenerator) {
	t.Helper()
	mem := store.NewMemoryStore()
	gen := &fakeGenerator{reply: "try the old town first"}
	a, err := New(Config{Store: mem, Generator: gen})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, gen
}

func mustSignUp(t *testing.T, a *App, username string) domain.User {
	t.Helper()
	user, err := a.SignUp(username, "password-123")
	if err != nil {
		t.Fatalf("sign up %s: %v", username, err)
	}
	return user
}

func mustCreateParty(t *testing.T, a *App, ownerID string, maxParticipants int) domain.Party {
	t.Helper()
	party, err := a.CreateParty(ownerID, CreatePartyInput{
		Location:        "Lisbon",
		Description:     "coastal week",
		EstimatedPrice:  800,
		MaxParticipants: maxParticipants,
		IsGlobal:        true,
	})
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	return party
}
