package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tripparty/internal/util"
	"tripparty/pkg/ai"
	"tripparty/pkg/domain"
)

const advisorSystemPrompt = "You are a knowledgeable travel advisor. Give practical, specific recommendations about destinations, budgets, itineraries, and local customs. Keep answers concise and directly useful for trip planning."

// High-traffic destination topics get tighter generation parameters to
// keep responses inside the request deadline.
var busyDestinationKeywords = []string{"spain", "barcelona", "madrid"}

// DefaultTuning is the default TuningPolicy.
func DefaultTuning(message string) ai.Params {
	lowered := strings.ToLower(message)
	for _, keyword := range busyDestinationKeywords {
		if strings.Contains(lowered, keyword) {
			return ai.Params{Temperature: 0.5, MaxTokens: 600}
		}
	}
	return ai.Params{Temperature: 0.7, MaxTokens: 1000}
}

// AskResult is an advisor reply with the refreshed history window.
type AskResult struct {
	Reply   string                  `json:"reply"`
	History []domain.AdvisorMessage `json:"history"`
}

// AdvisorHistoryResult is a chronological page of advisor messages with a
// best-effort total.
type AdvisorHistoryResult struct {
	Messages []domain.AdvisorMessage `json:"messages"`
	Total    int                     `json:"total"`
}

// AskAdvisor sends a message to the travel advisor. The prompt is the
// fixed system instruction, the most recent history for the scope in
// chronological order, and the new message. Exactly one generation attempt
// is made under the ask deadline. On success the user/assistant pair is
// persisted together.
func (a *App) AskAdvisor(ctx context.Context, userID, message, partyID string, historyLimit int) (AskResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return AskResult{}, E(KindValidation, "message is required")
	}
	if historyLimit <= 0 {
		historyLimit = a.historyLimit
	}
	if historyLimit > maxHistoryLimit {
		historyLimit = maxHistoryLimit
	}

	history, err := a.store.ListAdvisorMessages(userID, partyID, historyLimit)
	if err != nil {
		return AskResult{}, fmt.Errorf("load advisor history: %w", err)
	}

	prompt := make([]ai.Message, 0, len(history)+2)
	prompt = append(prompt, ai.Message{Role: "system", Content: advisorSystemPrompt})
	for _, msg := range history {
		prompt = append(prompt, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	prompt = append(prompt, ai.Message{Role: domain.RoleUser, Content: message})

	genCtx, cancel := context.WithTimeout(ctx, a.askTimeout)
	defer cancel()
	reply, err := a.generator.Chat(genCtx, prompt, a.tuning(message))
	if err != nil {
		return AskResult{}, classifyGeneratorError(err)
	}

	now := time.Now().UTC()
	userMsg := domain.AdvisorMessage{
		ID:        util.NewID(),
		UserID:    userID,
		PartyID:   partyID,
		Role:      domain.RoleUser,
		Content:   message,
		CreatedAt: now,
	}
	assistantMsg := domain.AdvisorMessage{
		ID:        util.NewID(),
		UserID:    userID,
		PartyID:   partyID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: now,
	}
	if err := a.store.AppendAdvisorExchange(userMsg, assistantMsg); err != nil {
		return AskResult{}, fmt.Errorf("save advisor exchange: %w", err)
	}

	refreshed, err := a.store.ListAdvisorMessages(userID, partyID, historyLimit)
	if err != nil {
		return AskResult{}, fmt.Errorf("reload advisor history: %w", err)
	}
	return AskResult{Reply: reply, History: refreshed}, nil
}

func classifyGeneratorError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapE(KindTimeout, "the advisor took too long, try a more specific or shorter question", err)
	}
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return wrapE(KindRateLimited, "the advisor is temporarily unavailable, try again shortly", err)
	}
	return wrapE(KindService, "the advisor is unavailable right now", err)
}

// AdvisorHistory returns a chronological page of advisor messages. The
// total count is computed under its own short deadline and falls back to
// the page size so the response never blocks on the count.
func (a *App) AdvisorHistory(ctx context.Context, userID, partyID string, limit int) (AdvisorHistoryResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var (
		page     []domain.AdvisorMessage
		total    int
		countErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = a.store.ListAdvisorMessages(userID, partyID, limit)
		return err
	})
	g.Go(func() error {
		countCtx, cancel := context.WithTimeout(gctx, a.countTimeout)
		defer cancel()
		total, countErr = a.store.CountAdvisorMessages(countCtx, userID, partyID)
		// A slow or failed count must not fail the request.
		return nil
	})
	if err := g.Wait(); err != nil {
		return AdvisorHistoryResult{}, fmt.Errorf("load advisor history: %w", err)
	}
	if countErr != nil {
		total = len(page)
	}
	return AdvisorHistoryResult{Messages: page, Total: total}, nil
}

// ClearAdvisorHistory deletes all advisor messages owned by the user.
func (a *App) ClearAdvisorHistory(userID string) error {
	if err := a.store.DeleteAdvisorMessages(userID); err != nil {
		return fmt.Errorf("clear advisor history: %w", err)
	}
	return nil
}
