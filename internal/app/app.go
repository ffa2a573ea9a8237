package app

import (
	"fmt"
	"strings"
	"time"

	"tripparty/pkg/ai"
	"tripparty/pkg/storage"
	"tripparty/pkg/store"
)

const (
	defaultAskTimeout     = 25 * time.Second
	defaultCountTimeout   = 3 * time.Second
	defaultHistoryLimit   = 5
	maxHistoryLimit       = 100
	defaultSearchRadiusKm = 50
)

// TuningPolicy chooses generation parameters for an advisor message.
type TuningPolicy func(message string) ai.Params

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	LLMProvider string // "openai" or "ollama"
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	Generator   ai.ChatGenerator

	Objects storage.ObjectStore

	AskTimeout   time.Duration
	CountTimeout time.Duration
	HistoryLimit int
	Tuning       TuningPolicy
}

// App is the core application service wiring storage, the advisor
// generator, and object storage together.
type App struct {
	store        store.Store
	generator    ai.ChatGenerator
	objects      storage.ObjectStore
	tuning       TuningPolicy
	askTimeout   time.Duration
	countTimeout time.Duration
	historyLimit int
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	generator := cfg.Generator
	if generator == nil {
		provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
		if provider == "" {
			provider = "openai"
		}
		switch provider {
		case "openai":
			if cfg.LLMModel == "" {
				return nil, fmt.Errorf("generation model required")
			}
			generator = ai.NewOpenAICompatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
		case "ollama":
			if cfg.LLMModel == "" {
				return nil, fmt.Errorf("generation model required")
			}
			generator = ai.NewOllamaGenerator(cfg.LLMBaseURL, cfg.LLMModel)
		default:
			return nil, fmt.Errorf("unknown llm provider: %s", provider)
		}
	}

	askTimeout := cfg.AskTimeout
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}
	countTimeout := cfg.CountTimeout
	if countTimeout <= 0 {
		countTimeout = defaultCountTimeout
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = DefaultTuning
	}

	return &App{
		store:        dataStore,
		generator:    generator,
		objects:      cfg.Objects,
		tuning:       tuning,
		askTimeout:   askTimeout,
		countTimeout: countTimeout,
		historyLimit: historyLimit,
	}, nil
}
