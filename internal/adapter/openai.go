package adapter

import (
	"context"
	"fmt"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	mcerr "mcphub/internal/errors"
	"mcphub/internal/retry"
	"mcphub/util"
)

// OpenAIConfig selects the credentials and endpoint of an
// OpenAI-compatible API.
type OpenAIConfig struct {
	APIKeyEnv  string // default OPENAI_API_KEY
	BaseURLEnv string // default OPENAI_BASE_URL
	BaseURL    string // overrides BaseURLEnv when set
}

// OpenAI validates API access by listing models.  The hub does not
// issue completions; it only proves the credentials work.
type OpenAI struct {
	config OpenAIConfig
	logger *util.Logger

	mu     sync.Mutex
	client *openai.Client
	models int
}

// NewOpenAI returns an adapter that is ready to Connect.
func NewOpenAI(cfg OpenAIConfig, logger *util.Logger) *OpenAI {
	if logger == nil {
		logger = util.Discard()
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.BaseURLEnv == "" {
		cfg.BaseURLEnv = "OPENAI_BASE_URL"
	}
	return &OpenAI{config: cfg, logger: logger}
}

func (a *OpenAI) Kind() Kind { return KindOpenAI }
func (a *OpenAI) sealed()    {}

// Connect builds a client from the environment and lists models.  A
// missing API key is permanent.
func (a *OpenAI) Connect(ctx context.Context) error {
	key := os.Getenv(a.config.APIKeyEnv)
	if key == "" {
		return retry.Permanent(fmt.Errorf("%s is not set", a.config.APIKeyEnv))
	}

	cc := openai.DefaultConfig(key)
	if url := a.baseURL(); url != "" {
		cc.BaseURL = url
	}
	client := openai.NewClientWithConfig(cc)

	list, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openai list models: %w", err)
	}
	a.logger.Debug("openai: %d models available at %s", len(list.Models), cc.BaseURL)

	a.mu.Lock()
	a.client = client
	a.models = len(list.Models)
	a.mu.Unlock()
	return nil
}

func (a *OpenAI) baseURL() string {
	if a.config.BaseURL != "" {
		return a.config.BaseURL
	}
	return os.Getenv(a.config.BaseURLEnv)
}

// Disconnect drops the client.  HTTP clients hold no session to close.
func (a *OpenAI) Disconnect(_ context.Context) error {
	a.mu.Lock()
	a.client = nil
	a.models = 0
	a.mu.Unlock()
	return nil
}

// Health lists models again.
func (a *OpenAI) Health(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return mcerr.ErrNotConnected
	}
	if _, err := client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai list models: %w", err)
	}
	return nil
}

// Models returns the model count seen by the last successful Connect.
func (a *OpenAI) Models() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.models
}

func openAIConfigFrom(o options) OpenAIConfig {
	return OpenAIConfig{
		APIKeyEnv:  o.str("api_key_env", ""),
		BaseURLEnv: o.str("base_url_env", ""),
		BaseURL:    o.str("base_url", ""),
	}
}
