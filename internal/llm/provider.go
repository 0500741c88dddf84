package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	appErr "github.com/quizattn/quizattn/internal/pkg/errors"
)

type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

type IProvider interface {
	Name() string
	Complete(ctx context.Context, model string, req Request) (string, error)
}

// ICompleter binds a provider to a fixed model and per-call timeout.
type ICompleter interface {
	Complete(ctx context.Context, req Request) (string, error)
	ModelName() string
}

type completer struct {
	provider IProvider
	model    string
	timeout  int
}

func NewCompleter(p IProvider, model string, timeoutSec int) ICompleter {
	return &completer{provider: p, model: model, timeout: timeoutSec}
}

func (c *completer) Complete(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.timeout)*time.Second)
		defer cancel()
	}
	resp, err := c.provider.Complete(ctx, c.model, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", appErr.ErrEmptyResponse
	}
	return text, nil
}

func (c *completer) ModelName() string {
	return c.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("llm.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported llm provider: %s", name)
	}
	return factory(args)
}

// The explicit config key wins over the environment variable.
func resolveCredential(explicit string, envVar string) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(envVar))
}

// A nil block is fine, the credential can come from the environment.
func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode llm provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode llm provider config: %w", err)
	}
	return nil
}
