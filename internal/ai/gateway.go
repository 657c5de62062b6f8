// Package ai provides a provider-agnostic client for the AI text service
// with ordered fallback between providers.
package ai

import (
	"context"
	"errors"
)

// TaskType defines the kind of AI task, used for logging and metrics.
type TaskType int

const (
	TaskGeneral TaskType = iota
	TaskDebrief
)

func (t TaskType) String() string {
	switch t {
	case TaskGeneral:
		return "general"
	case TaskDebrief:
		return "debrief"
	default:
		return "unknown"
	}
}

var (
	// ErrRateLimited is wrapped by provider errors caused by HTTP 429.
	ErrRateLimited = errors.New("ai provider rate limited")
	// ErrUnavailable is wrapped by every other provider failure.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrNoProvider is returned by Router when nothing is registered.
	ErrNoProvider = errors.New("no ai provider configured")
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
}

// splitSystem separates system messages from the conversation.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
