package ai_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ai"
)

var hello = ai.CompletionRequest{
	Messages: []ai.Message{{Role: "user", Content: "hi"}},
	Task:     ai.TaskDebrief,
}

// stallProvider blocks until the request context ends.
type stallProvider struct{}

func (stallProvider) Complete(ctx context.Context, _ ai.CompletionRequest) (ai.CompletionResponse, error) {
	<-ctx.Done()
	return ai.CompletionResponse{}, ctx.Err()
}

func (stallProvider) Models() []ai.ModelInfo { return nil }

func TestRouter_Complete(t *testing.T) {
	tests := []struct {
		name      string
		providers []ai.Provider
		want      string
		wantCalls []int
	}{
		{
			name:      "single provider",
			providers: []ai.Provider{ai.NewMockProvider("Hello!")},
			want:      "Hello!",
			wantCalls: []int{1},
		},
		{
			name:      "falls back after failure",
			providers: []ai.Provider{&ai.MockProvider{Err: errors.New("rate limited")}, ai.NewMockProvider("Fallback response")},
			want:      "Fallback response",
			wantCalls: []int{1, 1},
		},
		{
			name:      "stops at first success",
			providers: []ai.Provider{ai.NewMockProvider("first"), ai.NewMockProvider("second")},
			want:      "first",
			wantCalls: []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := ai.NewRouter()
			for i, p := range tt.providers {
				router.Register(string(rune('a'+i)), p)
			}

			resp, err := router.Complete(t.Context(), hello)
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Content != tt.want {
				t.Errorf("Content = %q, want %q", resp.Content, tt.want)
			}
			for i, p := range tt.providers {
				if got := p.(*ai.MockProvider).Calls(); got != tt.wantCalls[i] {
					t.Errorf("provider %d calls = %d, want %d", i, got, tt.wantCalls[i])
				}
			}
		})
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	router.Register("openai", &ai.MockProvider{Err: ai.ErrRateLimited})
	router.Register("anthropic", &ai.MockProvider{Err: errors.New("fail 2")})

	_, err := router.Complete(t.Context(), hello)
	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, ai.ErrRateLimited) {
		t.Errorf("error %v should wrap ErrRateLimited", err)
	}
	if !strings.Contains(err.Error(), "anthropic: fail 2") {
		t.Errorf("error %v should name every provider", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}
	if _, err := router.Complete(t.Context(), hello); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_ReRegisterKeepsPosition(t *testing.T) {
	router := ai.NewRouter()
	router.Register("first", &ai.MockProvider{Err: errors.New("down")})
	router.Register("second", ai.NewMockProvider("second"))
	router.Register("first", ai.NewMockProvider("first again"))

	if got := router.Providers(); len(got) != 2 || got[0] != "first" {
		t.Fatalf("Providers() = %v, want [first second]", got)
	}
	resp, err := router.Complete(t.Context(), hello)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "first again" {
		t.Errorf("Content = %q, want the replacement provider", resp.Content)
	}
}

func TestRouter_AttemptTimeoutFallsThrough(t *testing.T) {
	router := ai.NewRouter(ai.WithAttemptTimeout(20 * time.Millisecond))
	router.Register("slow", stallProvider{})
	router.Register("fast", ai.NewMockProvider("done"))

	resp, err := router.Complete(t.Context(), hello)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("Content = %q, want %q", resp.Content, "done")
	}
}

func TestRouter_CallerCancelStopsFallback(t *testing.T) {
	router := ai.NewRouter()
	router.Register("slow", stallProvider{})
	next := ai.NewMockProvider("never")
	router.Register("next", next)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if _, err := router.Complete(ctx, hello); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Complete() error = %v, want DeadlineExceeded", err)
	}
	if next.Calls() != 0 {
		t.Error("fallback provider ran after the caller gave up")
	}
}

func TestRouter_AttemptHook(t *testing.T) {
	type attempt struct {
		provider string
		task     ai.TaskType
		failed   bool
	}
	var (
		mu   sync.Mutex
		seen []attempt
	)
	router := ai.NewRouter(ai.WithAttemptHook(func(provider string, task ai.TaskType, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, attempt{provider, task, err != nil})
	}))
	router.Register("openai", &ai.MockProvider{Err: ai.ErrUnavailable})
	router.Register("anthropic", ai.NewMockProvider("ok"))

	if _, err := router.Complete(t.Context(), hello); err != nil {
		t.Fatal(err)
	}

	want := []attempt{
		{"openai", ai.TaskDebrief, true},
		{"anthropic", ai.TaskDebrief, false},
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("attempts = %+v, want %+v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("attempt %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
}
