// Package cli implements the learnctl command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-learn/internal/backend"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/quiz"
	"github.com/p-n-ai/pai-learn/internal/scenario"
)

type options struct {
	cfg        *config.Config
	cachePath  string
	backendURL string
	token      string
}

// NewRootCommand builds the learnctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "learnctl",
		Short:         "Work with quizzes and branching scenarios from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			if opts.cachePath == "" {
				opts.cachePath = cfg.Quiz.LocalCachePath
			}
			if opts.backendURL == "" {
				opts.backendURL = cfg.Backend.URL
			}
			if opts.token == "" {
				opts.token = cfg.Backend.Token
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.cachePath, "cache", "", "Path to the local answer cache (overrides LEARN_QUIZ_LOCAL_CACHE_PATH)")
	root.PersistentFlags().StringVar(&opts.backendURL, "backend", "", "Backend API base URL (overrides LEARN_BACKEND_URL)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "Backend bearer token (overrides LEARN_BACKEND_TOKEN)")

	root.AddCommand(newQuizCommand(opts))
	root.AddCommand(newScenarioCommand(opts))
	return root
}

// Execute runs learnctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *options) backend() (*backend.Client, error) {
	if o.backendURL == "" {
		return nil, fmt.Errorf("no backend configured: set --backend or LEARN_BACKEND_URL")
	}
	timeout := o.cfg.Backend.Timeout
	return backend.NewClient(o.backendURL,
		backend.WithToken(o.token),
		backend.WithTimeout(timeout),
	), nil
}

func (o *options) openCache() (*quiz.SQLiteAnswerCache, error) {
	c, err := quiz.OpenSQLiteAnswerCache(o.cachePath)
	if err != nil {
		return nil, fmt.Errorf("open answer cache: %w", err)
	}
	return c, nil
}

// loadScenario reads ref as a file when it exists, otherwise fetches it by id
// from the backend.
func (o *options) loadScenario(ctx context.Context, ref string) (scenario.Scenario, error) {
	if _, err := os.Stat(ref); err == nil {
		return scenario.LoadFile(ref)
	}
	client, err := o.backend()
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("scenario %q is not a file and %w", ref, err)
	}
	return client.GetScenario(ctx, ref)
}
