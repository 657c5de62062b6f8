package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-learn/internal/quiz"
)

func newQuizCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Answer, inspect and submit quizzes",
	}
	cmd.AddCommand(
		newQuizNormalizeCommand(),
		newQuizAnswerCommand(opts),
		newQuizShowCommand(opts),
		newQuizSubmitCommand(opts),
	)
	return cmd
}

func newQuizNormalizeCommand() *cobra.Command {
	var questionsPath, answersPath string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the submission payload for a questions file and an answers file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := quiz.LoadQuestions(questionsPath)
			if err != nil {
				return err
			}
			answers, err := quiz.LoadAnswers(answersPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), quiz.Normalize(answers, questions))
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "", "JSON file with the quiz questions")
	cmd.Flags().StringVar(&answersPath, "answers", "", "JSON file mapping question ids to answers")
	_ = cmd.MarkFlagRequired("questions")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func newQuizAnswerCommand(opts *options) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "answer <quiz-id> <question-id> <value>...",
		Short: "Record an answer in the local cache",
		Long:  "Record an answer in the local cache. Several values, or --list, store a list answer.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizID, questionID, values := args[0], args[1], args[2:]

			cache, err := opts.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			sess, err := quiz.NewSession(quiz.SessionConfig{QuizID: quizID, Cache: cache})
			if err != nil {
				return err
			}
			if err := sess.Restore(cmd.Context()); err != nil {
				return err
			}

			value := quiz.RawScalar(values[0])
			if list || len(values) > 1 {
				value = quiz.RawList(values...)
			}
			if err := sess.SetAnswer(cmd.Context(), questionID, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved answer for question %s (%d answered)\n", questionID, len(sess.Answers()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Store a single value as a list answer")
	return cmd
}

func newQuizShowCommand(opts *options) *cobra.Command {
	var questionsPath string
	cmd := &cobra.Command{
		Use:   "show <quiz-id>",
		Short: "Show cached answers, normalized when a questions file is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := opts.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			answers, err := cache.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(answers) == 0 {
				fmt.Fprintf(out, "no cached answers for quiz %s\n", args[0])
				return nil
			}
			if questionsPath != "" {
				questions, err := quiz.LoadQuestions(questionsPath)
				if err != nil {
					return err
				}
				return writeJSON(out, quiz.Normalize(answers, questions))
			}

			ids := make([]string, 0, len(answers))
			for id := range answers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				v, err := json.Marshal(answers[id])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", id, v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "", "JSON file with the quiz questions")
	return cmd
}

func newQuizSubmitCommand(opts *options) *cobra.Command {
	var questionsPath string
	cmd := &cobra.Command{
		Use:   "submit <quiz-id>",
		Short: "Submit cached answers to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			quizID := args[0]

			client, err := opts.backend()
			if err != nil {
				return err
			}

			var questions []quiz.Question
			if questionsPath != "" {
				questions, err = quiz.LoadQuestions(questionsPath)
			} else {
				questions, err = client.QuizQuestions(ctx, quizID)
			}
			if err != nil {
				return err
			}

			cache, err := opts.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			sess, err := quiz.NewSession(quiz.SessionConfig{
				QuizID:    quizID,
				Questions: questions,
				Cache:     cache,
				Submitter: client,
			})
			if err != nil {
				return err
			}

			res, err := sess.Submit(ctx)
			if err != nil {
				var se *quiz.SubmitError
				if errors.Is(err, quiz.ErrNoAnswers) || errors.As(err, &se) {
					return fmt.Errorf("%s: %w", quiz.UserMessage(err), err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "submitted %d answers\n", len(res.Answers))
			if res.Response.Score != nil {
				fmt.Fprintf(out, "score: %g\n", *res.Response.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "", "JSON file with the quiz questions (default: fetch from backend)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
