// Package quiz normalizes raw quiz answers into the backend submission shape
// and keeps in-progress answers in a durable per-quiz cache.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/platform/flexjson"
)

// Field aliases accepted from upstream question payloads, in priority order.
var (
	questionIDKeys     = []string{"id", "_id", "questionId", "question_id"}
	questionTextKeys   = []string{"question", "questionText", "text", "content", "title"}
	declaredTypeKeys   = []string{"type", "questionType"}
	backendTypeKeys    = []string{"backendType", "question_type"}
	blankHintKeys      = []string{"blankCount", "blanks", "blank_count"}
	correctAnswersKeys = []string{"correctAnswers", "correct_answers"}
	correctAnswerKeys  = []string{"correctAnswer", "correct_answer"}
	optionListKeys     = []string{"options", "choices"}

	optionAltIDKeys = []string{"_id", "optionId", "option_id"}
	optionTextKeys  = []string{"text", "label", "option", "optionText", "content"}
)

// Question is a read-only quiz question as supplied by the quiz backend.
type Question struct {
	ID             string   `json:"id"`
	AltIDs         []string `json:"-"`
	DeclaredType   string   `json:"type,omitempty"`
	BackendType    string   `json:"backendType,omitempty"`
	Text           string   `json:"question"`
	Options        []Option `json:"options,omitempty"`
	CorrectAnswers []string `json:"correctAnswers,omitempty"`
	CorrectAnswer  string   `json:"correctAnswer,omitempty"`
	BlankHint      int      `json:"blankCount,omitempty"`
}

// Matches reports whether key equals any of the question's id fields.
func (q Question) Matches(key string) bool {
	if key == "" {
		return false
	}
	if q.ID == key {
		return true
	}
	for _, id := range q.AltIDs {
		if id == key {
			return true
		}
	}
	return false
}

// Kind returns the effective question kind.
func (q Question) Kind() Kind {
	return effectiveKind(q)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode question: %w", err)
	}

	*q = Question{}
	for _, key := range questionIDKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		id, err := flexjson.Scalar(raw)
		if err != nil || id == "" {
			continue
		}
		if q.ID == "" {
			q.ID = id
		} else if id != q.ID {
			q.AltIDs = append(q.AltIDs, id)
		}
	}

	q.Text = flexjson.FirstString(fields, questionTextKeys...)
	q.DeclaredType = flexjson.FirstString(fields, declaredTypeKeys...)
	q.BackendType = flexjson.FirstString(fields, backendTypeKeys...)

	if hint := flexjson.FirstString(fields, blankHintKeys...); hint != "" {
		if n, err := strconv.Atoi(hint); err == nil {
			q.BlankHint = n
		}
	}

	for _, key := range correctAnswersKeys {
		if raw, ok := fields[key]; ok {
			q.CorrectAnswers = decodeStringList(raw)
			break
		}
	}
	for _, key := range correctAnswerKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		// Some sources put the per-blank list under the singular key.
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
			if len(q.CorrectAnswers) == 0 {
				q.CorrectAnswers = decodeStringList(raw)
			}
			break
		}
		if v, err := flexjson.Scalar(raw); err == nil {
			q.CorrectAnswer = v
		}
		break
	}

	for _, key := range optionListKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		q.Options = make([]Option, 0, len(items))
		for i, item := range items {
			var opt Option
			if err := json.Unmarshal(item, &opt); err != nil {
				return fmt.Errorf("decode option %d of question %s: %w", i, q.ID, err)
			}
			opt.Index = i
			q.Options = append(q.Options, opt)
		}
		break
	}

	return nil
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID    string `json:"id,omitempty"`
	AltID string `json:"optionId,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"-"`
}

// BackendID is the identifier sent back in selectedOptionId.
func (o Option) BackendID() string {
	switch {
	case o.ID != "":
		return o.ID
	case o.AltID != "":
		return o.AltID
	case o.Value != "":
		return o.Value
	default:
		return strconv.Itoa(o.Index)
	}
}

// DisplayText is the human-readable label of the option.
func (o Option) DisplayText() string {
	switch {
	case o.Text != "":
		return o.Text
	case o.Value != "":
		return o.Value
	default:
		return o.BackendID()
	}
}

func (o *Option) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		// Bare option label.
		text, err := flexjson.Scalar(trimmed)
		if err != nil {
			return err
		}
		*o = Option{Text: text}
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	*o = Option{
		ID:    flexjson.FirstString(fields, "id"),
		AltID: flexjson.FirstString(fields, optionAltIDKeys...),
		Value: flexjson.FirstString(fields, "value"),
		Text:  flexjson.FirstString(fields, optionTextKeys...),
	}
	return nil
}

func decodeStringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		v, err := flexjson.Scalar(item)
		if err != nil {
			continue
		}
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
