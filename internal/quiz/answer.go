package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/platform/flexjson"
)

// RawAnswer is a user answer exactly as the UI captured it: a single value or
// a list of values. Its shape says nothing about the question kind.
type RawAnswer struct {
	values []string
	list   bool
}

// Answers maps a stringified question id to the raw answer.
type Answers map[string]RawAnswer

// RawScalar returns a single-valued raw answer.
func RawScalar(v string) RawAnswer {
	return RawAnswer{values: []string{v}}
}

// RawList returns a list-valued raw answer.
func RawList(v ...string) RawAnswer {
	return RawAnswer{values: append([]string{}, v...), list: true}
}

// IsList reports whether the answer was captured as a list.
func (r RawAnswer) IsList() bool { return r.list }

// First coerces the answer to a scalar.
func (r RawAnswer) First() string {
	if len(r.values) == 0 {
		return ""
	}
	return r.values[0]
}

// Values coerces the answer to a list.
func (r RawAnswer) Values() []string {
	return append([]string{}, r.values...)
}

func (r RawAnswer) MarshalJSON() ([]byte, error) {
	if r.list {
		return json.Marshal(r.Values())
	}
	return json.Marshal(r.First())
}

func (r *RawAnswer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		values := make([]string, 0, len(items))
		for i, item := range items {
			v, err := flexjson.Scalar(item)
			if err != nil {
				return fmt.Errorf("answer element %d: %w", i, err)
			}
			values = append(values, v)
		}
		*r = RawAnswer{values: values, list: true}
		return nil
	}

	v, err := flexjson.Scalar(trimmed)
	if err != nil {
		return err
	}
	*r = RawScalar(v)
	return nil
}

// Clone returns a copy of the answer map.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AnswerValue is the answer field of a normalized record: either text or a
// list of strings.
type AnswerValue struct {
	Text   string
	List   []string
	isList bool
}

// TextValue returns a text answer value.
func TextValue(s string) AnswerValue {
	return AnswerValue{Text: s}
}

// ListValue returns a list answer value. A nil list encodes as [].
func ListValue(v []string) AnswerValue {
	if v == nil {
		v = []string{}
	}
	return AnswerValue{List: v, isList: true}
}

// IsList reports whether the value is a list.
func (v AnswerValue) IsList() bool { return v.isList }

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var raw RawAnswer
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	if raw.IsList() {
		*v = ListValue(raw.Values())
		return nil
	}
	*v = TextValue(raw.First())
	return nil
}

// NormalizedAnswer is one backend-ready answer record.
type NormalizedAnswer struct {
	QuestionID       string      `json:"questionId"`
	SelectedOptionID []string    `json:"selectedOptionId"`
	Answer           AnswerValue `json:"answer"`
	Kind             Kind        `json:"-"`
}
