package quiz

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Normalize converts raw answers into backend-ready records. Answers whose key
// matches no question are skipped; every matched answer yields exactly one
// record, in question order. Normalize never fails: unresolvable option
// references fall back to the raw value.
func Normalize(answers Answers, questions []Question) []NormalizedAnswer {
	type positioned struct {
		pos    int
		record NormalizedAnswer
	}

	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]positioned, 0, len(keys))
	for _, key := range keys {
		pos := findQuestion(questions, key)
		if pos < 0 {
			slog.Debug("no question matches answer, skipping", "question_id", key)
			continue
		}
		records = append(records, positioned{
			pos:    pos,
			record: normalizeOne(questions[pos], key, answers[key]),
		})
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].pos < records[j].pos })

	out := make([]NormalizedAnswer, len(records))
	for i, r := range records {
		out[i] = r.record
	}
	return out
}

func findQuestion(questions []Question, key string) int {
	for i, q := range questions {
		if q.Matches(key) {
			return i
		}
	}
	return -1
}

func normalizeOne(q Question, key string, raw RawAnswer) NormalizedAnswer {
	id := q.ID
	if id == "" {
		id = key
	}
	kind := effectiveKind(q)
	rec := NormalizedAnswer{QuestionID: id, Kind: kind}

	switch kind {
	case KindSingleChoice:
		v := raw.First()
		if opt, ok := resolveOption(q.Options, v); ok {
			rec.SelectedOptionID = []string{opt.BackendID()}
			rec.Answer = TextValue(opt.DisplayText())
		} else {
			slog.Debug("option not resolved, using raw value", "question_id", id, "value", v)
			rec.Answer = TextValue(v)
		}

	case KindMultipleChoice:
		values := raw.Values()
		var ids []string
		texts := make([]string, 0, len(values))
		for _, v := range values {
			opt, ok := resolveOption(q.Options, v)
			if !ok {
				texts = append(texts, v)
				continue
			}
			ids = append(ids, opt.BackendID())
			texts = append(texts, opt.DisplayText())
		}
		rec.SelectedOptionID = ids
		rec.Answer = ListValue(texts)

	case KindTrueFalse:
		rec.Answer = TextValue(canonicalBool(raw.First()))

	case KindFreeText:
		rec.Answer = TextValue(raw.First())

	case KindOneWord:
		rec.Answer = TextValue(strings.TrimSpace(raw.First()))

	case KindFillBlank:
		blanks := blankValues(raw)
		if want := BlankCount(q); len(blanks) != want {
			slog.Debug("blank count mismatch", "question_id", id, "blanks", want, "answered", len(blanks))
		}
		rec.Answer = ListValue(blanks)

	default:
		rec.Answer = ListValue(raw.Values())
	}

	return rec
}

// resolveOption looks v up by option id, alternate id, value, text and
// finally position. Each field is tried across all options before the next.
func resolveOption(options []Option, v string) (Option, bool) {
	v = strings.TrimSpace(v)
	if v == "" || len(options) == 0 {
		return Option{}, false
	}

	fields := []func(Option) bool{
		func(o Option) bool { return o.ID == v },
		func(o Option) bool { return o.AltID == v },
		func(o Option) bool { return o.Value == v },
		func(o Option) bool { return o.Text != "" && strings.EqualFold(strings.TrimSpace(o.Text), v) },
	}
	for _, match := range fields {
		for _, o := range options {
			if match(o) {
				return o, true
			}
		}
	}

	if i, err := strconv.Atoi(v); err == nil && i >= 0 && i < len(options) {
		return options[i], true
	}
	return Option{}, false
}

func canonicalBool(v string) string {
	if strings.ToLower(strings.TrimSpace(v)) == "true" {
		return "true"
	}
	return "false"
}

func blankValues(raw RawAnswer) []string {
	if raw.IsList() {
		return trimNonEmpty(raw.Values())
	}
	v := raw.First()
	if strings.Contains(v, ",") {
		return trimNonEmpty(strings.Split(v, ","))
	}
	return []string{strings.TrimSpace(v)}
}
