package quiz

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Kind is the closed set of question handling strategies.
type Kind int

const (
	KindUnknown Kind = iota
	KindSingleChoice
	KindMultipleChoice
	KindTrueFalse
	KindFreeText
	KindOneWord
	KindFillBlank
	KindMatching
)

// defaultTag is assumed when a question carries no type at all.
const defaultTag = "mcq"

func (k Kind) String() string {
	switch k {
	case KindSingleChoice:
		return "single_choice"
	case KindMultipleChoice:
		return "multiple_choice"
	case KindTrueFalse:
		return "true_false"
	case KindFreeText:
		return "free_text"
	case KindOneWord:
		return "one_word"
	case KindFillBlank:
		return "fill_blank"
	case KindMatching:
		return "matching"
	default:
		return "unknown"
	}
}

// IsChoice reports whether answers of this kind reference options.
func (k Kind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultipleChoice
}

// kindAliases is keyed by canonicalTag output.
var kindAliases = map[string]Kind{
	"scq":          KindSingleChoice,
	"single":       KindSingleChoice,
	"singlechoice": KindSingleChoice,
	"mcqsingle":    KindSingleChoice,
	"singleselect": KindSingleChoice,
	"radio":        KindSingleChoice,

	"mcqmultiple":    KindMultipleChoice,
	"mcqmulti":       KindMultipleChoice,
	"multiplechoice": KindMultipleChoice,
	"multiple":       KindMultipleChoice,
	"multiselect":    KindMultipleChoice,
	"checkbox":       KindMultipleChoice,
	"checkboxes":     KindMultipleChoice,

	"truefalse":   KindTrueFalse,
	"trueorfalse": KindTrueFalse,
	"boolean":     KindTrueFalse,
	"tf":          KindTrueFalse,

	"descriptive": KindFreeText,
	"essay":       KindFreeText,
	"longanswer":  KindFreeText,
	"shortanswer": KindFreeText,
	"paragraph":   KindFreeText,
	"freetext":    KindFreeText,
	"text":        KindFreeText,

	"oneword":    KindOneWord,
	"shortword":  KindOneWord,
	"singleword": KindOneWord,

	"fillintheblank":  KindFillBlank,
	"fillintheblanks": KindFillBlank,
	"fillblank":       KindFillBlank,
	"fillblanks":      KindFillBlank,
	"blank":           KindFillBlank,
	"blanks":          KindFillBlank,
	"fib":             KindFillBlank,
	"cloze":           KindFillBlank,

	"matching":          KindMatching,
	"match":             KindMatching,
	"matchthefollowing": KindMatching,
}

// ParseKind maps a free-form type tag to a Kind. Case, spaces, hyphens and
// underscores are ignored, so "Multiple Choice", "multiple_choice" and
// "multiplechoice" are the same tag. A bare "mcq" is multiple choice only when
// the question has options.
func ParseKind(tag string, hasOptions bool) Kind {
	key := canonicalTag(tag)
	if key == "mcq" {
		if hasOptions {
			return KindMultipleChoice
		}
		return KindUnknown
	}
	if k, ok := kindAliases[key]; ok {
		return k
	}
	return KindUnknown
}

func canonicalTag(tag string) string {
	folded := cases.Fold().String(strings.TrimSpace(tag))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func effectiveKind(q Question) Kind {
	tag := q.BackendType
	if strings.TrimSpace(tag) == "" {
		tag = q.DeclaredType
	}
	if strings.TrimSpace(tag) == "" {
		if underscoreRuns(q.Text) > 0 && len(q.Options) == 0 {
			return KindFillBlank
		}
		tag = defaultTag
	}
	return ParseKind(tag, len(q.Options) > 0)
}
