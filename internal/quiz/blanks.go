package quiz

import (
	"regexp"
	"strings"
)

var blankRun = regexp.MustCompile(`_{2,}`)

func underscoreRuns(text string) int {
	return len(blankRun.FindAllStringIndex(text, -1))
}

// BlankCount is the number of blanks in a fill-in-the-blank question: the
// largest of the underscore runs in the text, the explicit correct answers,
// the comma-separated correct answer and the numeric hint, never below 1.
func BlankCount(q Question) int {
	count := 1
	if n := underscoreRuns(q.Text); n > count {
		count = n
	}
	if n := len(q.CorrectAnswers); n > count {
		count = n
	}
	if n := len(splitNonEmpty(q.CorrectAnswer)); n > count {
		count = n
	}
	if q.BlankHint > count {
		count = q.BlankHint
	}
	return count
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return trimNonEmpty(strings.Split(s, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
