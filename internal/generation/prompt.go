package generation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"
)

// MaxPromptContentRunes bounds how much of a note body reaches the prompt.
const MaxPromptContentRunes = 4000

const questionPrompt = `You are helping a user review their own notes with spaced repetition.
Write ONE short question (a single sentence, at most 25 words) that checks whether
the user remembers the key point of the note below. Reply with the question only,
without numbering, quotes or explanation.

Note title: {{.Title}}
Note content:
{{.Content}}
`

var promptTemplate = template.Must(template.New("question").Parse(questionPrompt))

// promptData is the input to the question prompt template
type promptData struct {
	Title   string
	Content string
}

// BuildPrompt renders the question prompt for a note.
// Content longer than MaxPromptContentRunes is truncated.
func BuildPrompt(title, content string) (string, error) {
	data := promptData{
		Title:   strings.TrimSpace(title),
		Content: truncateRunes(strings.TrimSpace(content), MaxPromptContentRunes),
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// FallbackQuestion is the question used when generation is exhausted.
func FallbackQuestion(title string) string {
	return fmt.Sprintf("Do you remember the key point of note: %s?", title)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// cleanQuestion trims whitespace and wrapping quotes from a model reply.
func cleanQuestion(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'`")
	return strings.TrimSpace(text)
}
