package llm

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// StaticModelName identifies the extractive generator.
const StaticModelName = "static-extractive"

// NoAnswer is returned when no context sentence mentions the question.
const NoAnswer = "I don't know."

var (
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
	termPattern     = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

var questionStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"what": true, "which": true, "who": true, "whom": true, "when": true, "where": true,
	"why": true, "how": true, "do": true, "does": true, "did": true, "of": true, "in": true,
	"on": true, "to": true, "for": true, "by": true, "this": true, "that": true, "it": true,
	"and": true, "or": true, "be": true, "with": true, "from": true, "about": true, "as": true,
	"at": true, "its": true, "there": true,
}

// StaticGenerator answers offline by returning the context sentence that
// shares the most terms with the question. It reads the question after the
// last "Question:" marker and the context after "Context:".
type StaticGenerator struct {
	mu     sync.RWMutex
	closed bool
}

var _ Generator = (*StaticGenerator)(nil)

// NewStaticGenerator creates an extractive generator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

// Generate returns the best matching sentence, or NoAnswer.
func (g *StaticGenerator) Generate(ctx context.Context, prompt string, _ Options) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return "", errors.GenerationError("generator is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.CancelledError("generation cancelled", err)
	}

	passages, question := splitPrompt(prompt)
	want := terms(question, true)
	if len(want) == 0 {
		return NoAnswer, nil
	}

	best, bestScore := "", 0
	for _, sentence := range sentencePattern.FindAllString(passages, -1) {
		sentence = strings.TrimSpace(sentence)
		score := 0
		for term := range terms(sentence, false) {
			if want[term] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}
	if bestScore == 0 {
		return NoAnswer, nil
	}
	return best, nil
}

// splitPrompt separates the context block from the question. The question
// is the line introduced by the last "Question:" label that starts a line
// after "Context:", so the label inside a question or a context line that
// merely mentions it does not cut the question short.
func splitPrompt(prompt string) (passages, question string) {
	body := prompt
	if c := strings.Index(prompt, "Context:"); c >= 0 {
		body = prompt[c+len("Context:"):]
	}
	q := strings.LastIndex(body, "\nQuestion:")
	if q < 0 && body != prompt {
		// Question placed before the context block.
		if q = strings.Index(prompt, "Question:"); q >= 0 {
			question = prompt[q+len("Question:"):]
			if nl := strings.IndexByte(question, '\n'); nl >= 0 {
				question = question[:nl]
			}
			return body, strings.TrimSpace(question)
		}
	}
	if q < 0 {
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		last := lines[len(lines)-1]
		return strings.TrimSuffix(strings.TrimSpace(prompt), last), last
	}
	question = body[q+len("\nQuestion:"):]
	if nl := strings.IndexByte(question, '\n'); nl >= 0 {
		question = question[:nl]
	}
	return body[:q], strings.TrimSpace(question)
}

func terms(text string, dropStopWords bool) map[string]bool {
	out := make(map[string]bool)
	for _, t := range termPattern.FindAllString(strings.ToLower(text), -1) {
		if dropStopWords && questionStopWords[t] {
			continue
		}
		out[t] = true
	}
	return out
}

// ModelName returns StaticModelName.
func (g *StaticGenerator) ModelName() string {
	return StaticModelName
}

// Close marks the generator closed.
func (g *StaticGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
