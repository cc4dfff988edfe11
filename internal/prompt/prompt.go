// Package prompt assembles the generator prompt from a question and the
// retrieved context, keeping the context within a character budget.
package prompt

import (
	"log/slog"
	"strings"

	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// Placeholders substituted in a template.
const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"
)

// Separator joins context chunks.
const Separator = "\n\n"

// Prompt is an assembled prompt. Used and Dropped count context chunks.
type Prompt struct {
	Text    string
	Used    int
	Dropped int
}

// Assembler fills a template with ranked context chunks.
type Assembler struct {
	template        string
	maxContextChars int
	logger          *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for truncation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Assembler. An empty template selects the default one;
// maxContextChars of 0 disables the budget.
func New(template string, maxContextChars int, opts ...Option) (*Assembler, error) {
	if template == "" {
		template = config.DefaultTemplate
	}
	if !strings.Contains(template, ContextPlaceholder) || !strings.Contains(template, QuestionPlaceholder) {
		return nil, errors.ConfigError("prompt template must contain {context} and {question}", nil)
	}
	if maxContextChars < 0 {
		return nil, errors.ConfigError("prompt max_context_chars must be non-negative", nil)
	}

	a := &Assembler{
		template:        template,
		maxContextChars: maxContextChars,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble builds the prompt for question from chunks given in rank order.
// When the joined context exceeds the budget, the lowest-ranked chunks are
// dropped whole. The question is never truncated, and the top chunk is
// always kept.
func (a *Assembler) Assemble(question string, chunks []string) (Prompt, error) {
	if strings.TrimSpace(question) == "" {
		return Prompt{}, errors.New(errors.ErrCodeEmptyQuestion, "question is empty", nil).
			WithSuggestion("Ask a non-empty question")
	}

	used := len(chunks)
	if a.maxContextChars > 0 {
		for used > 1 && contextLen(chunks[:used]) > a.maxContextChars {
			used--
			a.logger.Warn("dropping context chunk to fit prompt budget",
				slog.Int("rank", used+1),
				slog.Int("chars", runeLen(chunks[used])),
				slog.Int("budget", a.maxContextChars))
		}
		if used == 1 && runeLen(chunks[0]) > a.maxContextChars {
			a.logger.Warn("top context chunk alone exceeds prompt budget",
				slog.Int("chars", runeLen(chunks[0])),
				slog.Int("budget", a.maxContextChars))
		}
	}

	replacer := strings.NewReplacer(
		ContextPlaceholder, strings.Join(chunks[:used], Separator),
		QuestionPlaceholder, question,
	)
	return Prompt{
		Text:    replacer.Replace(a.template),
		Used:    used,
		Dropped: len(chunks) - used,
	}, nil
}

// contextLen is the rune length of chunks joined by Separator.
func contextLen(chunks []string) int {
	n := 0
	for i, c := range chunks {
		if i > 0 {
			n += len(Separator)
		}
		n += runeLen(c)
	}
	return n
}

func runeLen(s string) int {
	return len([]rune(s))
}
