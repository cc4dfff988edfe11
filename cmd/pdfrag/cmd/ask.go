package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/output"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

// exampleQuestions are asked by --examples.
var exampleQuestions = []string{
	"What is this document about?",
	"What are the key sections in this document?",
	"What is the date of this document?",
	"Who issued this document?",
}

type askOptions struct {
	source    indexSource
	questions []string
	examples  bool
	json      bool
	noSources bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer questions about a PDF",
		Long: `Answer one or more questions, in order, from a PDF or a persisted index.

When --persist-dir holds an index it is loaded; otherwise --pdf is
processed first (and saved to --persist-dir when given).`,
		Example: `  pdfrag ask --pdf invoice.pdf --question "Who issued this document?"

  # Several questions against a saved index, as JSON
  pdfrag ask --persist-dir ./idx -q "What is the total?" -q "When is it due?" --json

  # The built-in example questions
  pdfrag ask --pdf report.pdf --examples`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source.PDF, "pdf", "", "Path to the PDF file")
	cmd.Flags().StringVar(&opts.source.Password, "password", "", "Password for an encrypted PDF")
	cmd.Flags().StringVar(&opts.source.PersistDir, "persist-dir", "", "Index directory to load, or to save to after processing --pdf")
	cmd.Flags().StringArrayVarP(&opts.questions, "question", "q", nil, "Question to answer (repeatable)")
	cmd.Flags().BoolVar(&opts.examples, "examples", false, "Also ask the built-in example questions")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output answers as JSON")
	cmd.Flags().BoolVar(&opts.noSources, "no-sources", false, "Do not print source chunks")

	return cmd
}

// jsonAnswer is one element of the --json output.
type jsonAnswer struct {
	Question      string       `json:"question"`
	Answer        string       `json:"answer"`
	Sources       []jsonSource `json:"sources"`
	DroppedChunks int          `json:"dropped_chunks"`
	Model         string       `json:"model"`
	DurationMS    int64        `json:"duration_ms"`
}

type jsonSource struct {
	Rank       int     `json:"rank"`
	Score      float32 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Content    string  `json:"content"`
}

func toJSONAnswer(res *pipeline.QueryResult) jsonAnswer {
	a := jsonAnswer{
		Question:      res.Question,
		Answer:        res.Answer,
		Sources:       make([]jsonSource, 0, len(res.Sources)),
		DroppedChunks: res.DroppedChunks,
		Model:         res.Model,
		DurationMS:    res.Duration.Milliseconds(),
	}
	for _, s := range res.Sources {
		a.Sources = append(a.Sources, jsonSource{
			Rank:       s.Rank,
			Score:      s.Score,
			ChunkIndex: s.Chunk.Index,
			Start:      s.Chunk.Start,
			End:        s.Chunk.End,
			Content:    s.Chunk.Content,
		})
	}
	return a
}

func runAsk(cmd *cobra.Command, opts askOptions) error {
	ctx := cmd.Context()

	questions := append([]string(nil), opts.questions...)
	if opts.examples {
		questions = append(questions, exampleQuestions...)
	}
	if len(questions) == 0 {
		return errors.New(errors.ErrCodeEmptyQuestion, "no question given", nil).
			WithSuggestion("Pass --question \"...\" (repeatable) or --examples")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	out := output.New(cmd.OutOrStdout())
	report, err := openIndex(ctx, ctrl, opts.source, nil)
	if err != nil {
		return err
	}
	if report != nil && !opts.json {
		out.Report(report)
		out.Newline()
	}

	var answers []jsonAnswer
	for i, q := range questions {
		res, err := ctrl.Answer(ctx, q)
		if err != nil {
			slog.Warn("question failed", append([]any{slog.Int("question", i+1)}, errors.FormatForLog(err)...)...)
			return err
		}
		if opts.json {
			answers = append(answers, toJSONAnswer(res))
			continue
		}
		if i > 0 {
			out.Newline()
		}
		out.Answer(res, !opts.noSources)
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answers)
	}
	return nil
}
