package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docsum/model"

	"github.com/pkoukk/tiktoken-go"
)

// MaxInputChars caps how much extracted text is sent to the model.
const MaxInputChars = 20000

// MissingKeyPlaceholder is the analysis text used when no API key is configured.
const MissingKeyPlaceholder = "AI analysis unavailable: no GEMINI_API_KEY is configured."

const failurePrefix = "AI analysis failed: "

var ErrMissingKey = errors.New("agent: missing API key")

const promptTemplate = `You are an analyst preparing a briefing on the document "%s".
Read the document text below and produce a structured report with exactly these five sections:

1. Executive Summary - two or three sentences on what the document is and why it matters.
2. Key Points - the most important facts, findings or decisions as a bulleted list.
3. Action Items & Deadlines - every task, obligation, date or deadline mentioned. Write "None identified" if there are none.
4. Technical Terminology - specialised terms, acronyms and jargon with a short plain-language definition.
5. Unresolved Questions - ambiguities, missing information or open issues a reader should follow up on.

Use the section titles above as headings. Do not invent facts that are not in the text.

Document text:
%s`

// Result is the outcome of one analysis. Text is always displayable: on
// failure it holds a placeholder and Err holds the cause.
type Result struct {
	Text string
	Err  error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

type TokenCounter func(string) (int, error)

type Analyzer struct {
	gen         model.TextGenerator
	countTokens TokenCounter
	logger      *slog.Logger
}

type Option func(*Analyzer)

// WithTokenCounter replaces the prompt size counter. nil disables counting.
func WithTokenCounter(fn TokenCounter) Option {
	return func(a *Analyzer) { a.countTokens = fn }
}

// NewAnalyzer returns an analyzer backed by gen. A nil gen means no API key is
// configured and every analysis returns MissingKeyPlaceholder.
func NewAnalyzer(gen model.TextGenerator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:         gen,
		countTokens: CountTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Enabled() bool {
	return a.gen != nil
}

// Analyze summarises text for the document called label. It never returns an
// error value directly; failures are reported through Result.
func (a *Analyzer) Analyze(ctx context.Context, text, label string) Result {
	if a.gen == nil {
		return Result{Text: MissingKeyPlaceholder, Err: ErrMissingKey}
	}

	prompt := BuildPrompt(text, label)
	if a.countTokens != nil {
		if count, err := a.countTokens(prompt); err == nil {
			a.logger.Info("[AGENT] prompt prepared", "document", label, "tokens", count, "chars", len(prompt))
		}
	}

	start := time.Now()
	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Error("[AGENT] analysis failed", "document", label, "error", err)
		return Result{Text: failurePrefix + err.Error(), Err: err}
	}
	a.logger.Info("[AGENT] analysis done", "document", label, "took", time.Since(start))
	return Result{Text: out}
}

func BuildPrompt(text, label string) string {
	return fmt.Sprintf(promptTemplate, label, Truncate(text, MaxInputChars))
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens estimates the prompt size with the cl100k encoding.
func CountTokens(s string) (int, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if encErr != nil {
		return 0, encErr
	}
	return len(enc.Encode(s, nil, nil)), nil
}
