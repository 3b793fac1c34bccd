package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	out     string
	err     error
	calls   int
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func TestAnalyze_MissingKey(t *testing.T) {
	a := NewAnalyzer(nil, WithTokenCounter(nil))

	res := a.Analyze(context.Background(), "text", "doc.pdf")

	assert.False(t, a.Enabled())
	assert.Equal(t, MissingKeyPlaceholder, res.Text)
	assert.ErrorIs(t, res.Err, ErrMissingKey)
}

func TestAnalyze_Success(t *testing.T) {
	gen := &stubGenerator{out: "stub analysis"}
	counted := 0
	a := NewAnalyzer(gen, WithTokenCounter(func(string) (int, error) {
		counted++
		return 42, nil
	}))

	res := a.Analyze(context.Background(), "some text", "report.pdf")

	require.False(t, res.Failed())
	assert.Equal(t, "stub analysis", res.Text)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, counted)
	assert.Contains(t, gen.prompts[0], `"report.pdf"`)
	assert.Contains(t, gen.prompts[0], "some text")
}

func TestAnalyze_FailureIsAValue(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	a := NewAnalyzer(gen, WithTokenCounter(nil))

	res := a.Analyze(context.Background(), "text", "doc.pdf")

	assert.True(t, res.Failed())
	assert.True(t, strings.HasPrefix(res.Text, failurePrefix))
	assert.Contains(t, res.Text, "quota exceeded")
}

func TestBuildPrompt_TruncatesInput(t *testing.T) {
	long := strings.Repeat("a", MaxInputChars) + "TAIL"

	prompt := BuildPrompt(long, "big.pdf")

	assert.NotContains(t, prompt, "TAIL")
	assert.Contains(t, prompt, strings.Repeat("a", MaxInputChars))
	for _, section := range []string{"Executive Summary", "Key Points", "Action Items & Deadlines",
		"Technical Terminology", "Unresolved Questions"} {
		assert.Contains(t, prompt, section)
	}
}

func TestTruncate_Runes(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
}
