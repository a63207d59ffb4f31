package moderation

import (
	"bytes"
	"chat-relay/errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, words ...string) *Filter {
	t.Helper()
	f, err := NewFilter(logs.GetLoggerFromLevel(slog.LevelDebug), words, '#')
	require.NoError(t, err)
	return f
}

func TestFilter_Censor(t *testing.T) {
	f := newTestFilter(t, "idiot", "idiots", "moron", "loser")

	tests := []struct {
		name     string
		line     string
		expected string
		words    []string
	}{
		{
			name:     "Public line keeps its spacing",
			line:     "bob you idiot",
			expected: "bob you #####",
			words:    []string{"idiot"},
		},
		{
			name:     "Case is ignored",
			line:     "MORON alert",
			expected: "##### alert",
			words:    []string{"moron"},
		},
		{
			name:     "Look-alikes and separators",
			line:     "what a 1.d.1.0.t",
			expected: "what a #########",
			words:    []string{"idiot"},
		},
		{
			name:     "Dashed letters",
			line:     "L-O-S-E-R, said alice",
			expected: "#########, said alice",
			words:    []string{"loser"},
		},
		{
			name:     "Trailing punctuation stays",
			line:     "stop it, moron!",
			expected: "stop it, #####!",
			words:    []string{"moron"},
		},
		{
			name:     "Plural listed separately",
			line:     "idiots everywhere",
			expected: "###### everywhere",
			words:    []string{"idiots"},
		},
		{
			name:     "Inside a longer word is kept",
			line:     "the oxymoron of a closer relay",
			expected: "the oxymoron of a closer relay",
			words:    nil,
		},
		{
			name:     "Several words in one line",
			line:     "idiot and moron",
			expected: "##### and #####",
			words:    []string{"idiot", "moron"},
		},
		{
			name:     "Nothing to censor",
			line:     "[Private] alice: see you at the relay",
			expected: "[Private] alice: see you at the relay",
			words:    nil,
		},
		{
			name:     "Empty line",
			line:     "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := f.Censor(tt.line)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestFilter_Scan_Offsets(t *testing.T) {
	req := require.New(t)
	f := newTestFilter(t, "crétin")

	// Given a line with multi-byte runes before the word
	hits := f.Scan("été, quel crétin")

	// Then offsets are counted in runes
	req.Equal([]Hit{{Word: "crétin", Start: 10, End: 16}}, hits)
}

func TestFilter_NoiseOnlyWordsAreIgnored(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a list mixing noise with one real word
	f, err := NewFilter(log, []string{"...", " ", "", "jerk"}, '*')
	req.NoError(err)

	// Then only the real word is masked, noise in a line is untouched
	content, _ := f.Censor("jerk ...")
	req.Equal("**** ...", content)

	// And a list of noise only is refused
	_, err = NewFilter(log, []string{"...", ",,,"}, '*')
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestFilter_DuplicatePatterns(t *testing.T) {
	req := require.New(t)

	// Given two spellings folding to the same pattern
	f := newTestFilter(t, "jerk", "J.E.R.K")

	content, words := f.Censor("jerk")
	req.Equal("####", content)
	req.Equal([]string{"jerk"}, words)
}

func TestFilter_Censor_LogsCensoredLinesOnly(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, nil))
	f, err := NewFilter(log, []string{"loser"}, '#')
	req.NoError(err)

	f.Censor("good game everyone")
	req.Empty(out.String())

	f.Censor("what a loser, honestly")
	req.Equal(1, strings.Count(out.String(), "Message censored"))
	req.Contains(out.String(), "loser")
}
