package moderation

import (
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// lookalikes folds the digits and symbols used to dodge the filter.
var lookalikes = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
	'7': 't',
}

// Hit is a blocked word found in a chat line. Start and End are rune
// offsets into the original line, End excluded.
type Hit struct {
	Word  string
	Start int
	End   int
}

// Filter masks blocked words in chat lines. A word only matches as a whole
// word of the line, so "classic" never hides "ass". Separators inside a word
// ("i.d.i.o.t", "m-o-r-o-n") and look-alikes ("1d10t") are seen through.
type Filter struct {
	log     *slog.Logger
	machine *goahocorasick.Machine
	mask    rune
}

func NewFilter(log *slog.Logger, words []string, mask rune) (*Filter, error) {
	patterns := lo.UniqBy(
		lo.FilterMap(words, func(word string, _ int) ([]rune, bool) {
			folded := fold([]rune(word)).runes
			return folded, len(folded) > 0
		}),
		func(p []rune) string { return string(p) },
	)
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, fmt.Errorf("moderation automaton: %w", err)
	}
	return &Filter{log: log, machine: machine, mask: mask}, nil
}

// Scan returns the blocked words of line in order of appearance.
func (f *Filter) Scan(line string) []Hit {
	original := []rune(line)
	folded := fold(original)
	if len(folded.runes) == 0 {
		return nil
	}

	var hits []Hit
	for _, term := range f.machine.MultiPatternSearch(folded.runes, false) {
		last := term.Pos + len(term.Word) - 1
		if term.Pos < 0 || last >= len(folded.from) {
			continue
		}
		hit := Hit{Word: string(term.Word), Start: folded.from[term.Pos], End: folded.from[last] + 1}
		if wholeWord(original, hit) {
			hits = append(hits, hit)
		}
	}
	return hits
}

// Censor masks every hit with one mask rune per original rune, so the line
// keeps its length and spacing. It returns the blocked words found.
func (f *Filter) Censor(line string) (string, []string) {
	hits := f.Scan(line)
	if len(hits) == 0 {
		return line, nil
	}

	runes := []rune(line)
	for _, hit := range hits {
		for i := hit.Start; i < hit.End; i++ {
			runes[i] = f.mask
		}
	}
	words := lo.Map(hits, func(h Hit, _ int) string { return h.Word })
	f.log.Info("Message censored",
		"lang", whatlanggo.Detect(line).Lang.Iso6391(),
		"words", words)
	return string(runes), words
}

// folded is a line reduced to lowercase letters, each one remembering the
// index of the rune it came from.
type folded struct {
	runes []rune
	from  []int
}

func fold(line []rune) folded {
	f := folded{runes: make([]rune, 0, len(line)), from: make([]int, 0, len(line))}
	for i, r := range line {
		if l, ok := lookalikes[r]; ok {
			r = l
		}
		if isSeparator(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.from = append(f.from, i)
	}
	return f
}

func isSeparator(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

func wholeWord(line []rune, hit Hit) bool {
	if hit.Start > 0 && isWordRune(line[hit.Start-1]) {
		return false
	}
	if hit.End < len(line) && isWordRune(line[hit.End]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
