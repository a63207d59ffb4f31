package moderation

import (
	"bufio"
	"chat-relay/errors"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"
)

//go:embed wordlists/*.txt
var embedded embed.FS

// WordListDir holds one <language>.txt file per language.
const WordListDir = "wordlists"

// WordLists maps a language code to its blocked words.
type WordLists map[string][]string

// LoadWordLists reads every .txt file of dir. Blank lines and lines starting
// with '#' are skipped.
func LoadWordLists(fsys fs.FS, dir string) (WordLists, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	lists := make(WordLists, len(files))
	for _, file := range files {
		words, err := readWordList(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("word list %s: %w", file, err)
		}
		if len(words) > 0 {
			lists[strings.TrimSuffix(path.Base(file), ".txt")] = words
		}
	}
	if len(lists) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return lists, nil
}

// LoadEmbeddedWordLists reads the lists compiled into the binary.
func LoadEmbeddedWordLists() (WordLists, error) {
	return LoadWordLists(embedded, WordListDir)
}

func readWordList(fsys fs.FS, file string) ([]string, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}

// Languages is sorted.
func (w WordLists) Languages() []string {
	languages := lo.Keys(map[string][]string(w))
	sort.Strings(languages)
	return languages
}

// Words merges every language, without duplicates.
func (w WordLists) Words() []string {
	return lo.Uniq(lo.Flatten(lo.Values(map[string][]string(w))))
}
