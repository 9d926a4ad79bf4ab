package ai

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Reserved ids, matching a Keras TextVectorization vocabulary export.
const (
	padID int64 = 0
	oovID int64 = 1
)

var punctuation = regexp.MustCompile("[!\"#$%&()*+,\\-./:;<=>?@\\[\\\\\\]^_`{|}~']")

// Vocabulary maps normalized tokens to model ids.
type Vocabulary struct {
	ids    map[string]int64
	seqLen int
}

// LoadVocabulary reads one token per line; the line number is the id.
func LoadVocabulary(path string, seqLen int) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()
	return ReadVocabulary(f, seqLen)
}

// ReadVocabulary parses a vocabulary from r.
func ReadVocabulary(r io.Reader, seqLen int) (*Vocabulary, error) {
	if seqLen < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}

	ids := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := ids[tok]; !dup && tok != "" {
			ids[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	return &Vocabulary{ids: ids, seqLen: seqLen}, nil
}

// SeqLen is the fixed token length fed to the model.
func (v *Vocabulary) SeqLen() int { return v.seqLen }

// Encode lowercases, strips punctuation, splits on whitespace and maps tokens
// to ids, truncating or zero-padding to SeqLen.
func (v *Vocabulary) Encode(text string) []int64 {
	out := make([]int64, v.seqLen)
	clean := punctuation.ReplaceAllString(strings.ToLower(text), "")

	for i, tok := range strings.Fields(clean) {
		if i >= v.seqLen {
			break
		}
		id, ok := v.ids[tok]
		if !ok {
			id = oovID
		}
		out[i] = id
	}
	return out
}
