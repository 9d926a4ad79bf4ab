package explain

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// indexedText splits text into alternating word and separator pieces so that
// words can be removed while separators survive.
type indexedText struct {
	pieces []string
	// wordAt maps a piece to its vocabulary id, or -1 for separators.
	wordAt []int
	vocab  []string
}

func indexText(text string) *indexedText {
	it := &indexedText{}
	ids := make(map[string]int)

	add := func(piece string, isWord bool) {
		if piece == "" {
			return
		}
		id := -1
		if isWord {
			var ok bool
			if id, ok = ids[piece]; !ok {
				id = len(it.vocab)
				ids[piece] = id
				it.vocab = append(it.vocab, piece)
			}
		}
		it.pieces = append(it.pieces, piece)
		it.wordAt = append(it.wordAt, id)
	}

	last := 0
	for _, loc := range nonWord.FindAllStringIndex(text, -1) {
		add(text[last:loc[0]], true)
		add(text[loc[0]:loc[1]], false)
		last = loc[1]
	}
	add(text[last:], true)
	return it
}

// numWords is the number of distinct words.
func (it *indexedText) numWords() int { return len(it.vocab) }

// without rebuilds the text with every occurrence of the given word ids removed.
func (it *indexedText) without(removed map[int]bool) string {
	var sb strings.Builder
	for i, piece := range it.pieces {
		if id := it.wordAt[i]; id >= 0 && removed[id] {
			continue
		}
		sb.WriteString(piece)
	}
	return sb.String()
}
