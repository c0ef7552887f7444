package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT special token IDs.
const (
	tokenCLS = 101
	tokenSEP = 102
)

// Tokenizer produces the three BERT-style input slices for a text
// (input_ids, attention_mask, token_type_ids), padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// WordTokenizer splits on whitespace and hashes each word into a token
// ID. It stands in for a real WordPiece vocabulary: deterministic and
// good enough to drive the model, not faithful to its training tokens.
type WordTokenizer struct{}

// Tokenize produces padded token slices for text, truncating past
// maxTokens (minimum 16, default 256 when non-positive).
func (t *WordTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if maxTokens < 16 {
		maxTokens = 16
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = wordID(word)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = tokenSEP
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordID hashes a word into the model's vocabulary range, clear of the
// special token IDs.
func wordID(word string) int64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(word)))
	return int64(h.Sum32()%29000) + 1000
}
