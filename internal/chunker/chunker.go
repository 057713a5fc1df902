// Package chunker splits raw document text into bounded, overlapping
// segments suitable for embedding and retrieval.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkChars is the default chunk size budget
	DefaultMaxChunkChars = 1000

	// DefaultOverlapChars controls the word overlap seeded into the next
	// chunk: the last overlap/10 words of a closed chunk are carried over.
	DefaultOverlapChars = 200

	// minChunkChars filters out chunks too short to be useful context
	minChunkChars = 50
)

// Split segments text into sentence-like units on terminal punctuation and
// greedily accumulates them into chunks of at most maxChunkChars characters.
// Each chunk after the first is seeded with the trailing words of its
// predecessor. A single sentence longer than maxChunkChars is emitted
// verbatim; sentences are never split. Chunks whose trimmed length is at
// most 50 characters are dropped. The output is deterministic: identical
// input and parameters always yield an identical sequence.
func Split(text string, maxChunkChars, overlapChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current string

	for _, sentence := range sentences {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > maxChunkChars && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = overlapTail(current, overlapChars) + " " + sentence
		} else {
			if current != "" {
				current += " "
			}
			current += sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	var out []string
	for _, c := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(c)) > minChunkChars {
			out = append(out, c)
		}
	}
	return out
}

// splitSentences breaks text on terminal punctuation, dropping units that
// are empty after trimming.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var sentences []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// overlapTail returns the last overlapChars/10 words of chunk, used to seed
// the next chunk so adjacent chunks share context.
func overlapTail(chunk string, overlapChars int) string {
	words := strings.Fields(chunk)
	n := overlapChars / 10
	if n >= len(words) {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}
