package knowledge

import (
	"regexp"
	"strings"
)

// ChunkConfig controls document splitting. Sizes are in characters (runes),
// not tokens.
type ChunkConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// DefaultChunkConfig is tuned for shop policy documents: paragraphs around
// 500 characters with a 50-character sliding overlap.
var DefaultChunkConfig = ChunkConfig{
	ChunkSize:    500,
	ChunkOverlap: 50,
	Separator:    "\n\n",
}

// Matches CJK and Latin sentence terminators.
var sentenceEndRe = regexp.MustCompile(`[。！？.!?]+`)

// SplitTextIntoChunks splits text into bounded chunks. Text is first split
// into paragraphs on the separator; oversized paragraphs are re-split on
// sentence boundaries and greedily packed, while normal paragraphs accumulate
// until the chunk would overflow, at which point the chunk is emitted and the
// next one is seeded with the trailing overlap characters. Deterministic:
// same input and config always produce the same sequence.
func SplitTextIntoChunks(text string, config ChunkConfig) []string {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkConfig.ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = DefaultChunkConfig.ChunkOverlap
	}
	if config.Separator == "" {
		config.Separator = DefaultChunkConfig.Separator
	}

	var paragraphs []string
	for _, p := range strings.Split(text, config.Separator) {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	currentChunk := ""

	for _, paragraph := range paragraphs {
		if runeLen(paragraph) > config.ChunkSize {
			// Oversized paragraph: flush what we have, then pack sentences.
			if currentChunk != "" {
				chunks = append(chunks, strings.TrimSpace(currentChunk))
				currentChunk = ""
			}

			tempChunk := ""
			for _, sentence := range splitSentences(paragraph) {
				if runeLen(tempChunk)+runeLen(sentence) > config.ChunkSize {
					if tempChunk != "" {
						chunks = append(chunks, strings.TrimSpace(tempChunk))
					}
					tempChunk = sentence
				} else if tempChunk != "" {
					tempChunk += "。" + sentence
				} else {
					tempChunk = sentence
				}
			}
			if tempChunk != "" {
				chunks = append(chunks, strings.TrimSpace(tempChunk))
			}
			continue
		}

		if runeLen(currentChunk)+runeLen(paragraph) > config.ChunkSize {
			if currentChunk != "" {
				chunks = append(chunks, strings.TrimSpace(currentChunk))
				currentChunk = lastRunes(currentChunk, config.ChunkOverlap) + paragraph
			} else {
				currentChunk = paragraph
			}
		} else if currentChunk != "" {
			currentChunk += config.Separator + paragraph
		} else {
			currentChunk = paragraph
		}
	}

	if currentChunk != "" {
		chunks = append(chunks, strings.TrimSpace(currentChunk))
	}

	return chunks
}

func splitSentences(paragraph string) []string {
	var sentences []string
	for _, s := range sentenceEndRe.Split(paragraph, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func runeLen(s string) int {
	return len([]rune(s))
}

// lastRunes returns the trailing n runes of s.
func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
