package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextIntoChunksEmpty(t *testing.T) {
	if chunks := SplitTextIntoChunks("", DefaultChunkConfig); len(chunks) != 0 {
		t.Errorf("Expected no chunks for empty text, got %d", len(chunks))
	}
	if chunks := SplitTextIntoChunks("\n\n  \n\n", DefaultChunkConfig); len(chunks) != 0 {
		t.Errorf("Expected no chunks for whitespace text, got %d", len(chunks))
	}
}

func TestSplitTextIntoChunksSingleParagraph(t *testing.T) {
	chunks := SplitTextIntoChunks("商品七天内可退货。", DefaultChunkConfig)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "商品七天内可退货。" {
		t.Errorf("Unexpected chunk: %q", chunks[0])
	}
}

func TestSplitTextIntoChunksOverlap(t *testing.T) {
	// Two paragraphs that together exceed the chunk size but individually
	// fit: the second chunk must start with the trailing overlap of the
	// first.
	para1 := strings.Repeat("退货政策商品七天无理由退货", 36) // 432 chars
	para2 := strings.Repeat("特殊商品不支持退货", 10)     // 90 chars
	text := para1 + "\n\n" + para2

	chunks := SplitTextIntoChunks(text, ChunkConfig{ChunkSize: 500, ChunkOverlap: 50})
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != para1 {
		t.Errorf("Expected first chunk to be the first paragraph")
	}

	overlap := lastRunes(para1, 50)
	if !strings.HasPrefix(chunks[1], overlap) {
		t.Errorf("Expected second chunk to begin with the last 50 characters of the first")
	}
	if !strings.HasSuffix(chunks[1], para2) {
		t.Errorf("Expected second chunk to end with the second paragraph")
	}
}

func TestSplitTextIntoChunksOversizedParagraph(t *testing.T) {
	// One paragraph far over the chunk size gets re-split on sentence
	// boundaries and greedily packed.
	sentence := strings.Repeat("质量问题商品可以申请售后", 10) // 120 chars
	text := sentence + "。" + sentence + "。" + sentence + "。" + sentence + "。" + sentence + "。"

	chunks := SplitTextIntoChunks(text, ChunkConfig{ChunkSize: 300, ChunkOverlap: 50})
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 300 {
			t.Errorf("Chunk %d exceeds size: %d runes", i, utf8.RuneCountInString(c))
		}
	}
}

func TestSplitTextIntoChunksDeterministic(t *testing.T) {
	text := strings.Repeat("发货时间为付款后48小时内。偏远地区可能延迟。\n\n", 40)
	cfg := ChunkConfig{ChunkSize: 200, ChunkOverlap: 30}

	first := SplitTextIntoChunks(text, cfg)
	second := SplitTextIntoChunks(text, cfg)

	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Chunk %d differs between runs", i)
		}
	}
}

func TestSplitTextIntoChunksNoDataLoss(t *testing.T) {
	text := "第一段介绍退货流程的基本要求。\n\n" +
		strings.Repeat("第二段很长且包含多个句子。用户需要先申请售后。然后等待商家审核通过。", 8) + "\n\n" +
		"第三段是结尾。"

	chunks := SplitTextIntoChunks(text, ChunkConfig{ChunkSize: 150, ChunkOverlap: 20})
	joined := strings.Join(chunks, "")

	// Sentence-boundary splitting may drop terminator punctuation, but every
	// substantive character must survive into at least one chunk.
	for _, r := range text {
		switch r {
		case '。', '！', '？', '.', '!', '?', '\n', ' ':
			continue
		}
		if !strings.ContainsRune(joined, r) {
			t.Errorf("Character %q lost during chunking", r)
		}
	}
}

func TestSplitTextIntoChunksCustomSeparator(t *testing.T) {
	chunks := SplitTextIntoChunks("第一部分|第二部分|第三部分", ChunkConfig{ChunkSize: 100, ChunkOverlap: 10, Separator: "|"})
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 packed chunk, got %d", len(chunks))
	}
	if chunks[0] != "第一部分|第二部分|第三部分" {
		t.Errorf("Unexpected chunk: %q", chunks[0])
	}
}
