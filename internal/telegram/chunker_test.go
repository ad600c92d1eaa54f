package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShortTextSinglePiece(t *testing.T) {
	got := SplitMessage("xin chào", 4000)
	if len(got) != 1 || got[0] != "xin chào" {
		t.Fatalf("SplitMessage = %q, want single original piece", got)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if got := SplitMessage("   \n\n  ", 4000); got != nil {
		t.Fatalf("SplitMessage on blank input = %q, want nil", got)
	}
}

func TestSplitMessagePrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("a", 60)
	text := para + "\n\n" + para + "\n\n" + para
	got := SplitMessage(text, 130)
	if len(got) != 2 {
		t.Fatalf("chunk count = %d, want 2: %q", len(got), got)
	}
	for i, c := range got {
		if len([]rune(c)) > 130 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
	}
	if got[0] != para+"\n\n"+para {
		t.Fatalf("first chunk did not pack two paragraphs: %q", got[0])
	}
}

func TestSplitMessageFallsBackToSentences(t *testing.T) {
	sentence := "Đây là một câu dài vừa phải."
	para := strings.TrimSpace(strings.Repeat(sentence+" ", 10))
	got := SplitMessage(para, 100)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("chunk %d does not end on a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitMessageHardCutsOversizedSentence(t *testing.T) {
	text := strings.Repeat("x", 250)
	got := SplitMessage(text, 100)
	if len(got) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(got))
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Fatalf("hard cut lost content: %d runes out, want 250", len(joined))
	}
}

func TestSplitMessagePreservesAllContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Câu số một nói về thời tiết hôm nay. Câu số hai nói về tin tức.")
		b.WriteString("\n\n")
	}
	text := strings.TrimSpace(b.String())
	got := SplitMessage(text, 500)

	wantWords := strings.Fields(text)
	gotWords := strings.Fields(strings.Join(got, " "))
	if len(gotWords) != len(wantWords) {
		t.Fatalf("word count changed: got %d, want %d", len(gotWords), len(wantWords))
	}
	for i := range wantWords {
		if gotWords[i] != wantWords[i] {
			t.Fatalf("word %d changed: got %q, want %q", i, gotWords[i], wantWords[i])
		}
	}
}
