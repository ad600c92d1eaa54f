package telegram

import "strings"

// MaxMessageLength is the Telegram hard cap per sendMessage call.
// ChunkLimit stays below it to leave room for formatting retries.
const (
	MaxMessageLength = 4096
	ChunkLimit       = 4000
)

// SplitMessage breaks text into pieces no longer than limit runes,
// preferring paragraph boundaries, then sentence boundaries, and only
// hard-cutting when a single sentence exceeds the limit. No content
// is dropped.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = ChunkLimit
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	appendPiece := func(piece string, sep string) {
		pieceLen := len([]rune(piece))
		sepLen := len([]rune(sep))
		if currentLen > 0 && currentLen+sepLen+pieceLen > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= limit {
			appendPiece(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			if len([]rune(sentence)) <= limit {
				appendPiece(sentence, " ")
				continue
			}
			// A single oversized sentence gets hard cut.
			for _, piece := range hardCut(sentence, limit) {
				appendPiece(piece, " ")
			}
		}
	}
	flush()
	return chunks
}

// splitSentences cuts on terminal punctuation followed by whitespace,
// keeping the punctuation with the sentence.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?', '\n':
			end := i + 1
			for end < len(runes) && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?') {
				end++
			}
			if end >= len(runes) || runes[end] == ' ' || runes[end] == '\n' {
				s := strings.TrimSpace(string(runes[start:end]))
				if s != "" {
					out = append(out, s)
				}
				start = end
				i = end - 1
			}
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hardCut(text string, limit int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
