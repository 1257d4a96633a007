package playback

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChunkChars keeps each synthesis request short enough that the
// first audio arrives quickly.
const DefaultMaxChunkChars = 200

// ChunkText splits text into pieces of at most maxChars runes for synthesis.
// Text that already fits is returned unchanged as the only element. Longer
// text is cut at the last sentence end within the limit, else the last
// whitespace, else mid-word at the limit. Chunks are trimmed of surrounding
// whitespace and are in input order.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	rest := text
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			return chunks
		}
		if utf8.RuneCountInString(rest) <= maxChars {
			return append(chunks, strings.TrimRightFunc(rest, unicode.IsSpace))
		}
		cut := bestCut(rest, maxChars)
		if chunk := strings.TrimRightFunc(rest[:cut], unicode.IsSpace); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = rest[cut:]
	}
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '?' || r == '!' || r == '\n'
}

// bestCut returns the byte offset to cut s at, given s is longer than
// maxChars runes. A sentence end is preferred unless it falls in the first
// half of the window. The result is always > 0.
func bestCut(s string, maxChars int) int {
	runes := 0
	sentenceCut, sentenceRunes, spaceCut, hardCut := 0, 0, 0, 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		runes++
		if runes > maxChars {
			// A word ending exactly at the limit is still a clean cut.
			if unicode.IsSpace(r) {
				spaceCut = i
			}
			break
		}
		next := i + size
		if isSentenceEnd(r) && (next == len(s) || startsWithSpace(s[next:])) {
			sentenceCut, sentenceRunes = next, runes
		}
		if unicode.IsSpace(r) && i > 0 {
			spaceCut = i
		}
		hardCut = next
		i = next
	}
	switch {
	case sentenceCut > 0 && (sentenceRunes*2 >= maxChars || spaceCut == 0):
		return sentenceCut
	case spaceCut > 0:
		return spaceCut
	default:
		return hardCut
	}
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
