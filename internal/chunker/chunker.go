// Package chunker splits raw text into overlapping bounded-size fragments
// that preserve original order and reconstruct the source text exactly.
package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"knowledgebase/internal/models"
)

const (
	defaultMaxChars     = 1000
	defaultOverlapChars = 200
)

type Chunker struct {
	maxChars     int
	overlapChars int
}

func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

func (c *Chunker) Overlap() int { return c.overlapChars }

// Split fragments content into chunks of at most maxChars bytes. Consecutive
// chunks share overlapChars of trailing/leading text; a chunk boundary
// prefers a nearby space, newline or sentence end over a hard cut, and every
// cut lands on a rune boundary so chunks stay valid UTF-8. Empty input yields
// no chunks; input shorter than maxChars yields exactly one.
func (c *Chunker) Split(content string) []models.Chunk {
	if len(content) == 0 {
		return nil
	}
	if len(content) <= c.maxChars {
		return []models.Chunk{{Content: content, Index: 0, Metadata: map[string]string{"offset": "0"}}}
	}

	var chunks []models.Chunk
	contentLen := len(content)
	start := 0
	idx := 0
	for start < contentLen {
		end := min(start+c.maxChars, contentLen)

		// Look for a natural break within the last tenth of the chunk.
		if end < contentLen {
			lookBack := min(c.maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
			end = runeAlign(content, end, start)
		}

		chunks = append(chunks, models.Chunk{
			Content:  content[start:end],
			Index:    idx,
			Metadata: map[string]string{"offset": strconv.Itoa(start)},
		})
		if end == contentLen {
			break
		}

		next := end - c.overlapChars
		if next > start {
			next = runeAlign(content, next, start)
		}
		if next <= start {
			next = end
		}
		start = next
		idx++
	}
	return chunks
}

// runeAlign backs pos off to the start of the rune it falls inside, never
// moving at or before floor. When the back-off would reach floor, pos advances
// to the next rune boundary instead so the caller always makes progress.
func runeAlign(content string, pos, floor int) int {
	for pos > floor && !utf8.RuneStart(content[pos]) {
		pos--
	}
	if pos <= floor {
		_, size := utf8.DecodeRuneInString(content[floor:])
		return floor + size
	}
	return pos
}

// Reconstruct rebuilds the original text from an ordered chunk sequence by
// dropping the leading overlap of every chunk after the first. The exact
// overlap of a chunk is derived from its offset metadata when present, so
// reconstruction stays byte-exact even where a boundary break shortened a
// chunk; overlapChars is the fallback for chunks without offsets.
func Reconstruct(chunks []models.Chunk, overlapChars int) string {
	var b strings.Builder
	prevEnd := -1
	for i, chunk := range chunks {
		content := chunk.Content
		offset, haveOffset := chunkOffset(chunk)
		if i > 0 {
			skip := overlapChars
			if haveOffset && prevEnd >= 0 {
				skip = prevEnd - offset
			}
			if skip >= len(content) {
				continue
			}
			if skip > 0 {
				content = content[skip:]
			}
		}
		b.WriteString(content)
		if haveOffset {
			prevEnd = offset + len(chunk.Content)
		} else {
			prevEnd = -1
		}
	}
	return b.String()
}

func chunkOffset(chunk models.Chunk) (int, bool) {
	raw, ok := chunk.Metadata["offset"]
	if !ok {
		return 0, false
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return offset, true
}
