// Package textsplit cuts document text into overlapping, size-bounded chunks.
//
// Sizes and offsets are counted in runes. Every chunk is an exact substring of
// the input, so dropping each chunk's leading Overlap runes and concatenating
// the rest reproduces the original text.
package textsplit

import (
	"fmt"
	"iter"
	"strings"
)

const (
	DefaultSize    = 1500
	DefaultOverlap = 300
)

// DefaultSeparators are tried in priority order before falling back to a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// Chunk is one window of the input text.
type Chunk struct {
	Index int
	Text  string
	// Start and End are rune offsets of Text within the input.
	Start int
	End   int
	// Overlap is the number of leading runes shared with the previous chunk.
	Overlap int
}

// Splitter is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// New builds a splitter. With no separators, DefaultSeparators are used.
func New(size, overlap int, separators ...string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be >= 0, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([][]rune, 0, len(separators))
	for _, sep := range separators {
		if sep == "" {
			continue
		}
		seps = append(seps, []rune(sep))
	}
	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// All lazily yields the chunks of text in order. The sequence can be ranged
// over any number of times.
func (s *Splitter) All(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}
		start, index := 0, 0
		for {
			end := s.cut(runes, start)
			overlap := 0
			if index > 0 {
				overlap = s.overlap
			}
			chunk := Chunk{
				Index:   index,
				Text:    string(runes[start:end]),
				Start:   start,
				End:     end,
				Overlap: overlap,
			}
			if !yield(chunk) {
				return
			}
			if end >= len(runes) {
				return
			}
			start = end - s.overlap
			index++
		}
	}
}

// Split collects All into a slice.
func (s *Splitter) Split(text string) []Chunk {
	var chunks []Chunk
	for chunk := range s.All(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// cut returns the exclusive end of the chunk starting at start. The end always
// lies beyond start+overlap so the next chunk makes progress.
func (s *Splitter) cut(runes []rune, start int) int {
	limit := start + s.size
	if limit >= len(runes) {
		return len(runes)
	}
	floor := start + s.overlap
	for _, sep := range s.separators {
		if end := lastSeparatorEnd(runes, sep, start, floor, limit); end > 0 {
			return end
		}
	}
	return limit
}

// lastSeparatorEnd finds the last occurrence of sep at or after start whose
// end falls inside (floor, limit] and returns that end, or -1.
func lastSeparatorEnd(runes, sep []rune, start, floor, limit int) int {
	for i := limit - len(sep); i >= start && i+len(sep) > floor; i-- {
		if hasPrefixAt(runes, sep, i) {
			return i + len(sep)
		}
	}
	return -1
}

func hasPrefixAt(runes, sep []rune, at int) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

// Reconstruct reverses a split by dropping each chunk's overlap.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		runes := []rune(chunk.Text)
		if chunk.Overlap > len(runes) {
			continue
		}
		b.WriteString(string(runes[chunk.Overlap:]))
	}
	return b.String()
}
