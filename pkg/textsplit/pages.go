package textsplit

import (
	"sort"
	"unicode/utf8"
)

// PageMap resolves rune offsets within page texts joined by a separator to
// 1-based page numbers.
type PageMap struct {
	starts  []int
	numbers []int
}

// NewPageMap records where each page begins once pages are joined with sep.
// numbers gives the page number of each entry; nil means 1..len(pages).
func NewPageMap(pages []string, numbers []int, sep string) PageMap {
	m := PageMap{
		starts:  make([]int, 0, len(pages)),
		numbers: make([]int, 0, len(pages)),
	}
	sepLen := utf8.RuneCountInString(sep)
	offset := 0
	for i, page := range pages {
		if i > 0 {
			offset += sepLen
		}
		number := i + 1
		if i < len(numbers) {
			number = numbers[i]
		}
		m.starts = append(m.starts, offset)
		m.numbers = append(m.numbers, number)
		offset += utf8.RuneCountInString(page)
	}
	return m
}

// PageAt returns the page holding the rune at offset, or 1 when no pages are known.
func (m PageMap) PageAt(offset int) int {
	if len(m.starts) == 0 {
		return 1
	}
	i := sort.Search(len(m.starts), func(i int) bool { return m.starts[i] > offset })
	if i == 0 {
		return m.numbers[0]
	}
	return m.numbers[i-1]
}

// PageOf returns the page where the chunk's new (non-overlapping) text begins.
func (m PageMap) PageOf(chunk Chunk) int {
	offset := chunk.Start + chunk.Overlap
	if offset >= chunk.End {
		offset = chunk.Start
	}
	return m.PageAt(offset)
}
