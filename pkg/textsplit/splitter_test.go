package textsplit

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func sampleText() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("ARTICLE 25. Equality of citizens.\n")
		b.WriteString("All citizens are equal before law and are entitled to equal protection of law, ")
		b.WriteString("there shall be no discrimination on the basis of sex alone! Is that clear? Yes.\n\n")
		b.WriteString("آئین پاکستان کے تحت تمام شہری برابر ہیں۔ ")
		b.WriteString("unbrokenwordthatgoesonandonwithoutanyspacesatallforawhile\n")
	}
	return b.String()
}

func TestNewRejectsInvalidSizes(t *testing.T) {
	cases := []struct {
		size, overlap int
	}{
		{0, 0},
		{-1, 0},
		{100, -1},
		{100, 100},
		{100, 150},
	}
	for _, tc := range cases {
		if _, err := New(tc.size, tc.overlap); err == nil {
			t.Fatalf("New(%d, %d) expected error", tc.size, tc.overlap)
		}
	}
}

func TestSplitEmptyText(t *testing.T) {
	s, err := New(DefaultSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	if got := s.Split(""); len(got) != 0 {
		t.Fatalf("Split(\"\") = %d chunks, want 0", len(got))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := New(DefaultSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	text := "Article 1. The Republic.\n\nPakistan shall be a Federal Republic."
	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text || chunks[0].Overlap != 0 {
		t.Fatalf("unexpected chunk: %+v", chunks[0])
	}
}

func TestSplitReconstructsOriginal(t *testing.T) {
	text := sampleText()
	for _, cfg := range []struct{ size, overlap int }{
		{50, 10},
		{200, 40},
		{DefaultSize, DefaultOverlap},
		{64, 0},
	} {
		s, err := New(cfg.size, cfg.overlap)
		if err != nil {
			t.Fatalf("new splitter: %v", err)
		}
		chunks := s.Split(text)
		if got := Reconstruct(chunks); got != text {
			t.Fatalf("size=%d overlap=%d: reconstruction lost text (got %d runes, want %d)",
				cfg.size, cfg.overlap, utf8.RuneCountInString(got), utf8.RuneCountInString(text))
		}
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	const size, overlap = 120, 30
	s, err := New(size, overlap)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := s.Split(sampleText())
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		n := utf8.RuneCountInString(chunk.Text)
		if n > size {
			t.Fatalf("chunk %d has %d runes, limit %d", i, n, size)
		}
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Index)
		}
		if i == 0 {
			if chunk.Overlap != 0 {
				t.Fatalf("first chunk overlap = %d, want 0", chunk.Overlap)
			}
			continue
		}
		prev := []rune(chunks[i-1].Text)
		head := []rune(chunk.Text)[:overlap]
		tail := prev[len(prev)-overlap:]
		if string(head) != string(tail) {
			t.Fatalf("chunk %d head %q does not match previous tail %q", i, string(head), string(tail))
		}
	}
}

func TestSplitHardCutChunkCount(t *testing.T) {
	s, err := New(1500, 300)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	text := strings.Repeat("abcdefghij", 8000)
	chunks := s.Split(text)
	if len(chunks) != 67 {
		t.Fatalf("got %d chunks, want 67", len(chunks))
	}
	if Reconstruct(chunks) != text {
		t.Fatalf("hard-cut reconstruction mismatch")
	}
}

func TestSplitWordTextChunkCount(t *testing.T) {
	s, err := New(1500, 300)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	text := strings.Repeat("lorem ipsum dolor sit amet, ", 3000)[:80000]
	chunks := s.Split(text)
	if len(chunks) < 66 || len(chunks) > 68 {
		t.Fatalf("got %d chunks, want 67±1", len(chunks))
	}
}

// Sentence cuts give back the tail of the window on every chunk, so prose
// lands a little above the hard-cut count. The bounds follow from the size
// and overlap invariants with sentences no longer than the longest below.
func TestSplitSentenceProseChunkCount(t *testing.T) {
	const size, overlap, total = 1500, 300, 80000
	s, err := New(size, overlap)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	sentences := []string{
		"The Federal Government shall ensure that every citizen is treated equally before the law. ",
		"No person shall be deprived of life or liberty save in accordance with law. ",
		"Parliament may by law provide for the constitution and organisation of the courts of the country. ",
		"Every bill passed by the Assembly shall be presented to the President for assent. ",
		"The committee examined the proposals in detail and recommended several amendments to the text. ",
		"A member may ask a question relating to a public matter for which a Minister is responsible. ",
	}
	longest := 0
	for _, sentence := range sentences {
		longest = max(longest, len(sentence))
	}
	var b strings.Builder
	for i := 0; b.Len() < total; i++ {
		b.WriteString(sentences[i%len(sentences)])
	}
	text := b.String()[:total]

	chunks := s.Split(text)
	lower := 1 + (total-size+size-overlap-1)/(size-overlap)
	upper := 2 + (total-size+longest)/(size-overlap-longest)
	if len(chunks) < lower || len(chunks) > upper {
		t.Fatalf("got %d chunks, want between %d and %d", len(chunks), lower, upper)
	}
	if lower != 67 {
		t.Fatalf("hard-cut floor = %d, want 67", lower)
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(chunk.Text, ". ") && !strings.HasSuffix(chunk.Text, ".") {
			t.Fatalf("chunk %d does not end on a sentence: %q", i, chunk.Text[len(chunk.Text)-20:])
		}
		if utf8.RuneCountInString(chunk.Text) <= size-longest {
			t.Fatalf("chunk %d gave back more than one sentence: %d runes", i, utf8.RuneCountInString(chunk.Text))
		}
	}
	if Reconstruct(chunks) != text {
		t.Fatalf("prose reconstruction mismatch")
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	s, err := New(20, 5)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := s.Split("hello world\n\nsecond paragraph here and more")
	if chunks[0].Text != "hello world\n\n" {
		t.Fatalf("first chunk = %q, want paragraph break cut", chunks[0].Text)
	}
	if chunks[1].Text != "rld\n\nsecond " {
		t.Fatalf("second chunk = %q", chunks[1].Text)
	}
}

func TestSplitSentenceBeatsComma(t *testing.T) {
	s, err := New(30, 0)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := s.Split("First clause, second. Third part goes on and on")
	if chunks[0].Text != "First clause, second." {
		t.Fatalf("first chunk = %q", chunks[0].Text)
	}
}

func TestAllIsRestartable(t *testing.T) {
	s, err := New(40, 8)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	seq := s.All(sampleText())
	var first, second []string
	for c := range seq {
		first = append(first, c.Text)
	}
	for c := range seq {
		second = append(second, c.Text)
	}
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("restart mismatch: %d vs %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between passes", i)
		}
	}
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("early break yielded %d chunks", count)
	}
}
