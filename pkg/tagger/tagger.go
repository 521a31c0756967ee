// Package tagger derives best-effort section and date metadata from chunk text.
//
// Detection runs an ordered list of strategies and keeps the first match.
// False negatives are expected; callers must treat a nil field as "unknown".
package tagger

import (
	"regexp"
	"strings"
)

// Strategy extracts one candidate value from text.
type Strategy interface {
	Name() string
	Match(text string) (string, bool)
}

// RegexStrategy reports the first capture group of its pattern.
type RegexStrategy struct {
	name    string
	pattern *regexp.Regexp
	trim    bool
}

// NewRegexStrategy compiles pattern, which must contain one capture group.
func NewRegexStrategy(name, pattern string, trim bool) *RegexStrategy {
	return &RegexStrategy{name: name, pattern: regexp.MustCompile(pattern), trim: trim}
}

func (s *RegexStrategy) Name() string { return s.name }

func (s *RegexStrategy) Match(text string) (string, bool) {
	m := s.pattern.FindStringSubmatch(text)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	value := m[1]
	if s.trim {
		value = strings.TrimSpace(value)
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// Section strategies, highest priority first.
var (
	MarkdownHeading = NewRegexStrategy("markdown_heading", `(?m)^#{1,6}\s+(.+)$`, true)
	ColonHeader     = NewRegexStrategy("colon_header", `(?m)^([A-Z][A-Za-z\s]{2,}:)`, true)
	NumberedSection = NewRegexStrategy("numbered_section", `(?m)^(\d+\.\d*\s+[A-Z][A-Za-z\s]{2,})`, true)
	TitleCaseLine   = NewRegexStrategy("title_case_line", `(?m)^([A-Z][A-Za-z\s]{2,})$`, true)
)

// Timestamp strategies, highest priority first.
var (
	ISODate     = NewRegexStrategy("iso_date", `\b(\d{4}-\d{2}-\d{2})\b`, false)
	NumericDate = NewRegexStrategy("numeric_date", `\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`, false)
	WrittenDate = NewRegexStrategy("written_date", `\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})\b`, false)
	ClockTime   = NewRegexStrategy("clock_time", `\b(\d{1,2}:\d{2}(?::\d{2})?(?:\s*[AaPp][Mm])?)\b`, false)
)

// DefaultSectionStrategies returns the built-in section order.
func DefaultSectionStrategies() []Strategy {
	return []Strategy{MarkdownHeading, ColonHeader, NumberedSection, TitleCaseLine}
}

// DefaultTimestampStrategies returns the built-in timestamp order.
func DefaultTimestampStrategies() []Strategy {
	return []Strategy{ISODate, NumericDate, WrittenDate, ClockTime}
}

// Metadata is the tagger output for one chunk.
type Metadata struct {
	Section   *string
	Timestamp *string
}

// Tagger is stateless and safe for concurrent use.
type Tagger struct {
	sections   []Strategy
	timestamps []Strategy
}

// New builds a tagger. Nil slices fall back to the defaults; an empty,
// non-nil slice disables that field.
func New(sections, timestamps []Strategy) *Tagger {
	if sections == nil {
		sections = DefaultSectionStrategies()
	}
	if timestamps == nil {
		timestamps = DefaultTimestampStrategies()
	}
	return &Tagger{sections: sections, timestamps: timestamps}
}

// Default returns a tagger with the built-in strategies.
func Default() *Tagger {
	return New(nil, nil)
}

// Tag detects the section header and the first date or time in text.
func (t *Tagger) Tag(text string) Metadata {
	return Metadata{
		Section:   firstMatch(t.sections, text),
		Timestamp: firstMatch(t.timestamps, text),
	}
}

// Section runs only the section strategies.
func (t *Tagger) Section(text string) *string {
	return firstMatch(t.sections, text)
}

// Timestamp runs only the timestamp strategies.
func (t *Tagger) Timestamp(text string) *string {
	return firstMatch(t.timestamps, text)
}

func firstMatch(strategies []Strategy, text string) *string {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if value, ok := s.Match(text); ok {
			return &value
		}
	}
	return nil
}
