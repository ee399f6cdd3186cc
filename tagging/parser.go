package tagging

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/poiesic/tagger/core"
	"golang.org/x/text/unicode/norm"
)

// LabelMarker prefixes every valid label fragment.
const LabelMarker = "#"

// DefaultMarkerKeywords introduce the label line in model output.
var DefaultMarkerKeywords = []string{"태그", "tags"}

var validFragment = regexp.MustCompile(`^#[^\s\p{Z}#]+$`)

// isValidFragment reports whether fragment is a marker followed by one or
// more characters that are neither markers nor whitespace of any script.
func isValidFragment(fragment string) bool {
	return validFragment.MatchString(fragment) && strings.IndexFunc(fragment, unicode.IsSpace) < 0
}

// Parser turns raw generation output into a LabelSet.
// Parse never fails; malformed fragments are dropped and reported.
type Parser struct {
	markerLine *regexp.Regexp
	logger     *slog.Logger
}

// NewParser builds a parser that looks for a line starting with one of
// keywords followed by a colon. With no keywords, DefaultMarkerKeywords is used.
func NewParser(keywords ...string) *Parser {
	if len(keywords) == 0 {
		keywords = DefaultMarkerKeywords
	}
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
	}
	if len(quoted) == 0 {
		return NewParser()
	}
	return &Parser{
		markerLine: regexp.MustCompile(`(?i)^\s*(?:` + strings.Join(quoted, "|") + `)\s*:(.*)$`),
		logger:     slog.Default().With("component", "parser"),
	}
}

var defaultParser = NewParser()

// ParseLabels parses raw model output with the default marker keywords.
func ParseLabels(raw string) core.LabelSet {
	labels, _ := defaultParser.Parse(raw)
	return labels
}

// Parse returns the valid labels in raw, in order, and the rejected fragments.
// The returned LabelSet is never nil.
func (p *Parser) Parse(raw string) (core.LabelSet, []string) {
	candidate := p.candidate(raw)

	labels := core.LabelSet{}
	var rejected []string
	for _, fragment := range strings.Split(candidate, ",") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		if !isValidFragment(fragment) {
			rejected = append(rejected, fragment)
			continue
		}
		labels = append(labels, norm.NFC.String(strings.TrimPrefix(fragment, LabelMarker)))
	}

	if len(rejected) > 0 {
		p.logger.Debug("dropped malformed label fragments", "count", len(rejected), "fragments", rejected)
	}
	return labels, rejected
}

// candidate picks the text that holds the labels: the rest of the first
// marker line if there is one, otherwise the whole input.
func (p *Parser) candidate(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if m := p.markerLine.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return m[1]
		}
	}
	return strings.TrimSpace(raw)
}
