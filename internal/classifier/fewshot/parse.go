package fewshot

import (
	"strings"

	"ArticlesClassifier/internal/domain"
)

const maxRawInError = 512

// ParseLabels extracts vocabulary labels from generated text.
// Only the first non-empty line counts; an optional "Category:" prefix is stripped and the
// rest is split on | , and ;. Tokens outside the vocabulary are returned as unknown.
// When no token maps, a ParseError carrying the raw text is returned.
func ParseLabels(raw string, vocab domain.Vocabulary) (labels []string, unknown []string, err error) {
	line := firstLine(raw)
	line = trimCategoryPrefix(line)

	seen := make(map[string]struct{})
	for _, token := range strings.FieldsFunc(line, isSeparator) {
		token = strings.Trim(strings.TrimSpace(token), ".*\"'`")
		if token == "" {
			continue
		}
		label, ok := vocab.Match(token)
		if !ok {
			unknown = append(unknown, token)
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}

	if len(labels) == 0 {
		return nil, unknown, domain.NewParseError(clip(raw, maxRawInError), "no known label in generated text")
	}
	return labels, unknown, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func trimCategoryPrefix(line string) string {
	const prefix = "category:"
	if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
		return strings.TrimSpace(line[len(prefix):])
	}
	return line
}

func isSeparator(r rune) bool {
	return r == '|' || r == ',' || r == ';'
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
