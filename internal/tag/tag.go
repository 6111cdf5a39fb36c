// Package tag derives tag identifiers and presentation from free text. Tags
// are never stored: the slug is the identity and the display name and color
// are pure functions of it.
package tag

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	prefix      = "tag-"
	DefaultName = "General"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

var palette = []string{"#3b82f6", "#10b981", "#f59e0b", "#f43f5e", "#6366f1", "#14b8a6"}

var knownColors = map[string]string{
	"tag-coding":  "#3b82f6",
	"tag-reading": "#10b981",
	"tag-design":  "#8b5cf6",
	"tag-meeting": "#f59e0b",
	"tag-general": "#94a3b8",
}

// Slug normalizes a tag name into its identifier, e.g. "Deep Work!" becomes
// "tag-deep-work". Blank input maps to the general tag.
func Slug(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = nonAlphanumeric.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		normalized = "general"
	}
	return prefix + normalized
}

func Name(slug string) string {
	clean := strings.TrimPrefix(slug, prefix)
	if clean == "" {
		return DefaultName
	}

	parts := strings.Split(clean, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(part)
		parts[i] = string(unicode.ToUpper(first)) + part[size:]
	}
	return strings.Join(parts, " ")
}

func Color(slug string) string {
	if color, ok := knownColors[slug]; ok {
		return color
	}

	var hash int32
	for _, r := range slug {
		hash = hash*31 + int32(r)
	}
	index := int64(hash)
	if index < 0 {
		index = -index
	}
	return palette[index%int64(len(palette))]
}

type Presentation struct {
	Name  string `json:"tagName"`
	Color string `json:"tagColor"`
}

func Present(slug string) Presentation {
	return Presentation{Name: Name(slug), Color: Color(slug)}
}
