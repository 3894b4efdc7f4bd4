package forum

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cppla/farmqa/models"
)

const (
	minTitleLen = 10
	maxTitleLen = 200
	minBodyLen  = 20
	maxTagLen   = 32
)

var sanitizer = bluemonday.UGCPolicy()

// sanitize strips disallowed markup and returns plain characters unescaped,
// so "farmer's N&P" is stored and measured as typed.
func sanitize(input string) string {
	out := input
	// Unescaping can surface markup that was typed as entities; repeat until stable.
	for i := 0; i < 4; i++ {
		next := html.UnescapeString(sanitizer.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(sanitizer.Sanitize(out))
}

// searchText is the case-folded text the post search matches against.
func searchText(title, body string) string {
	return strings.ToLower(title + "\n" + body)
}

func cleanTitle(raw string) (string, error) {
	title := sanitize(raw)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return "", invalid("title must be %d-%d characters, got %d", minTitleLen, maxTitleLen, n)
	}
	return title, nil
}

func cleanBody(raw string) (string, error) {
	body := sanitize(raw)
	if n := utf8.RuneCountInString(body); n < minBodyLen {
		return "", invalid("body must be at least %d characters, got %d", minBodyLen, n)
	}
	return body, nil
}

func cleanAnswerBody(raw string) (string, error) {
	body := sanitize(raw)
	if body == "" {
		return "", invalid("answer body cannot be empty")
	}
	return body, nil
}

// cleanTags normalizes tags to trimmed lower case, keeping insertion order.
func cleanTags(raw []string, maxTags int) (models.TagList, error) {
	if maxTags > 0 && len(raw) > maxTags {
		return nil, invalid("at most %d tags allowed, got %d", maxTags, len(raw))
	}
	tags := make(models.TagList, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, t := range raw {
		tag := strings.ToLower(sanitize(t))
		if tag == "" {
			return nil, invalid("tag %d is empty", i+1)
		}
		if utf8.RuneCountInString(tag) > maxTagLen {
			return nil, invalid("tag %q exceeds %d characters", tag, maxTagLen)
		}
		if seen[tag] {
			return nil, invalid("duplicate tag %q", tag)
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, nil
}
