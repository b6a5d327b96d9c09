package notify

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`<@([A-Za-z0-9_]+)>`)

// ParseMentions returns the distinct user IDs referenced as <@userId> in
// body, in order of first appearance.
func ParseMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// MentionRecipients filters the mentions in body down to channel readers,
// dropping the author.
func MentionRecipients(body, authorID string, readers []string) []string {
	allowed := make(map[string]struct{}, len(readers))
	for _, id := range readers {
		allowed[id] = struct{}{}
	}
	var out []string
	for _, id := range ParseMentions(body) {
		if id == authorID {
			continue
		}
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Excerpt shortens a message body for notification text.
func Excerpt(body string, max int) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
