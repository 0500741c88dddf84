package model

import "strings"

// Empty and whitespace-only segments are dropped, so "|a|b|" and "a|b"
// parse identically.
func SplitTokens(s string) []string {
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// JoinTokens renders the pipe-wrapped form "|tok1|tok2|" used by the flat
// tables.
func JoinTokens(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return "|" + strings.Join(tokens, "|") + "|"
}
