package openai

import "strings"

const codeFence = "```"

// stripCodeFence removes a markdown code fence wrapped around the whole response.
// Replies holding more than one fenced block are returned trimmed but otherwise unchanged.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2*len(codeFence) || !strings.HasPrefix(s, codeFence) || !strings.HasSuffix(s, codeFence) {
		return s
	}
	if strings.Count(s, codeFence) != 2 {
		return s
	}
	s = s[len(codeFence) : len(s)-len(codeFence)]
	// drop the info string, e.g. ```markdown
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
