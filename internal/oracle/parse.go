package oracle

import (
	"encoding/json"
	"strings"

	"github.com/jmylchreest/billscout/internal/logger"
)

// ExtractJSON recovers a JSON object from a model reply. It accepts a bare
// object, one wrapped in a markdown code block, or the first balanced
// {...} block embedded in prose.
func ExtractJSON(reply string) ([]byte, error) {
	s := strings.TrimSpace(stripCodeFence(reply))
	if s == "" {
		return nil, ErrEmptyResponse
	}
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	for start := strings.IndexByte(s, '{'); start >= 0; {
		end := balancedEnd(s, start)
		if end < 0 {
			break
		}
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrUnparseable
}

// stripCodeFence removes a markdown code block wrapper such as ```json.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "```")
	if i < 0 {
		return s
	}
	rest := s[i+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if j := strings.Index(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// balancedEnd returns the index of the brace closing the one at start,
// ignoring braces inside JSON strings, or -1.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Truncate limits content to maxLen bytes without splitting a UTF-8
// sequence. maxLen of 0 means no limit.
func Truncate(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(content[cut]) {
		cut--
	}
	logger.Debug("oracle content truncated",
		"original_bytes", len(content),
		"max_bytes", maxLen)
	return content[:cut] + "\n\n[Content truncated due to length...]"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
