package utils

import "strings"

// Truncate returns a truncated version of s with at most maxLen runes.
// If the string is truncated, "..." is appended to indicate truncation.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// SplitMessage splits content into chunks of at most maxLen runes.
// Splits prefer the last newline, then the last " | " roll separator, then
// the last space inside the window. Leading whitespace is dropped from each
// following chunk.
func SplitMessage(content string, maxLen int) []string {
	if content == "" {
		return nil
	}
	if maxLen <= 0 {
		return []string{content}
	}

	var chunks []string
	runes := []rune(content)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		window := runes[:maxLen]
		end := lastIndex(window, []rune("\n"), maxLen/2)
		if end <= 0 {
			end = lastIndex(window, []rune(" | "), maxLen/2)
		}
		if end <= 0 {
			end = lastIndex(window, []rune(" "), maxLen/2)
		}
		if end <= 0 {
			end = maxLen
		}

		chunks = append(chunks, strings.TrimRight(string(runes[:end]), " \t\r\n"))
		runes = []rune(strings.TrimLeft(string(runes[end:]), " |\t\r\n"))
	}
	return chunks
}

// lastIndex returns the rune index of the last occurrence of sep in runes,
// searching at most searchWindow runes back from the end, or -1.
func lastIndex(runes, sep []rune, searchWindow int) int {
	start := len(runes) - searchWindow
	if start < 0 {
		start = 0
	}
	for i := len(runes) - len(sep); i >= start; i-- {
		match := true
		for j := range sep {
			if runes[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
