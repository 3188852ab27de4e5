package capture

import (
	"strings"
	"time"
)

const filenameURLPrefixLength = 50

// Filename names the artifact for url captured at t. Captures of the same URL
// within the same second get the same name and overwrite each other.
func Filename(url string, t time.Time) string {
	runes := []rune(url)
	if len(runes) > filenameURLPrefixLength {
		runes = runes[:filenameURLPrefixLength]
	}

	var b strings.Builder
	b.WriteString(t.Format("20060102_150405"))
	b.WriteByte('_')
	for _, r := range runes {
		if isFilenameSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString(".png")
	return b.String()
}

func isFilenameSafe(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
