package common

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// SanitizeFilename reduces free text to a filesystem-safe token, keeping at
// most maxLen runes. Used for screenshot names derived from query text.
func SanitizeFilename(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
		if b.Len() >= maxLen {
			break
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "query"
	}
	return out
}

// ScreenshotPath builds <dir>/<engine>_<sanitized_query_prefix>_<yyyyMMdd_HHmmss>.png
func ScreenshotPath(dir, engine, queryText string, at time.Time) string {
	name := engine + "_" + SanitizeFilename(queryText, 40) + "_" + at.Format("20060102_150405") + ".png"
	return filepath.Join(dir, name)
}

// SessionPath builds <dir>/<engine>_<account>.json
func SessionPath(dir, engine, account string) string {
	return filepath.Join(dir, engine+"_"+SanitizeFilename(account, 40)+".json")
}
