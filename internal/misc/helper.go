package misc

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

const (
	maxNameLength = 50
	untitled      = "untitled"
)

// SanitizeName reduces value to letters and digits joined by single dashes,
// capped at 50 characters. It never returns an empty string.
func SanitizeName(value string) string {
	var b strings.Builder
	pendingSeparator := false
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSeparator = b.Len() > 0
			continue
		}
		if pendingSeparator {
			b.WriteByte('-')
			pendingSeparator = false
		}
		b.WriteRune(r)
	}

	result := b.String()
	if r := []rune(result); len(r) > maxNameLength {
		result = string(r[:maxNameLength])
	}
	result = strings.Trim(result, "-")
	if result == "" {
		return untitled
	}
	return result
}

// Extension returns the lower cased extension of name, including the dot, or
// fallback when name has none.
func Extension(name, fallback string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || ext == "." {
		return fallback
	}
	return ext
}

// ParseClock parses a HH:MM wall clock time.
func ParseClock(value string) (hour, minute int, err error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}

	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, errors.New("invalid time " + value + ": hours must be 00-23 and minutes 00-59")
	}
	return t.Hour(), t.Minute(), nil
}
