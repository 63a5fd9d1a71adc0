// SPDX-License-Identifier: MIT

package blob

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 60

// Slugify converts a title into a URL and filesystem safe name.
// Example: "Señor Café – Live" → "senor-cafe-live"
func Slugify(name string) string {
	// NFKD splits accented letters into base letter plus combining mark,
	// the marks are dropped below.
	decomposed := norm.NFKD.String(strings.ToLower(name))

	var b strings.Builder
	lastWasDash := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == 'ß':
			b.WriteString("ss")
			lastWasDash = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasDash = false
		case !lastWasDash:
			b.WriteByte('-')
			lastWasDash = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}

	s := strings.Trim(norm.NFC.String(b.String()), "-")
	if s == "" {
		return "file"
	}
	return s
}

// CleanFilename returns a display name safe to put in a Content-Disposition header.
func CleanFilename(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}
