package filestore

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxTitleRunes  = 50
	titleTruncated = "[...]"
)

// invalidNameChars are rejected by at least one of the filesystems artifacts end up on.
const invalidNameChars = `<>:"/\|?*`

// ValidFilename builds "<root>/<title> [<id>].<ext>" with the title and id made safe for any target
// filesystem. The result depends only on its inputs, so the same item always maps to the same path
// under a given root. The identifier is escaped rather than stripped, so distinct identifiers
// never share a name.
func ValidFilename(root, title, ext, id string) string {
	name := sanitize(title)
	if utf8.RuneCountInString(name) > maxTitleRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxTitleRunes])) + titleTruncated
	}

	if id = escapeID(id); id != "" {
		if name != "" {
			name += " "
		}

		name += "[" + id + "]"
	}

	if ext = strings.Trim(strings.TrimSpace(ext), "."); ext != "" {
		name += "." + ext
	}

	return filepath.Join(root, name)
}

// ReplaceExtension swaps the extension of path for ext, keeping the base name.
func ReplaceExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + strings.Trim(ext, ".")
}

// IDTag is the marker ValidFilename embeds for an identifier.
func IDTag(id string) string {
	return "[" + escapeID(id) + "]"
}

// HasIDTag reports whether the file at path was named by ValidFilename for id, whatever its extension.
func HasIDTag(path, id string) bool {
	name := filepath.Base(path)

	return strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), IDTag(id))
}

// escapeID percent-encodes every byte of id that is not safe in a filename, plus '%' itself and
// the tag brackets, so the mapping stays one-to-one. Trailing dots are encoded too.
func escapeID(id string) string {
	trimmed := strings.TrimRight(id, ".")

	var b strings.Builder

	for i := 0; i < len(trimmed); {
		r, size := utf8.DecodeRuneInString(trimmed[i:])

		if unsafeIDRune(r, size) {
			for _, c := range []byte(trimmed[i : i+size]) {
				fmt.Fprintf(&b, "%%%02X", c)
			}
		} else {
			b.WriteString(trimmed[i : i+size])
		}

		i += size
	}

	b.WriteString(strings.Repeat("%2E", len(id)-len(trimmed)))

	return b.String()
}

func unsafeIDRune(r rune, size int) bool {
	return (r == utf8.RuneError && size == 1) ||
		r == '%' || r == '[' || r == ']' ||
		unicode.IsSpace(r) || unicode.IsControl(r) ||
		strings.ContainsRune(invalidNameChars, r)
}

func sanitize(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	space := false

	for _, r := range s {
		switch {
		case strings.ContainsRune(invalidNameChars, r), unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if !space && b.Len() > 0 {
				b.WriteRune(' ')
			}

			space = true

			continue
		}

		space = false

		b.WriteRune(r)
	}

	// Windows refuses names ending in dots or spaces.
	return strings.TrimRight(b.String(), ". ")
}
