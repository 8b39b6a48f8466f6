package daemon

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFileNameLength = 120

// sanitizeFileName reduces a client-supplied file name to a safe ASCII base
// name, folding accents ("Café.mp4" -> "Cafe.mp4") and replacing anything
// else outside [A-Za-z0-9._-] with '_'.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.TrimLeft(b.String(), ".")
	if cleaned == "" {
		// Only dot-only names ("", ".", "..") end up here.
		cleaned = "upload"
	}
	if len(cleaned) > maxFileNameLength {
		ext := filepath.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:maxFileNameLength-len(ext)] + ext
	}
	return cleaned
}

// displayTitle title-cases the configured form title.
func displayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Lipsync"
	}
	return cases.Title(language.English).String(title)
}
