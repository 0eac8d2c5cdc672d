package objectgate

import (
	"strings"
	"unicode"
)

var latinFold = map[rune]rune{
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'Ç': 'C', 'ç': 'c', 'Ñ': 'N', 'ñ': 'n',
}

// asciiFilename makes name safe for a quoted Content-Disposition filename.
// Accented Latin letters lose their diacritics; any other non-ASCII rune,
// control character, quote or backslash becomes '-'.
func asciiFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			sb.WriteRune('-')
		case r < unicode.MaxASCII && unicode.IsPrint(r):
			sb.WriteRune(r)
		case latinFold[r] != 0:
			sb.WriteRune(latinFold[r])
		default:
			sb.WriteRune('-')
		}
	}
	return sb.String()
}
