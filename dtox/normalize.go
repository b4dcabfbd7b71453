package dtox

import (
	"strings"
	"unicode"
)

// NormalizeName folds a field name for correspondence matching, so that
// "ID", "Id", "id" and "i_d" compare equal.
func NormalizeName(name string) string {
	return strings.Join(Tokens(name), "")
}

// Tokens splits a Go identifier on case changes and separators and lowercases
// each part: "PostID" -> [post id], "HTTPStatus" -> [http status].
func Tokens(name string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			flush()
			continue
		}
		if i > 0 && startsToken(runes, i) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()

	return out
}

func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if !unicode.IsUpper(r) {
		return false
	}
	if !unicode.IsUpper(prev) {
		return true
	}
	// acronym followed by a word: "XMLParser" splits before P
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
