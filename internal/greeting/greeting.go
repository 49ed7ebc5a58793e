// Package greeting turns a holiday name into a Russian congratulation phrase
// ("Новый год" -> "С Новым годом") by putting the leading noun group into the
// instrumental case.
//
// The inflection is suffix based. It covers the adjective + noun shape that
// almost every holiday title has and leaves anything it does not recognise
// untouched.
package greeting

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var irregularNouns = map[string]string{
	"день":    "днём",
	"мать":    "матерью",
	"дочь":    "дочерью",
	"путь":    "путём",
	"любовь":  "любовью",
	"церковь": "церковью",
	"отец":    "отцом",
	"сон":     "сном",
	"лёд":     "льдом",
}

var irregularAdjectives = map[string]string{
	"большая": "большой",
	"третий":  "третьим",
	"божий":   "божьим",
}

// Phrase builds the greeting for holiday. Empty input yields an empty string.
func Phrase(holiday string) string {
	words := strings.Fields(holiday)
	if len(words) == 0 {
		return ""
	}

	out := make([]string, len(words))
	copy(out, words)

	for i, w := range words {
		lower := strings.ToLower(w)
		// Dates ("8 Марта"), acronyms and foreign words stay as they are.
		if !isCyrillicWord(lower) || isAcronym(w) {
			break
		}
		if irr, ok := irregularAdjectives[lower]; ok {
			out[i] = matchCase(w, irr)
			continue
		}
		if isAdjective(lower) {
			out[i] = matchCase(w, inflectAdjective(lower))
			continue
		}
		out[i] = matchCase(w, inflectNoun(lower))
		break
	}

	return Preposition(words[0]) + " " + strings.Join(out, " ")
}

// Preposition returns "Со" before clusters that are hard to pronounce after
// a bare "С", otherwise "С".
func Preposition(next string) string {
	r := []rune(strings.ToLower(next))
	if len(r) < 2 {
		return "С"
	}
	switch string(r[:2]) {
	case "вс", "вт", "мн":
		return "Со"
	}
	if strings.ContainsRune("сзшж", r[0]) && isConsonant(r[1]) {
		return "Со"
	}
	return "С"
}

func isAdjective(w string) bool {
	if utf8.RuneCountInString(w) < 4 {
		return false
	}
	switch {
	case hasAnySuffix(w, "ый", "ий", "ой", "ая", "яя", "ое", "ее", "ые"):
		return true
	case strings.HasSuffix(w, "ие"):
		// -ние / -тие are verbal nouns: Рождение, Открытие.
		return !hasAnySuffix(w, "ние", "тие", "вие", "сие")
	}
	return false
}

func inflectAdjective(w string) string {
	stem, last := splitEnding(w, 2)
	switch {
	case strings.HasSuffix(w, "ый"):
		return stem + "ым"
	case strings.HasSuffix(w, "ий"):
		return stem + "им"
	case strings.HasSuffix(w, "ой"), strings.HasSuffix(w, "ое"):
		if isVelarOrSibilant(last) {
			return stem + "им"
		}
		return stem + "ым"
	case strings.HasSuffix(w, "ая"):
		if isSibilant(last) {
			return stem + "ей"
		}
		return stem + "ой"
	case strings.HasSuffix(w, "яя"):
		return stem + "ей"
	case strings.HasSuffix(w, "ее"):
		return stem + "им"
	case strings.HasSuffix(w, "ые"):
		return stem + "ыми"
	case strings.HasSuffix(w, "ие"):
		return stem + "ими"
	}
	return w
}

func inflectNoun(w string) string {
	if irr, ok := irregularNouns[w]; ok {
		return irr
	}

	switch {
	case strings.HasSuffix(w, "ия"):
		return trimRunes(w, 1) + "ей"
	case strings.HasSuffix(w, "ие"), strings.HasSuffix(w, "ье"):
		return trimRunes(w, 1) + "ем"
	}

	stem, last := splitEnding(w, 1)
	final, _ := utf8.DecodeLastRuneInString(w)

	switch final {
	case 'а':
		if isSibilant(last) || last == 'ц' {
			return stem + "ей"
		}
		return stem + "ой"
	case 'я':
		return stem + "ей"
	case 'о':
		return stem + "ом"
	case 'е', 'ё':
		return stem + "ем"
	case 'ь':
		if isSibilant(last) || hasAnySuffix(w, "сть", "вь") {
			return w + "ю"
		}
		return stem + "ем"
	case 'й':
		return stem + "ем"
	case 'ы':
		return stem + "ами"
	case 'и':
		if isVelarOrSibilant(last) {
			return stem + "ами"
		}
		return stem + "ями"
	}

	if isSibilant(final) || final == 'ц' {
		return w + "ем"
	}
	if isConsonant(final) {
		return w + "ом"
	}
	return w
}

// splitEnding cuts n runes off w and also returns the last rune of the stem.
func splitEnding(w string, n int) (string, rune) {
	stem := trimRunes(w, n)
	last, _ := utf8.DecodeLastRuneInString(stem)
	return stem, last
}

func trimRunes(w string, n int) string {
	r := []rune(w)
	if n > len(r) {
		return ""
	}
	return string(r[:len(r)-n])
}

func hasAnySuffix(w string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}

func isSibilant(r rune) bool {
	return strings.ContainsRune("жшчщ", r)
}

func isVelarOrSibilant(r rune) bool {
	return strings.ContainsRune("гкхжшчщ", r)
}

func isConsonant(r rune) bool {
	return strings.ContainsRune("бвгджзйклмнпрстфхцчшщ", r)
}

func isCyrillicWord(w string) bool {
	hasLetter := false
	for _, r := range w {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			hasLetter = true
		case r == '-':
		default:
			return false
		}
	}
	return hasLetter
}

func isAcronym(w string) bool {
	return utf8.RuneCountInString(w) > 1 && w == strings.ToUpper(w)
}

// matchCase applies the capitalisation of orig to the lower-case inflected form.
func matchCase(orig, inflected string) string {
	first, _ := utf8.DecodeRuneInString(orig)
	if !unicode.IsUpper(first) {
		return inflected
	}
	r := []rune(inflected)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
