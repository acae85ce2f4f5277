package panel

import "strings"

// checkinKeywords is the fixed keyword set used as the last fuzzy tier:
// two labels that share any of these are considered the same check-in button.
var checkinKeywords = []string{"签到", "打卡", "checkin", "check", "签", "到"}

// stripRunes is the punctuation/whitespace class removed during
// normalization, covering both ASCII and the common full-width CJK variants.
const stripRunes = " \t\n\r.,，。:：;；!！?？_-—～~()（）"

// normalize lowercases s and removes the punctuation/whitespace class and
// every supplementary-plane rune (emoji and pictographs, >= U+10000).
func normalize(s string) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r >= 0x10000 {
			continue
		}
		if strings.ContainsRune(stripRunes, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FuzzyEqual reports whether two button labels refer to the same button,
// ignoring case, punctuation, spacing and emoji. After normalization the
// labels match if one contains the other, or failing that, if both contain
// a common check-in keyword.
func FuzzyEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	na, nb := normalize(a), normalize(b)
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return true
	}
	for _, kw := range checkinKeywords {
		if strings.Contains(na, kw) && strings.Contains(nb, kw) {
			return true
		}
	}
	return false
}
