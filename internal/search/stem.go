package search

import "strings"

// Stem implements the Porter stemming algorithm (Porter, 1980). This is
// the one place in qipu that reaches for the standard library instead
// of a pack dependency: stemming is pure string-suffix manipulation with
// no I/O, concurrency, or parsing surface, and no library in the
// corpus's dependency set provides it, so a hand port is simpler than
// adding a stemming-only dependency for a single small algorithm.
//
// It is not used for anything beyond search tokenization: qipu's
// correctness never depends on stems matching a particular third-party
// implementation's output. Index-time stemming is done by the FTS5
// `porter` tokenizer declared in schema.sql; query terms pass through
// this function and are then stemmed again by that same tokenizer.
func Stem(word string) string {
	if len(word) <= 2 {
		return word
	}
	w := word
	w = step1a(w)
	w = step1b(w)
	w = step1c(w)
	w = step2(w)
	w = step3(w)
	w = step4(w)
	w = step5a(w)
	w = step5b(w)
	return w
}

func isVowel(w string, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	case 'y':
		return i == 0 || !isVowel(w, i-1)
	}
	return false
}

// measure computes Porter's m: the count of VC sequences in the word.
func measure(w string) int {
	n := 0
	i := 0
	for i < len(w) && !isVowel(w, i) {
		i++
	}
	for i < len(w) {
		for i < len(w) && isVowel(w, i) {
			i++
		}
		if i >= len(w) {
			break
		}
		for i < len(w) && !isVowel(w, i) {
			i++
		}
		n++
	}
	return n
}

func containsVowel(w string) bool {
	for i := range w {
		if isVowel(w, i) {
			return true
		}
	}
	return false
}

func endsDoubleCons(w string) bool {
	n := len(w)
	if n < 2 {
		return false
	}
	a, b := w[n-1], w[n-2]
	if a != b {
		return false
	}
	switch a {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	}
	return true
}

// cvc reports whether w ends consonant-vowel-consonant, with the final
// consonant not w/x/y.
func cvc(w string) bool {
	n := len(w)
	if n < 3 {
		return false
	}
	if isVowel(w, n-1) || !isVowel(w, n-2) || isVowel(w, n-3) {
		return false
	}
	switch w[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

// replaceSuffix swaps suffix for repl if w ends with suffix and the
// measure condition (applied to the stem without the suffix) holds.
func replaceSuffix(w, suffix, repl string, cond func(stem string) bool) (string, bool) {
	if !strings.HasSuffix(w, suffix) {
		return w, false
	}
	stem := w[:len(w)-len(suffix)]
	if cond != nil && !cond(stem) {
		return w, false
	}
	return stem + repl, true
}

func mGT(n int) func(string) bool { return func(s string) bool { return measure(s) > n } }
func mEQ(n int) func(string) bool { return func(s string) bool { return measure(s) == n } }

func step1a(w string) string {
	for _, s := range []struct{ suf, repl string }{
		{"sses", "ss"}, {"ies", "i"}, {"ss", "ss"}, {"s", ""},
	} {
		if r, ok := replaceSuffix(w, s.suf, s.repl, nil); ok {
			return r
		}
	}
	return w
}

func step1b(w string) string {
	if strings.HasSuffix(w, "eed") {
		if r, ok := replaceSuffix(w, "eed", "ee", mGT(0)); ok {
			return r
		}
		return w
	}
	if strings.HasSuffix(w, "ed") && containsVowel(w[:len(w)-2]) {
		w = w[:len(w)-2]
		return step1bClean(w)
	}
	if strings.HasSuffix(w, "ing") && containsVowel(w[:len(w)-3]) {
		w = w[:len(w)-3]
		return step1bClean(w)
	}
	return w
}

func step1bClean(w string) string {
	switch {
	case strings.HasSuffix(w, "at"), strings.HasSuffix(w, "bl"), strings.HasSuffix(w, "iz"):
		return w + "e"
	case endsDoubleCons(w) && !strings.HasSuffix(w, "l") && !strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "z"):
		return w[:len(w)-1]
	case measure(w) == 1 && cvc(w):
		return w + "e"
	}
	return w
}

func step1c(w string) string {
	if strings.HasSuffix(w, "y") && containsVowel(w[:len(w)-1]) {
		return w[:len(w)-1] + "i"
	}
	return w
}

var step2Suffixes = []struct{ suf, repl string }{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

func step2(w string) string {
	for _, s := range step2Suffixes {
		if r, ok := replaceSuffix(w, s.suf, s.repl, mGT(0)); ok {
			return r
		}
	}
	return w
}

var step3Suffixes = []struct{ suf, repl string }{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
}

func step3(w string) string {
	for _, s := range step3Suffixes {
		if r, ok := replaceSuffix(w, s.suf, s.repl, mGT(0)); ok {
			return r
		}
	}
	return w
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "ion", "ou", "ism", "ate", "iti", "ous", "ive", "ize",
}

func step4(w string) string {
	for _, suf := range step4Suffixes {
		if !strings.HasSuffix(w, suf) {
			continue
		}
		stem := w[:len(w)-len(suf)]
		if suf == "ion" && !(strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "t")) {
			continue
		}
		if measure(stem) > 1 {
			return stem
		}
	}
	return w
}

func step5a(w string) string {
	if r, ok := replaceSuffix(w, "e", "", mGT(1)); ok {
		return r
	}
	if r, ok := replaceSuffix(w, "e", "", func(s string) bool {
		return measure(s) == 1 && !cvc(s)
	}); ok {
		return r
	}
	return w
}

func step5b(w string) string {
	if endsDoubleCons(w) && strings.HasSuffix(w, "l") && measure(w) > 1 {
		return w[:len(w)-1]
	}
	return w
}
