package analyzer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// abbreviations never end a sentence. Keys are lowercase without the final dot.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "e.g": {}, "i.e": {}, "approx": {}, "fig": {},
	"inc": {}, "ltd": {}, "dept": {}, "mt": {}, "cf": {}, "al": {},
}

const closers = `"')]}”’»`

// SplitSentences segments text into sentences using punctuation. A word
// ending in '.', '!' or '?' (optionally followed by closing quotes or
// brackets) ends a sentence unless the next word starts lowercase or the
// word is a known abbreviation or a single-letter initial. Blank lines always
// end a sentence. Whitespace inside a sentence is collapsed to single spaces.
func SplitSentences(text string) []string {
	var sentences []string
	for _, para := range paragraphBreak.Split(text, -1) {
		sentences = append(sentences, splitParagraph(para)...)
	}
	return sentences
}

func splitParagraph(para string) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	for i, w := range words {
		last := i == len(words)-1
		if last || (endsSentence(w) && !startsLowercase(words[i+1])) {
			sentences = append(sentences, strings.Join(words[start:i+1], " "))
			start = i + 1
		}
	}
	return sentences
}

func endsSentence(word string) bool {
	core := strings.TrimRight(word, closers)
	if core == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(core)
	switch r {
	case '!', '?':
		return true
	case '.':
	default:
		return false
	}

	if strings.HasSuffix(core, "..") {
		return true
	}
	stem := strings.ToLower(strings.TrimLeft(strings.TrimSuffix(core, "."), `"'(“‘`))
	if _, ok := abbreviations[stem]; ok {
		return false
	}
	if utf8.RuneCountInString(stem) == 1 {
		r, _ := utf8.DecodeRuneInString(stem)
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func startsLowercase(word string) bool {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
		if unicode.IsDigit(r) {
			return false
		}
	}
	return false
}
