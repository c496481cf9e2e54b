package sparse

import (
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Dimension bounds term ids. It fits the sparsevec dimension limit of pgvector.
const Dimension = 1 << 29

var fold = cases.Fold()

// Tokenizer splits text into normalized terms.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the English stopword list.
func NewTokenizer() *Tokenizer {
	sw := make(map[string]struct{}, len(englishStopwords))
	for _, w := range englishStopwords {
		sw[w] = struct{}{}
	}
	return &Tokenizer{stopwords: sw}
}

// Tokenize returns the terms of text in order, duplicates kept.
func (t *Tokenizer) Tokenize(text string) []string {
	text = fold.String(norm.NFKC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w == "" {
			continue
		}
		if _, stop := t.stopwords[w]; stop {
			continue
		}
		terms = append(terms, stem(w))
	}
	return terms
}

// stem strips possessives and regular plurals.
func stem(w string) string {
	w = strings.TrimSuffix(w, "'s")
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case n > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") &&
		!strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

// TermID hashes a term into [0, Dimension). Ids depend only on the term,
// so they are stable across fits and processes.
func TermID(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32() % Dimension
}

var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "ain", "all", "am", "an",
	"and", "any", "are", "aren", "aren't", "as", "at", "be", "because", "been",
	"before", "being", "below", "between", "both", "but", "by", "can", "couldn",
	"couldn't", "d", "did", "didn", "didn't", "do", "does", "doesn", "doesn't",
	"doing", "don", "don't", "down", "during", "each", "few", "for", "from",
	"further", "had", "hadn", "hadn't", "has", "hasn", "hasn't", "have", "haven",
	"haven't", "having", "he", "her", "here", "hers", "herself", "him", "himself",
	"his", "how", "i", "if", "in", "into", "is", "isn", "isn't", "it", "it's",
	"its", "itself", "just", "ll", "m", "ma", "me", "mightn", "mightn't", "more",
	"most", "mustn", "mustn't", "my", "myself", "needn", "needn't", "no", "nor",
	"not", "now", "o", "of", "off", "on", "once", "only", "or", "other", "our",
	"ours", "ourselves", "out", "over", "own", "re", "s", "same", "shan",
	"shan't", "she", "she's", "should", "should've", "shouldn", "shouldn't", "so",
	"some", "such", "t", "than", "that", "that'll", "the", "their", "theirs",
	"them", "themselves", "then", "there", "these", "they", "this", "those",
	"through", "to", "too", "under", "until", "up", "ve", "very", "was", "wasn",
	"wasn't", "we", "were", "weren", "weren't", "what", "when", "where", "which",
	"while", "who", "whom", "why", "will", "with", "won", "won't", "wouldn",
	"wouldn't", "y", "you", "you'd", "you'll", "you're", "you've", "your",
	"yours", "yourself", "yourselves",
}
