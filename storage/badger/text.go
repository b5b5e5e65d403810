package badger

import "strings"

// Stop words to filter out when ranking lexical matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// textRank scores the lexical relevance of a document against a query as the
// fraction of filtered query words present in the document. The result is
// in [0, 1]; a query with no rankable words scores 0.
func textRank(document, query string) float32 {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return 0
	}

	docWords := tokenizeAndFilter(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	matched := 0
	for _, qWord := range queryWords {
		if docWordSet[qWord] {
			matched++
		}
	}

	return float32(matched) / float32(len(queryWords))
}
