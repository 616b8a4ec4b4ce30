package search

import "strings"

// queryTokens splits a query on whitespace and lowercases each token.
// Punctuation is kept so tokens such as "pk-301" match literally.
func queryTokens(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// containsAnyToken reports whether any token is a substring of loweredText.
// loweredText must already be lowercased.
func containsAnyToken(loweredText string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(loweredText, tok) {
			return true
		}
	}
	return false
}
