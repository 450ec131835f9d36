package portal

import (
	"bytes"
	"strings"
)

// DefaultSuccessKeywords are the substrings whose presence in the confirm
// response marks the change as accepted.
var DefaultSuccessKeywords = []string{"confirmed", "success", "submitted", "thank you"}

// Classifier decides whether a confirm POST response indicates success.
// A false result is reported as an unclear confirmation; there is no
// separate negative outcome.
type Classifier interface {
	Confirmed(body []byte) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(body []byte) bool

// Confirmed calls f(body).
func (f ClassifierFunc) Confirmed(body []byte) bool {
	return f(body)
}

// KeywordClassifier matches any keyword case-insensitively.
type KeywordClassifier struct {
	keywords [][]byte
}

// NewKeywordClassifier builds a classifier over keywords. Blank keywords are
// dropped; an empty list falls back to DefaultSuccessKeywords.
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	c := &KeywordClassifier{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			c.keywords = append(c.keywords, []byte(k))
		}
	}
	if len(c.keywords) == 0 {
		for _, k := range DefaultSuccessKeywords {
			c.keywords = append(c.keywords, []byte(k))
		}
	}
	return c
}

// Confirmed reports whether body contains any keyword, ignoring case.
func (c *KeywordClassifier) Confirmed(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, k := range c.keywords {
		if bytes.Contains(lower, k) {
			return true
		}
	}
	return false
}
