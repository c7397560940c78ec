package stock

import "strings"

// KeywordClassifier decides availability by scanning the whole page text for
// known phrases. Out-of-stock phrases are always checked before in-stock
// phrases: product pages commonly carry both (a disabled "Add to Cart"
// button keeps its label), and the sold-out signal wins that tie.
type KeywordClassifier struct {
	rules Rules
}

func NewKeywordClassifier(rules Rules) *KeywordClassifier {
	return &KeywordClassifier{rules: rules}
}

var _ Classifier = (*KeywordClassifier)(nil)
var _ PrefixClassifier = (*KeywordClassifier)(nil)

// Classify scans the lowered markup, out-of-stock list first. When neither
// list matches the page is assumed sold out: a missed restock costs one poll
// interval, a false "available" ping costs trust.
func (k *KeywordClassifier) Classify(markup []byte) Status {
	page := strings.ToLower(string(markup))

	for _, phrase := range k.rules.OutOfStockPhrases {
		if strings.Contains(page, phrase) {
			return StatusSoldOut
		}
	}
	for _, phrase := range k.rules.InStockPhrases {
		if strings.Contains(page, phrase) {
			return StatusAvailable
		}
	}
	return StatusSoldOut
}

// ClassifyPrefix classifies an incomplete body. Only a sold-out match is
// decisive on a prefix: an in-stock phrase seen early can still be overruled
// by an out-of-stock phrase later in the body, so anything else is
// indeterminate until the full body arrives.
func (k *KeywordClassifier) ClassifyPrefix(prefix []byte) Status {
	page := strings.ToLower(string(prefix))

	for _, phrase := range k.rules.OutOfStockPhrases {
		if strings.Contains(page, phrase) {
			return StatusSoldOut
		}
	}
	return StatusIndeterminate
}
