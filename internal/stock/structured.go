package stock

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredClassifier locates the buy control in the parsed document and
// inspects it, instead of scanning the whole page text. More precise than
// the keyword scan on pages that mention stock phrases in reviews or
// recommendation blocks, at the cost of depending on the page's markup
// shape.
type StructuredClassifier struct {
	rules Rules
}

func NewStructuredClassifier(rules Rules) *StructuredClassifier {
	return &StructuredClassifier{rules: rules}
}

var _ Classifier = (*StructuredClassifier)(nil)

// Classify walks the selector candidates in order and judges the first
// matching element: disabled or labelled with an out-of-stock phrase means
// sold out, anything else means available. No match, or a body goquery
// cannot parse, classifies as sold out.
func (s *StructuredClassifier) Classify(markup []byte) (status Status) {
	// goquery panics on an invalid selector, and selectors can come from a
	// user rules file. A broken rule set must read as sold out, not crash.
	defer func() {
		if r := recover(); r != nil {
			status = StatusSoldOut
		}
	}()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return StatusSoldOut
	}

	control := s.findBuyControl(doc)
	if control == nil {
		return StatusSoldOut
	}

	if _, disabled := control.Attr("disabled"); disabled {
		return StatusSoldOut
	}

	label := strings.ToLower(strings.TrimSpace(control.Text()))
	if label == "" {
		// Submit inputs carry their label in the value attribute.
		if v, ok := control.Attr("value"); ok {
			label = strings.ToLower(strings.TrimSpace(v))
		}
	}
	for _, phrase := range s.rules.OutOfStockPhrases {
		if strings.Contains(label, phrase) {
			return StatusSoldOut
		}
	}
	return StatusAvailable
}

func (s *StructuredClassifier) findBuyControl(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.rules.Selectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel.First()
		}
	}
	return nil
}
