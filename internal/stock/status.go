package stock

// Status is the availability of the watched product as read from its page.
type Status int

const (
	// StatusUnknown is the state before the first successful classification.
	StatusUnknown Status = iota
	StatusAvailable
	StatusSoldOut
	// StatusIndeterminate is only ever returned for a body prefix that is
	// not yet decisive. It must never be stored as the last known status.
	StatusIndeterminate
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusSoldOut:
		return "SOLD OUT"
	case StatusIndeterminate:
		return "INDETERMINATE"
	default:
		return "UNKNOWN"
	}
}

// Decisive reports whether s is a final answer for a full page body.
func (s Status) Decisive() bool {
	return s == StatusAvailable || s == StatusSoldOut
}

// Classifier turns raw product-page markup into an availability Status.
// Implementations must be pure: same markup, same answer, no error paths.
// A body that cannot be understood classifies as sold out, never available.
type Classifier interface {
	Classify(markup []byte) Status
}

// PrefixClassifier is an optional capability: classify an incomplete body
// prefix, returning StatusIndeterminate until the prefix is decisive. When
// it does return a decisive status, classifying the eventual full body must
// give the same answer.
type PrefixClassifier interface {
	ClassifyPrefix(prefix []byte) Status
}
