package stock

// Rules is the detection rule set shared by both classifier strategies.
// The defaults were tuned against the Casio product page by hand; they are
// plain data so a deployment can swap them without a rebuild.
type Rules struct {
	// Checked first, in order. First hit wins.
	OutOfStockPhrases []string
	// Checked only when no out-of-stock phrase matched.
	InStockPhrases []string
	// Selector candidates for the buy control, most specific first.
	Selectors []string
}

// DefaultRules returns the built-in phrase lists and selector candidates.
func DefaultRules() Rules {
	return Rules{
		OutOfStockPhrases: []string{
			"out of stock",
			"sold out",
			"currently unavailable",
			"unavailable",
			"notify me when available",
			"notify when available",
			"pre-order",
			"preorder",
		},
		InStockPhrases: []string{
			"add to cart",
			"add to bag",
			"add to basket",
			"buy now",
			"in stock",
		},
		Selectors: []string{
			`button[name="add"]`,
			`button.product-form__submit`,
			`.product-form__submit`,
			`button.add-to-cart`,
			`button#AddToCart`,
			`form[action*="/cart/add"] button[type="submit"]`,
			`form[action*="/cart/add"] input[type="submit"]`,
			`a[href*="cart/add"]`,
		},
	}
}

// Merge overlays non-empty fields of override onto r.
func (r Rules) Merge(override Rules) Rules {
	if len(override.OutOfStockPhrases) > 0 {
		r.OutOfStockPhrases = override.OutOfStockPhrases
	}
	if len(override.InStockPhrases) > 0 {
		r.InStockPhrases = override.InStockPhrases
	}
	if len(override.Selectors) > 0 {
		r.Selectors = override.Selectors
	}
	return r
}
