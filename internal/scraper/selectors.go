package scraper

import (
	"strings"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// BaseURL is the site root every run starts from.
const BaseURL = "https://www.flipkart.com"

// CurrencySymbol must appear in a price candidate's text for the value to
// count. Flipkart decorates cards with symbol-less strings (EMI hints,
// discount percentages) that would otherwise win the chain.
const CurrencySymbol = "₹"

// Flipkart rotates its obfuscated class names without notice, so every
// field carries a chain of every selector generation seen in the wild,
// newest last-known-good first where it matters, oldest kept as fallback.

// TitleChain locates the product title within one result card.
func TitleChain() locator.Chain {
	return locator.Chain{
		Field: models.FieldTitle,
		Candidates: []locator.Candidate{
			{Selector: "._4rR01T"},
			{Selector: ".s1Q9rs"},
			{Selector: "._2WkVRV"},
			{Selector: ".IRpwTa"},
			{Selector: "._1fQZEK"},
			{Selector: "a[title]", Attribute: "title"},
			{Selector: ".KzDlHZ"},
			{Selector: "div[title]", Attribute: "title"},
			{Selector: "span[title]", Attribute: "title"},
		},
	}
}

// PriceChain locates the display price. Values without the rupee symbol
// are rejected as decorations rather than prices.
func PriceChain() locator.Chain {
	return locator.Chain{
		Field: models.FieldPrice,
		Candidates: []locator.Candidate{
			{Selector: "._30jeq3"},
			{Selector: "._1_TUDb"},
			{Selector: ".ZY8OJN"},
			{Selector: "._3tbKJL"},
			{Selector: "._25b18c"},
			{Selector: "._1vC4OE"},
			{Selector: ".Nx9bqj"},
			{Selector: "._2rQ-NK"},
		},
		Accept: func(v string) bool { return strings.Contains(v, CurrencySymbol) },
	}
}

// RatingChain locates the aggregate rating badge.
func RatingChain() locator.Chain {
	return locator.Chain{
		Field: models.FieldRating,
		Candidates: []locator.Candidate{
			{Selector: "._3LWZlK"},
			{Selector: "._2_R_DZ"},
			{Selector: "._3Ay6Sb"},
			{Selector: ".XQDdHH"},
			{Selector: "._2d4LTz"},
			{Selector: "._1BLPMq"},
		},
	}
}

// ImageChain locates the primary product image.
func ImageChain() locator.Chain {
	return locator.Chain{
		Field: models.FieldImageURL,
		Candidates: []locator.Candidate{
			{Selector: "img", Attribute: "src"},
		},
	}
}

// ContainerChain locates the result cards themselves. The first selector
// matching at least one element wins, the same fallback discipline as the
// field chains.
func ContainerChain() locator.Chain {
	return locator.Chain{
		Field: "container",
		Candidates: []locator.Candidate{
			{Selector: "[data-id]"},
			{Selector: "._1AtVbE"},
			{Selector: "._13oc-S"},
			{Selector: "._2kHMtA"},
			{Selector: "._1fQZEK"},
		},
	}
}

// PopupCloseChain locates the dismiss control of the login popup shown on
// first visit. Best-effort: its absence is the common case.
func PopupCloseChain() locator.Chain {
	return locator.Chain{
		Field: "popup_close",
		Candidates: []locator.Candidate{
			{Selector: "button._2KpZ6l._2doB4z"},
			{Selector: "span._30XB9F"},
		},
	}
}

// SearchInputChain locates the search box.
func SearchInputChain() locator.Chain {
	return locator.Chain{
		Field: "search_input",
		Candidates: []locator.Candidate{
			{Selector: "input[name='q']"},
			{Selector: "input.Pke_EE"},
			{Selector: "input[title='Search for Products, Brands and More']"},
		},
	}
}

// SearchSubmitChain locates the search submit control.
func SearchSubmitChain() locator.Chain {
	return locator.Chain{
		Field: "search_submit",
		Candidates: []locator.Candidate{
			{Selector: "button[type='submit']"},
		},
	}
}

// FieldChains returns the per-field chains the assembler runs against each
// container, keyed by field name.
func FieldChains() map[string]locator.Chain {
	return map[string]locator.Chain{
		models.FieldTitle:    TitleChain(),
		models.FieldPrice:    PriceChain(),
		models.FieldRating:   RatingChain(),
		models.FieldImageURL: ImageChain(),
	}
}
