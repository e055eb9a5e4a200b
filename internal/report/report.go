package report

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kunaldev/flipkart-scraper/internal/models"
)

var (
	priceDigits  = regexp.MustCompile(`\d+`)
	ratingNumber = regexp.MustCompile(`\d+\.?\d*`)
)

// knownBrands are matched against titles before falling back to the first
// title word. Covers the catalog segments the scraper is pointed at.
var knownBrands = []string{
	"Apple", "Samsung", "OnePlus", "Xiaomi", "Redmi", "OPPO", "Vivo",
	"Realme", "Nothing", "POCO", "Motorola", "Nokia", "Honor", "iQOO",
}

// CleanPrice extracts a numeric price from raw display text like
// "₹54,999". Returns 0 when no number is present.
func CleanPrice(raw string) float64 {
	cleaned := strings.NewReplacer("₹", "", ",", "", " ", "").Replace(raw)
	match := priceDigits.FindString(cleaned)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// CleanRating extracts a numeric rating in [0, 5] from raw display text
// like "4.5 stars". Returns 0 when absent or out of range.
func CleanRating(raw string) float64 {
	match := ratingNumber.FindString(raw)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v < 0 || v > 5 {
		return 0
	}
	return v
}

// ExtractBrand guesses the brand from a product title: a known brand name
// anywhere in the title wins, otherwise the first word.
func ExtractBrand(title string) string {
	upper := strings.ToUpper(title)
	for _, brand := range knownBrands {
		if strings.Contains(upper, strings.ToUpper(brand)) {
			return brand
		}
	}
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return "Unknown"
	}
	return strings.Trim(fields[0], "()")
}

// BrandCount pairs a brand with how many records carry it.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// Summary aggregates one or more result sets for the dashboard.
type Summary struct {
	TotalProducts int          `json:"total_products"`
	PricedCount   int          `json:"priced_count"`
	RatedCount    int          `json:"rated_count"`
	MinPrice      float64      `json:"min_price"`
	MaxPrice      float64      `json:"max_price"`
	AvgPrice      float64      `json:"avg_price"`
	AvgRating     float64      `json:"avg_rating"`
	TopBrands     []BrandCount `json:"top_brands"`
}

// Summarize computes summary statistics over harvested records, skipping
// sentinel-valued prices and ratings the way the offline report pass does.
func Summarize(products []models.Product) Summary {
	s := Summary{TotalProducts: len(products)}

	brandCounts := make(map[string]int)
	var priceSum, ratingSum float64

	for _, p := range products {
		brandCounts[ExtractBrand(p.Title)]++

		if price := CleanPrice(p.Price); price > 0 {
			if s.PricedCount == 0 || price < s.MinPrice {
				s.MinPrice = price
			}
			if price > s.MaxPrice {
				s.MaxPrice = price
			}
			priceSum += price
			s.PricedCount++
		}
		if rating := CleanRating(p.Rating); rating > 0 {
			ratingSum += rating
			s.RatedCount++
		}
	}

	if s.PricedCount > 0 {
		s.AvgPrice = priceSum / float64(s.PricedCount)
	}
	if s.RatedCount > 0 {
		s.AvgRating = ratingSum / float64(s.RatedCount)
	}

	for brand, count := range brandCounts {
		s.TopBrands = append(s.TopBrands, BrandCount{Brand: brand, Count: count})
	}
	sort.Slice(s.TopBrands, func(i, j int) bool {
		if s.TopBrands[i].Count != s.TopBrands[j].Count {
			return s.TopBrands[i].Count > s.TopBrands[j].Count
		}
		return s.TopBrands[i].Brand < s.TopBrands[j].Brand
	})
	if len(s.TopBrands) > 10 {
		s.TopBrands = s.TopBrands[:10]
	}

	return s
}

// Filter holds the cross-run search criteria the dashboard accepts.
type Filter struct {
	Query     string
	Brand     string
	MinPrice  float64
	MaxPrice  float64
	MinRating float64
}

// Apply returns the records matching every set criterion.
func (f Filter) Apply(products []models.Product) []models.Product {
	var out []models.Product
	for _, p := range products {
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Query)) {
			continue
		}
		if f.Brand != "" && !strings.EqualFold(ExtractBrand(p.Title), f.Brand) {
			continue
		}
		price := CleanPrice(p.Price)
		if f.MinPrice > 0 && price < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && price > f.MaxPrice {
			continue
		}
		if f.MinRating > 0 && CleanRating(p.Rating) < f.MinRating {
			continue
		}
		out = append(out, p)
	}
	return out
}
