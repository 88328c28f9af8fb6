package valuation

import (
	"math"

	"brokerfolio/internal/models"
)

// CategoryRating is the average score of one rating category.
type CategoryRating struct {
	Category models.RatingCategory `json:"category"`
	Average  float64               `json:"average"`
	Count    int                   `json:"count"`
}

// RatingSummary aggregates every rating a broker received.
type RatingSummary struct {
	Average    float64          `json:"average"`
	Count      int              `json:"count"`
	ByCategory []CategoryRating `json:"by_category"`
}

// CategoryAverage returns the average for one category, 0 when unrated.
func (s RatingSummary) CategoryAverage(cat models.RatingCategory) float64 {
	for _, c := range s.ByCategory {
		if c.Category == cat {
			return c.Average
		}
	}
	return 0
}

// SummarizeRatings averages scores across all raters and categories, and
// per category. Every known category appears in ByCategory, in display order.
func SummarizeRatings(ratings []models.BrokerRating) RatingSummary {
	sums := map[models.RatingCategory]int{}
	counts := map[models.RatingCategory]int{}
	total := 0
	for _, r := range ratings {
		sums[r.Category] += r.Score
		counts[r.Category]++
		total += r.Score
	}

	summary := RatingSummary{
		Count:      len(ratings),
		Average:    mean(total, len(ratings)),
		ByCategory: make([]CategoryRating, 0, len(models.RatingCategories)),
	}
	for _, cat := range models.RatingCategories {
		summary.ByCategory = append(summary.ByCategory, CategoryRating{
			Category: cat,
			Average:  mean(sums[cat], counts[cat]),
			Count:    counts[cat],
		})
	}
	return summary
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*100) / 100
}
