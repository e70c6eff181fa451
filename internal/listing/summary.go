package listing

import (
	"math"
	"sort"
	"strconv"

	"github.com/user/rentagent/internal/model"
)

// PriceStats are rounded to whole dollars for display.
type PriceStats struct {
	Min    int `json:"min"`
	Median int `json:"median"`
	Mean   int `json:"mean"`
	Max    int `json:"max"`
}

type BedroomStats struct {
	Distribution map[string]int `json:"distribution"`
}

type BathroomStats struct {
	Distribution  map[string]int `json:"distribution"`
	CountWithData int            `json:"count_with_data"`
	Min           *float64       `json:"min"`
	Median        *float64       `json:"median"`
	Max           *float64       `json:"max"`
}

type SqftStats struct {
	CountWithData int `json:"count_with_data"`
	Min           int `json:"min"`
	Median        int `json:"median"`
	Max           int `json:"max"`
}

// Summary is the aggregate view summarize_listings produces. An empty
// shortlist yields zero-filled stats, not an error.
type Summary struct {
	Count         int            `json:"count"`
	Price         *PriceStats    `json:"price"`
	Bedrooms      BedroomStats   `json:"bedrooms"`
	Bathrooms     BathroomStats  `json:"bathrooms"`
	Sqft          *SqftStats     `json:"sqft"`
	HouseCategory map[string]int `json:"house_category"`
}

func Summarize(listings []model.Listing) Summary {
	summary := Summary{
		Count:         len(listings),
		Bedrooms:      BedroomStats{Distribution: map[string]int{}},
		Bathrooms:     BathroomStats{Distribution: map[string]int{}},
		HouseCategory: map[string]int{},
	}
	if len(listings) == 0 {
		return summary
	}

	prices := make([]float64, 0, len(listings))
	baths := make([]float64, 0, len(listings))
	sqfts := make([]float64, 0, len(listings))
	for _, l := range listings {
		prices = append(prices, l.Price)
		summary.Bedrooms.Distribution[strconv.Itoa(l.Bedrooms)]++
		if l.Bathrooms != nil {
			baths = append(baths, *l.Bathrooms)
			summary.Bathrooms.Distribution[formatBathKey(*l.Bathrooms)]++
		}
		if l.Sqft != nil {
			sqfts = append(sqfts, *l.Sqft)
		}
		if l.HouseCategory != nil && *l.HouseCategory != "" {
			summary.HouseCategory[*l.HouseCategory]++
		}
	}

	if len(prices) > 0 {
		summary.Price = &PriceStats{
			Min:    roundInt(minOf(prices)),
			Median: roundInt(median(prices)),
			Mean:   roundInt(mean(prices)),
			Max:    roundInt(maxOf(prices)),
		}
	}
	summary.Bathrooms.CountWithData = len(baths)
	if len(baths) > 0 {
		summary.Bathrooms.Min = round1(minOf(baths))
		summary.Bathrooms.Median = round1(median(baths))
		summary.Bathrooms.Max = round1(maxOf(baths))
	}
	if len(sqfts) > 0 {
		summary.Sqft = &SqftStats{
			CountWithData: len(sqfts),
			Min:           roundInt(minOf(sqfts)),
			Median:        roundInt(median(sqfts)),
			Max:           roundInt(maxOf(sqfts)),
		}
	}
	return summary
}

// Half-bath counts keep their fraction ("1.5"), whole counts drop it ("2").
func formatBathKey(v float64) string {
	if v == math.Trunc(v) {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}
