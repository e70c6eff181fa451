// Package listing holds the in-memory shortlist operations (filter, sort,
// summarize) and the search backend boundary.
package listing

import (
	"sort"
	"strings"

	"github.com/user/rentagent/internal/model"
)

var sortableAttrs = map[string]struct{}{
	"price":     {},
	"bedrooms":  {},
	"bathrooms": {},
	"sqft":      {},
	"address":   {},
	"id":        {},
	"title":     {},
}

// SortableAttr reports whether attr is a valid sort_by value.
func SortableAttr(attr string) bool {
	_, ok := sortableAttrs[attr]
	return ok
}

// Filter narrows listings by criteria and optionally sorts them. The input
// slice is never mutated; the result is a new ordered slice referencing the
// same listing values. With zero criteria and no sort the result equals the
// input.
func Filter(listings []model.Listing, criteria model.FilterCriteria, sortBy string, ascending bool) (model.SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return model.SearchResult{}, err
	}
	if sortBy != "" && !SortableAttr(sortBy) {
		return model.SearchResult{}, model.Errf(model.ErrInvalidArgs, "cannot sort by %q", sortBy)
	}

	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if matches(l, criteria) {
			out = append(out, l)
		}
	}
	if sortBy != "" {
		sortListings(out, sortBy, ascending)
	}
	return model.SearchResult{Listings: out, TotalCount: len(out)}, nil
}

func matches(l model.Listing, c model.FilterCriteria) bool {
	if c.MinBedrooms != nil && l.Bedrooms < *c.MinBedrooms {
		return false
	}
	if c.MaxBedrooms != nil && l.Bedrooms > *c.MaxBedrooms {
		return false
	}
	if c.MinBathrooms != nil && (l.Bathrooms == nil || *l.Bathrooms < float64(*c.MinBathrooms)) {
		return false
	}
	if c.MaxBathrooms != nil && (l.Bathrooms == nil || *l.Bathrooms > float64(*c.MaxBathrooms)) {
		return false
	}
	if c.MinSqft != nil && (l.Sqft == nil || *l.Sqft < float64(*c.MinSqft)) {
		return false
	}
	if c.MaxSqft != nil && (l.Sqft == nil || *l.Sqft > float64(*c.MaxSqft)) {
		return false
	}
	if c.RentMin != nil && l.Price < *c.RentMin {
		return false
	}
	if c.RentMax != nil && l.Price > *c.RentMax {
		return false
	}
	return true
}

// sortListings orders by the requested attribute. Listings missing the
// attribute always sort last; ties break by id ascending so the order is
// reproducible regardless of input order.
func sortListings(listings []model.Listing, attr string, ascending bool) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		aMissing, bMissing := missingAttr(a, attr), missingAttr(b, attr)
		if aMissing != bMissing {
			return bMissing
		}
		if !aMissing {
			if num, av, bv := numericKeys(a, b, attr); num {
				if av != bv {
					if ascending {
						return av < bv
					}
					return av > bv
				}
			} else {
				as, bs := stringKey(a, attr), stringKey(b, attr)
				if as != bs {
					if ascending {
						return as < bs
					}
					return as > bs
				}
			}
		}
		return a.ID < b.ID
	})
}

func missingAttr(l model.Listing, attr string) bool {
	switch attr {
	case "bathrooms":
		return l.Bathrooms == nil
	case "sqft":
		return l.Sqft == nil
	default:
		return false
	}
}

func numericKeys(a, b model.Listing, attr string) (bool, float64, float64) {
	switch attr {
	case "price":
		return true, a.Price, b.Price
	case "bedrooms":
		return true, float64(a.Bedrooms), float64(b.Bedrooms)
	case "bathrooms":
		return true, deref(a.Bathrooms), deref(b.Bathrooms)
	case "sqft":
		return true, deref(a.Sqft), deref(b.Sqft)
	default:
		return false, 0, 0
	}
}

func stringKey(l model.Listing, attr string) string {
	switch attr {
	case "address":
		return strings.ToLower(l.Address)
	case "title":
		return strings.ToLower(l.Title)
	default:
		return l.ID
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
