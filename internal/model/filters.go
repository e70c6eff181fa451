package model

import (
	"encoding/json"
	"strings"
)

type ListingType string

const (
	ForRent       ListingType = "for_rent"
	ForSale       ListingType = "for_sale"
	ForSaleOrRent ListingType = "for_sale_or_rent"
)

// SearchFilters is the input to rental_search. MinBedrooms and Location are
// required; every other bound is optional.
type SearchFilters struct {
	MinBedrooms  int         `json:"min_bedrooms"`
	MaxBedrooms  *int        `json:"max_bedrooms,omitempty"`
	MinBathrooms *int        `json:"min_bathrooms,omitempty"`
	MaxBathrooms *int        `json:"max_bathrooms,omitempty"`
	MinSqft      *int        `json:"min_sqft,omitempty"`
	MaxSqft      *int        `json:"max_sqft,omitempty"`
	RentMin      *float64    `json:"rent_min,omitempty"`
	RentMax      *float64    `json:"rent_max,omitempty"`
	Location     string      `json:"location"`
	ListingType  ListingType `json:"listing_type,omitempty"`
}

// Validate checks the invariants from the filter schema. Violations are
// reported as invalid_filters, never silently corrected.
func (f *SearchFilters) Validate() error {
	if f == nil {
		return Errf(ErrInvalidFilters, "filters are required")
	}
	if strings.TrimSpace(f.Location) == "" {
		return Errf(ErrInvalidFilters, "location is required")
	}
	if f.MinBedrooms < 0 {
		return Errf(ErrInvalidFilters, "min_bedrooms must be >= 0")
	}
	switch f.ListingType {
	case "", ForRent, ForSale, ForSaleOrRent:
	default:
		return Errf(ErrInvalidFilters, "unknown listing_type: %s", f.ListingType)
	}
	return validateBounds(boundSet{
		{"bedrooms", intPtrToFloat(&f.MinBedrooms), intPtrToFloat(f.MaxBedrooms)},
		{"bathrooms", intPtrToFloat(f.MinBathrooms), intPtrToFloat(f.MaxBathrooms)},
		{"sqft", intPtrToFloat(f.MinSqft), intPtrToFloat(f.MaxSqft)},
		{"rent", f.RentMin, f.RentMax},
	})
}

// EffectiveListingType resolves the default transaction type.
func (f *SearchFilters) EffectiveListingType() ListingType {
	if f == nil || f.ListingType == "" {
		return ForRent
	}
	return f.ListingType
}

// Criteria projects the search filters onto the in-memory filter shape.
func (f *SearchFilters) Criteria() FilterCriteria {
	if f == nil {
		return FilterCriteria{}
	}
	min := f.MinBedrooms
	return FilterCriteria{
		MinBedrooms:  &min,
		MaxBedrooms:  f.MaxBedrooms,
		MinBathrooms: f.MinBathrooms,
		MaxBathrooms: f.MaxBathrooms,
		MinSqft:      f.MinSqft,
		MaxSqft:      f.MaxSqft,
		RentMin:      f.RentMin,
		RentMax:      f.RentMax,
	}
}

// FilterCriteria is the optional-bounds subset used by filter_listings.
type FilterCriteria struct {
	MinBedrooms  *int     `json:"min_bedrooms,omitempty"`
	MaxBedrooms  *int     `json:"max_bedrooms,omitempty"`
	MinBathrooms *int     `json:"min_bathrooms,omitempty"`
	MaxBathrooms *int     `json:"max_bathrooms,omitempty"`
	MinSqft      *int     `json:"min_sqft,omitempty"`
	MaxSqft      *int     `json:"max_sqft,omitempty"`
	RentMin      *float64 `json:"rent_min,omitempty"`
	RentMax      *float64 `json:"rent_max,omitempty"`
}

func (c FilterCriteria) IsZero() bool {
	return c.MinBedrooms == nil && c.MaxBedrooms == nil &&
		c.MinBathrooms == nil && c.MaxBathrooms == nil &&
		c.MinSqft == nil && c.MaxSqft == nil &&
		c.RentMin == nil && c.RentMax == nil
}

func (c FilterCriteria) Validate() error {
	for _, p := range []struct {
		name string
		v    *int
	}{
		{"min_bedrooms", c.MinBedrooms}, {"max_bedrooms", c.MaxBedrooms},
		{"min_bathrooms", c.MinBathrooms}, {"max_bathrooms", c.MaxBathrooms},
		{"min_sqft", c.MinSqft}, {"max_sqft", c.MaxSqft},
	} {
		if p.v != nil && *p.v < 0 {
			return Errf(ErrInvalidArgs, "%s must be >= 0", p.name)
		}
	}
	if c.RentMin != nil && *c.RentMin < 0 {
		return Errf(ErrInvalidArgs, "rent_min must be >= 0")
	}
	if c.RentMax != nil && *c.RentMax < 0 {
		return Errf(ErrInvalidArgs, "rent_max must be >= 0")
	}
	return validateBounds(boundSet{
		{"bedrooms", intPtrToFloat(c.MinBedrooms), intPtrToFloat(c.MaxBedrooms)},
		{"bathrooms", intPtrToFloat(c.MinBathrooms), intPtrToFloat(c.MaxBathrooms)},
		{"sqft", intPtrToFloat(c.MinSqft), intPtrToFloat(c.MaxSqft)},
		{"rent", c.RentMin, c.RentMax},
	})
}

type boundPair struct {
	name string
	min  *float64
	max  *float64
}

type boundSet []boundPair

func validateBounds(pairs boundSet) error {
	for _, p := range pairs {
		if p.min != nil && *p.min < 0 {
			return Errf(ErrInvalidFilters, "min_%s must be >= 0", p.name)
		}
		if p.max != nil && *p.max < 0 {
			return Errf(ErrInvalidFilters, "max_%s must be >= 0", p.name)
		}
		if p.min != nil && p.max != nil && *p.max < *p.min {
			return Errf(ErrInvalidFilters, "max_%s must be >= min_%s", p.name, p.name)
		}
	}
	return nil
}

func intPtrToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// DecodeInto round-trips a loosely typed tool argument (map[string]any from
// JSON) into a concrete schema struct.
func DecodeInto(raw any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return Errf(ErrInvalidArgs, "malformed argument: %v", err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return Errf(ErrInvalidArgs, "malformed argument: %v", err)
	}
	return nil
}
