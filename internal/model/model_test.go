package model

import (
	"errors"
	"testing"
)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func TestSearchFiltersValidateRequiresLocation(t *testing.T) {
	f := &SearchFilters{MinBedrooms: 2}
	err := f.Validate()
	if err == nil {
		t.Fatalf("expected error for missing location")
	}
	if KindOf(err) != ErrInvalidFilters {
		t.Fatalf("kind = %q, want invalid_filters", KindOf(err))
	}
}

func TestSearchFiltersValidateRejectsInvertedBounds(t *testing.T) {
	cases := []SearchFilters{
		{MinBedrooms: 3, MaxBedrooms: intp(2), Location: "Vancouver"},
		{MinBedrooms: 0, MinBathrooms: intp(2), MaxBathrooms: intp(1), Location: "Vancouver"},
		{MinBedrooms: 0, MinSqft: intp(900), MaxSqft: intp(800), Location: "Vancouver"},
		{MinBedrooms: 0, RentMin: floatp(3000), RentMax: floatp(2500), Location: "Vancouver"},
	}
	for i, f := range cases {
		if err := f.Validate(); KindOf(err) != ErrInvalidFilters {
			t.Fatalf("case %d: err = %v, want invalid_filters", i, err)
		}
	}
}

func TestSearchFiltersValidateAcceptsEqualBounds(t *testing.T) {
	f := &SearchFilters{MinBedrooms: 2, MaxBedrooms: intp(2), Location: "Vancouver"}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.EffectiveListingType() != ForRent {
		t.Fatalf("default listing type = %q, want for_rent", f.EffectiveListingType())
	}
}

func TestSearchFiltersValidateRejectsNegatives(t *testing.T) {
	f := &SearchFilters{MinBedrooms: -1, Location: "Vancouver"}
	if KindOf(f.Validate()) != ErrInvalidFilters {
		t.Fatalf("negative min_bedrooms must fail validation")
	}
	f = &SearchFilters{MinBedrooms: 0, RentMin: floatp(-5), Location: "Vancouver"}
	if KindOf(f.Validate()) != ErrInvalidFilters {
		t.Fatalf("negative rent_min must fail validation")
	}
}

func TestSearchFiltersValidateRejectsUnknownListingType(t *testing.T) {
	f := &SearchFilters{MinBedrooms: 1, Location: "Vancouver", ListingType: "timeshare"}
	if KindOf(f.Validate()) != ErrInvalidFilters {
		t.Fatalf("unknown listing_type must fail validation")
	}
}

func TestFilterCriteriaValidate(t *testing.T) {
	c := FilterCriteria{MinBathrooms: intp(2), MaxBathrooms: intp(1)}
	if KindOf(c.Validate()) != ErrInvalidFilters {
		t.Fatalf("inverted bathroom bounds must fail")
	}
	if !(FilterCriteria{}).IsZero() {
		t.Fatalf("empty criteria should be zero")
	}
	if (FilterCriteria{RentMax: floatp(2500)}).IsZero() {
		t.Fatalf("criteria with rent_max should not be zero")
	}
}

func TestUserDetailsValidate(t *testing.T) {
	if err := (UserDetails{Name: "Pat", Email: "pat@example.com"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, u := range []UserDetails{
		{Name: "", Email: "pat@example.com"},
		{Name: "Pat", Email: ""},
		{Name: "Pat", Email: "not-an-email"},
		{Name: "Pat", Email: "a@b"},
	} {
		if KindOf(u.Validate()) != ErrInvalidArgs {
			t.Fatalf("details %+v should fail with invalid_args", u)
		}
	}
}

func TestListingShortLabel(t *testing.T) {
	l := Listing{ID: "mls1", Address: "123 Main St", Price: 2800.75}
	if got := l.ShortLabel(1); got != "[1] 123 Main St — $2800" {
		t.Fatalf("label = %q", got)
	}
}

func TestKindOfWrappedError(t *testing.T) {
	base := Errf(ErrBackendUnavailable, "search is down")
	wrapped := errors.Join(errors.New("outer"), base)
	if KindOf(wrapped) != ErrBackendUnavailable {
		t.Fatalf("kind should survive wrapping")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
}
