package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Listing is an immutable snapshot of one candidate property at fetch time.
// Filter and sort operations build new slices referencing the same values.
type Listing struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	URL               string   `json:"url"`
	Address           string   `json:"address"`
	Price             float64  `json:"price"`
	Bedrooms          int      `json:"bedrooms"`
	Sqft              *float64 `json:"sqft,omitempty"`
	Bathrooms         *float64 `json:"bathrooms,omitempty"`
	PriceDisplay      *string  `json:"price_display,omitempty"`
	PostalCode        *string  `json:"postal_code,omitempty"`
	Source            *string  `json:"source,omitempty"`
	Description       *string  `json:"description,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	HouseCategory     *string  `json:"house_category,omitempty"`
	OwnershipCategory *string  `json:"ownership_category,omitempty"`
	Amenities         *string  `json:"amenities,omitempty"`
	NearbyAmenities   *string  `json:"nearby_amenities,omitempty"`
	OpenHouse         *string  `json:"open_house,omitempty"`
	Stories           *float64 `json:"stories,omitempty"`
}

func (l Listing) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return Errf(ErrInvalidArgs, "listing id is required")
	}
	if strings.TrimSpace(l.URL) == "" {
		return Errf(ErrInvalidArgs, "listing url is required")
	}
	if strings.TrimSpace(l.Address) == "" {
		return Errf(ErrInvalidArgs, "listing address is required")
	}
	if l.Price < 0 {
		return Errf(ErrInvalidArgs, "listing price must be >= 0")
	}
	if l.Bedrooms < 0 {
		return Errf(ErrInvalidArgs, "listing bedrooms must be >= 0")
	}
	return nil
}

// ShortLabel renders the label used for approval choices,
// e.g. "[1] 123 Main St — $2800".
func (l Listing) ShortLabel(index int) string {
	if index > 0 {
		return fmt.Sprintf("[%d] %s — $%d", index, l.Address, int(l.Price))
	}
	return fmt.Sprintf("%s — $%d", l.Address, int(l.Price))
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserDetails is the viewing-request contact block. Collected at most once
// per conversation.
type UserDetails struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	PreferredTimes string `json:"preferred_times,omitempty"`
}

func (u UserDetails) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return Errf(ErrInvalidArgs, "name is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(u.Email)) {
		return Errf(ErrInvalidArgs, "email %q is not well-formed", u.Email)
	}
	return nil
}

// TimeSlot is one bookable viewing window from the calendar collaborator.
// Start and End are local ISO datetimes without offset (2026-03-02T18:00:00).
type TimeSlot struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Display string `json:"display"`
}

func (s TimeSlot) IsZero() bool {
	return s.Start == "" && s.End == ""
}

// ViewingPlanEntry assigns one slot to one approved listing.
type ViewingPlanEntry struct {
	ListingID      string   `json:"listing_id"`
	ListingAddress string   `json:"listing_address"`
	ListingURL     string   `json:"listing_url"`
	Slot           TimeSlot `json:"slot"`
}

// ViewingPlan holds the full assignment plus what could not be placed.
// Insufficient slots are a partial result, not a failure.
type ViewingPlan struct {
	Entries     []ViewingPlanEntry `json:"entries"`
	Unassigned  []string           `json:"unassigned,omitempty"`
	UnusedSlots []TimeSlot         `json:"unused_slots,omitempty"`
}

// SearchResult is the shared shape of rental_search and filter_listings.
type SearchResult struct {
	Listings   []Listing `json:"listings"`
	TotalCount int       `json:"total_count"`
}

// ViewingRequestReceipt is what simulate_viewing_request returns.
type ViewingRequestReceipt struct {
	Summary    string `json:"summary"`
	ContactURL string `json:"contact_url,omitempty"`
}
