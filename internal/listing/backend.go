package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/rentagent/internal/model"
)

// Backend is the listing-source collaborator. A failed search must surface as
// an error, never as an empty result set.
type Backend interface {
	Search(ctx context.Context, filters model.SearchFilters) ([]model.Listing, error)
}

// RealtorClient talks to a Realtor.ca-style JSON search API and maps its
// native row shape into the canonical Listing.
type RealtorClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// nativeListing mirrors the backend's own field names, which do not match the
// canonical shape (MLS ids, "Size" with unit text, relative Website paths).
type nativeListing struct {
	MLS               string   `json:"mls"`
	Description       string   `json:"description"`
	Website           string   `json:"website"`
	Address           string   `json:"address"`
	PostalCode        string   `json:"postal_code"`
	Rent              string   `json:"rent"`
	TotalRent         *float64 `json:"total_rent"`
	Price             *float64 `json:"price"`
	Bedrooms          *float64 `json:"bedrooms"`
	Bathrooms         *float64 `json:"bathrooms"`
	Size              string   `json:"size"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	HouseCategory     string   `json:"house_category"`
	OwnershipCategory string   `json:"ownership_category"`
	Amenities         string   `json:"amenities"`
	NearbyAmenities   string   `json:"nearby_amenities"`
	OpenHouse         string   `json:"open_house"`
	Stories           *float64 `json:"stories"`
}

type nativeSearchRequest struct {
	SearchArea  string `json:"search_area"`
	Country     string `json:"country"`
	ListingType string `json:"listing_type"`
	PriceFrom   *int   `json:"price_from,omitempty"`
}

type nativeSearchResponse struct {
	Houses []nativeListing `json:"houses"`
}

const sourceName = "Realtor.ca"

func (c *RealtorClient) Search(ctx context.Context, filters model.SearchFilters) ([]model.Listing, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	req := nativeSearchRequest{
		SearchArea:  filters.Location,
		Country:     "Canada",
		ListingType: string(filters.EffectiveListingType()),
	}
	if filters.RentMin != nil {
		from := int(*filters.RentMin)
		req.PriceFrom = &from
	}

	var resp nativeSearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/houses/search", req, &resp); err != nil {
		return nil, model.Errf(model.ErrBackendUnavailable, "the rental search is temporarily unavailable: %v", err)
	}

	listings := make([]model.Listing, 0, len(resp.Houses))
	for _, row := range resp.Houses {
		listings = append(listings, mapNative(row, filters.EffectiveListingType()))
	}

	// The backend only filters by area and price floor; apply the remaining
	// bounds here so the orchestrator sees final results.
	result, err := Filter(listings, filters.Criteria(), "", true)
	if err != nil {
		return nil, err
	}
	return result.Listings, nil
}

func (c *RealtorClient) doJSON(ctx context.Context, method, path string, reqBody any, out any) error {
	if c == nil {
		return fmt.Errorf("realtor client is required")
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		return fmt.Errorf("realtor base url is not configured")
	}

	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.APIKey))
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("backend %s %s failed: status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mapNative(row nativeListing, listingType model.ListingType) model.Listing {
	price := nativePrice(row, listingType)

	l := model.Listing{
		ID:       strings.TrimSpace(row.MLS),
		Title:    nativeTitle(row),
		URL:      nativeURL(row),
		Address:  nativeAddress(row),
		Price:    price,
		Bedrooms: nativeBedrooms(row),
	}
	l.Source = strp(sourceName)
	l.PriceDisplay = priceDisplay(row.Rent, price, listingType)
	l.Sqft = parseSqft(row.Size)
	l.Bathrooms = row.Bathrooms
	l.Latitude = row.Latitude
	l.Longitude = row.Longitude
	l.Stories = row.Stories
	l.Description = optString(row.Description)
	l.PostalCode = optString(row.PostalCode)
	l.HouseCategory = optString(row.HouseCategory)
	l.OwnershipCategory = optString(row.OwnershipCategory)
	l.Amenities = optString(row.Amenities)
	l.NearbyAmenities = optString(row.NearbyAmenities)
	l.OpenHouse = optString(row.OpenHouse)
	return l
}

// Prefer the numeric total rent for rentals; the display column may carry
// formatted text like "$2,500/month".
func nativePrice(row nativeListing, listingType model.ListingType) float64 {
	if listingType == model.ForRent && row.TotalRent != nil {
		return *row.TotalRent
	}
	if listingType == model.ForRent {
		if v, ok := parseMoney(row.Rent); ok {
			return v
		}
	}
	if row.Price != nil {
		return *row.Price
	}
	if v, ok := parseMoney(row.Rent); ok {
		return v
	}
	return 0
}

var nonNumeric = regexp.MustCompile(`[^\d.]`)

func parseMoney(s string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var firstNumber = regexp.MustCompile(`[\d.]+`)

// parseSqft handles both bare numbers and text like "1200 sqft".
func parseSqft(s string) *float64 {
	match := firstNumber.FindString(strings.TrimSpace(s))
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

func priceDisplay(raw string, price float64, listingType model.ListingType) *string {
	s := strings.TrimSpace(raw)
	if s != "" && (strings.Contains(s, "$") || strings.Contains(s, ",")) {
		return &s
	}
	if price == 0 {
		return nil
	}
	formatted := "$" + groupThousands(int(price))
	if listingType == model.ForRent {
		formatted += "/month"
	}
	return &formatted
}

func groupThousands(v int) string {
	s := strconv.Itoa(v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func nativeBedrooms(row nativeListing) int {
	if row.Bedrooms == nil || *row.Bedrooms < 0 {
		return 0
	}
	return int(*row.Bedrooms)
}

func nativeTitle(row nativeListing) string {
	title := strings.TrimSpace(row.Description)
	if len(title) > 200 {
		title = title[:200]
	}
	if title == "" {
		title = "Listing " + strings.TrimSpace(row.MLS)
	}
	return title
}

func nativeAddress(row nativeListing) string {
	addr := strings.TrimSpace(row.Address)
	if addr == "" {
		return "Address not provided"
	}
	return addr
}

func nativeURL(row nativeListing) string {
	raw := strings.TrimSpace(row.Website)
	if raw == "" {
		return "https://www.realtor.ca/listing/" + strings.TrimSpace(row.MLS)
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return "https://www.realtor.ca" + raw
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func strp(s string) *string { return &s }
