package agent

import (
	"strings"

	"github.com/user/rentagent/internal/model"
)

// Choice strings carry the listing id so a multi-select answer maps back to
// a listing: "[1] 123 Main St — $2800 (id: mls123)".
const idSuffix = " (id: "

// BuildApprovalChoices renders one stable choice string per shortlist entry.
func BuildApprovalChoices(shortlist []model.Listing) []string {
	choices := make([]string, 0, len(shortlist))
	for i, l := range shortlist {
		choices = append(choices, l.ShortLabel(i+1)+idSuffix+l.ID+")")
	}
	return choices
}

// SelectedToListings maps selected choice strings back to shortlist entries.
// It accepts a full choice string, a bare listing id, or anything ending in
// the "(id: ...)" suffix; unmatchable values are dropped.
func SelectedToListings(selected []string, shortlist []model.Listing) []model.Listing {
	byID := make(map[string]model.Listing, len(shortlist))
	for _, l := range shortlist {
		byID[l.ID] = l
	}
	out := make([]model.Listing, 0, len(selected))
	for _, s := range selected {
		if s == "" {
			continue
		}
		if l, ok := byID[s]; ok {
			out = append(out, l)
			continue
		}
		if idx := strings.LastIndex(s, idSuffix); idx != -1 {
			id := strings.TrimSuffix(s[idx+len(idSuffix):], ")")
			if l, ok := byID[id]; ok {
				out = append(out, l)
			}
		}
	}
	return out
}
