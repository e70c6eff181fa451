// Package plan drafts and edits viewing plans: it assigns free calendar slots
// to approved listings, clustering nearby listings onto adjacent slots so a
// viewing day has as few travel legs as possible.
package plan

import (
	"math"
	"sort"
	"time"

	"github.com/user/rentagent/internal/model"
)

// DefaultClusterKm is the distance under which two listings are treated as
// co-locatable.
const DefaultClusterKm = 2.0

const slotTimeLayout = "2006-01-02T15:04:05"

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLam := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLam/2)*math.Sin(dLam/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// clusterByProximity groups listings whose coordinates lie within thresholdKm
// of a cluster seed. Listings without coordinates form one trailing cluster.
// Within a cluster the incoming shortlist order is preserved.
func clusterByProximity(listings []model.Listing, thresholdKm float64) [][]model.Listing {
	var located, unlocated []model.Listing
	for _, l := range listings {
		if l.Latitude != nil && l.Longitude != nil {
			located = append(located, l)
		} else {
			unlocated = append(unlocated, l)
		}
	}

	var clusters [][]model.Listing
	used := make([]bool, len(located))
	for i, seed := range located {
		if used[i] {
			continue
		}
		cluster := []model.Listing{seed}
		used[i] = true
		for j := i + 1; j < len(located); j++ {
			if used[j] {
				continue
			}
			other := located[j]
			if haversineKm(*seed.Latitude, *seed.Longitude, *other.Latitude, *other.Longitude) <= thresholdKm {
				cluster = append(cluster, other)
				used[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}
	if len(unlocated) > 0 {
		clusters = append(clusters, unlocated)
	}

	// Bigger clusters first so the densest neighborhood gets the earliest
	// block of slots. Ties go to the cluster holding the smallest id.
	sort.SliceStable(clusters, func(a, b int) bool {
		if len(clusters[a]) != len(clusters[b]) {
			return len(clusters[a]) > len(clusters[b])
		}
		return minID(clusters[a]) < minID(clusters[b])
	})
	return clusters
}

func minID(cluster []model.Listing) string {
	min := cluster[0].ID
	for _, l := range cluster[1:] {
		if l.ID < min {
			min = l.ID
		}
	}
	return min
}

func slotDuration(s model.TimeSlot) time.Duration {
	start, err1 := time.Parse(slotTimeLayout, s.Start)
	end, err2 := time.Parse(slotTimeLayout, s.End)
	if err1 != nil || err2 != nil {
		return 0
	}
	return end.Sub(start)
}

// Draft assigns at most one slot per listing. Slots are consumed once, in
// chronological order, and slots shorter than required are skipped. When
// slots run out the remaining listings come back in Unassigned instead of
// being dropped.
func Draft(listings []model.Listing, slots []model.TimeSlot, required time.Duration) model.ViewingPlan {
	p := model.ViewingPlan{Entries: []model.ViewingPlanEntry{}}
	if len(listings) == 0 {
		p.UnusedSlots = append([]model.TimeSlot(nil), slots...)
		return p
	}

	usable := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if required > 0 && slotDuration(s) < required {
			continue
		}
		usable = append(usable, s)
	}
	sort.SliceStable(usable, func(a, b int) bool { return usable[a].Start < usable[b].Start })

	next := 0
	for _, cluster := range clusterByProximity(listings, DefaultClusterKm) {
		for _, l := range cluster {
			if next >= len(usable) {
				p.Unassigned = append(p.Unassigned, l.ID)
				continue
			}
			p.Entries = append(p.Entries, model.ViewingPlanEntry{
				ListingID:      l.ID,
				ListingAddress: l.Address,
				ListingURL:     l.URL,
				Slot:           usable[next],
			})
			next++
		}
	}
	p.UnusedSlots = append(p.UnusedSlots, usable[next:]...)
	return p
}

// Change is one edit against an existing plan.
type Change struct {
	Op        string // "add", "remove" or "update"
	ListingID string
	Entry     model.ViewingPlanEntry // add only
	Slot      model.TimeSlot         // update only
}

// Modify applies one change and returns the resulting plan. The input plan is
// never mutated, so a rejected edit leaves the caller's plan intact. Every
// result keeps the one-slot-per-listing and slot-used-once invariants.
func Modify(p model.ViewingPlan, ch Change) (model.ViewingPlan, error) {
	out := model.ViewingPlan{
		Entries:     append([]model.ViewingPlanEntry(nil), p.Entries...),
		Unassigned:  append([]string(nil), p.Unassigned...),
		UnusedSlots: append([]model.TimeSlot(nil), p.UnusedSlots...),
	}
	switch ch.Op {
	case "remove":
		idx := entryIndex(out.Entries, ch.ListingID)
		if idx < 0 {
			return p, model.Errf(model.ErrInvalidArgs, "listing %s is not in the plan", ch.ListingID)
		}
		out.UnusedSlots = append(out.UnusedSlots, out.Entries[idx].Slot)
		out.Entries = append(out.Entries[:idx], out.Entries[idx+1:]...)
		return out, nil

	case "add":
		e := ch.Entry
		if e.ListingID == "" || e.Slot.IsZero() {
			return p, model.Errf(model.ErrInvalidArgs, "add requires a listing id and a slot")
		}
		if entryIndex(out.Entries, e.ListingID) >= 0 {
			return p, model.Errf(model.ErrInvalidArgs, "listing %s already has a slot", e.ListingID)
		}
		if slotTaken(out.Entries, e.Slot) {
			return p, model.Errf(model.ErrInvalidArgs, "slot %s is already assigned", e.Slot.Start)
		}
		out.Entries = append(out.Entries, e)
		out.Unassigned = removeID(out.Unassigned, e.ListingID)
		out.UnusedSlots = removeSlot(out.UnusedSlots, e.Slot)
		return out, nil

	case "update":
		idx := entryIndex(out.Entries, ch.ListingID)
		if idx < 0 {
			return p, model.Errf(model.ErrInvalidArgs, "listing %s is not in the plan", ch.ListingID)
		}
		if ch.Slot.IsZero() {
			return p, model.Errf(model.ErrInvalidArgs, "update requires a slot")
		}
		if slotTaken(out.Entries, ch.Slot) && out.Entries[idx].Slot.Start != ch.Slot.Start {
			return p, model.Errf(model.ErrInvalidArgs, "slot %s is already assigned", ch.Slot.Start)
		}
		out.UnusedSlots = append(out.UnusedSlots, out.Entries[idx].Slot)
		out.Entries[idx].Slot = ch.Slot
		out.UnusedSlots = removeSlot(out.UnusedSlots, ch.Slot)
		return out, nil

	default:
		return p, model.Errf(model.ErrInvalidArgs, "unknown plan operation %q", ch.Op)
	}
}

func entryIndex(entries []model.ViewingPlanEntry, listingID string) int {
	for i, e := range entries {
		if e.ListingID == listingID {
			return i
		}
	}
	return -1
}

func slotTaken(entries []model.ViewingPlanEntry, s model.TimeSlot) bool {
	for _, e := range entries {
		if e.Slot.Start == s.Start {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func removeSlot(slots []model.TimeSlot, s model.TimeSlot) []model.TimeSlot {
	for i, v := range slots {
		if v.Start == s.Start {
			return append(slots[:i], slots[i+1:]...)
		}
	}
	return slots
}
