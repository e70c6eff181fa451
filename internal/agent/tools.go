package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/user/rentagent/internal/calendar"
	"github.com/user/rentagent/internal/listing"
	"github.com/user/rentagent/internal/model"
	"github.com/user/rentagent/internal/plan"
)

type Param struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Tool is one schema-validated operation the strategy may propose. Execute
// receives the conversation state by reference; tools keep no hidden state
// of their own.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]Param
	Execute     func(ctx context.Context, st *ConversationState, args map[string]any) (any, error)
}

// ToolsetDeps are the external collaborators the tools call into.
type ToolsetDeps struct {
	Backend  listing.Backend
	Calendar calendar.Service

	// Now stamps slot-range defaults; nil means time.Now.
	Now func() time.Time
	// SlotDuration is the required viewing length; zero means one hour.
	SlotDuration time.Duration
}

type Toolset struct {
	tools map[string]Tool
}

func NewToolset(deps ToolsetDeps) *Toolset {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SlotDuration <= 0 {
		deps.SlotDuration = time.Hour
	}
	ts := &Toolset{tools: make(map[string]Tool)}
	for _, t := range defaultTools(deps) {
		ts.tools[t.Name] = t
	}
	return ts
}

func (ts *Toolset) Definitions() []Tool {
	defs := make([]Tool, 0, len(ts.tools))
	for _, tool := range ts.tools {
		defs = append(defs, Tool{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters})
	}
	return defs
}

// Has reports whether the toolset carries the named tool.
func (ts *Toolset) Has(name string) bool {
	_, ok := ts.tools[name]
	return ok
}

func (ts *Toolset) Execute(ctx context.Context, st *ConversationState, name string, args map[string]any) (any, error) {
	tool, ok := ts.tools[name]
	if !ok {
		return nil, model.Errf(model.ErrInvalidArgs, "unknown tool: %s", name)
	}
	return tool.Execute(ctx, st, args)
}

func (ts *Toolset) JSONSchemas() []map[string]any {
	defs := ts.Definitions()
	schemas := make([]map[string]any, 0, len(defs))
	for _, t := range defs {
		required := make([]string, 0)
		properties := make(map[string]any, len(t.Parameters))
		for key, p := range t.Parameters {
			properties[key] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, key)
			}
		}
		schemas = append(schemas, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"input_schema": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return schemas
}

const slotTimeLayout = "2006-01-02T15:04:05"

func defaultTools(deps ToolsetDeps) []Tool {
	tools := []Tool{
		{
			Name:        "ask_user",
			Description: "Ask the user for clarification or approval. Single answer (allow_multiple=false) or multi-select (allow_multiple=true). When asking which listings to request viewings for, you MUST provide choices (one per listing with id, e.g. '[1] 123 Main St — $2800 (id: xyz)') so the user gets a dropdown. Never ask for listing numbers in chat.",
			Parameters: map[string]Param{
				"prompt":         {Type: "string", Description: "Question or instruction shown to the user.", Required: true},
				"choices":        {Type: "array", Description: "Predefined options for dropdown or multi-select. Required when asking which listings to approve. Omit for free-text questions."},
				"allow_multiple": {Type: "boolean", Description: "If true, user may select zero or more choices; if false, single answer."},
				"purpose":        {Type: "string", Description: "What the answer is for: clarify, preference, approval, details or plan."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				// The orchestrator intercepts ask_user and suspends the
				// conversation; reaching this executor is a wiring bug.
				return nil, fmt.Errorf("ask_user must be handled by the orchestrator")
			},
		},
		{
			Name:        "rental_search",
			Description: "Run a single rental search. Requires min_bedrooms and location in filters. For exact bedroom count (e.g. '2 bed'), set both min_bedrooms and max_bedrooms; for 'at least N', set only min_bedrooms.",
			Parameters: map[string]Param{
				"filters": {Type: "object", Description: "Search filters: min_bedrooms (int) and location (str) required; optional max_bedrooms, min/max_bathrooms, min/max_sqft, rent_min, rent_max, listing_type.", Required: true},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				raw, ok := args["filters"]
				if !ok || raw == nil {
					return nil, model.Errf(model.ErrInvalidFilters, "filters are required")
				}
				var filters model.SearchFilters
				if err := model.DecodeInto(raw, &filters); err != nil {
					return nil, err
				}
				if err := filters.Validate(); err != nil {
					return nil, err
				}
				listings, err := deps.Backend.Search(ctx, filters)
				if err != nil {
					return nil, err
				}
				st.Filters = &filters
				return model.SearchResult{Listings: listings, TotalCount: len(listings)}, nil
			},
		},
		{
			Name:        "filter_listings",
			Description: "Narrow and/or sort the current shortlist. Call after presenting results when the user asks to filter (e.g. 'only 1 bathroom', 'under 2500') or sort (e.g. 'cheapest first'). Pass filter criteria and/or sort_by + ascending.",
			Parameters: map[string]Param{
				"min_bedrooms":  {Type: "integer", Description: "Minimum number of bedrooms."},
				"max_bedrooms":  {Type: "integer", Description: "Maximum number of bedrooms."},
				"min_bathrooms": {Type: "integer", Description: "Minimum number of bathrooms."},
				"max_bathrooms": {Type: "integer", Description: "Maximum number of bathrooms."},
				"min_sqft":      {Type: "integer", Description: "Minimum square footage."},
				"max_sqft":      {Type: "integer", Description: "Maximum square footage."},
				"rent_min":      {Type: "number", Description: "Minimum rent (CAD/month)."},
				"rent_max":      {Type: "number", Description: "Maximum rent (CAD/month)."},
				"sort_by":       {Type: "string", Description: "Attribute to sort by: price, bedrooms, bathrooms, sqft, address, id or title. Omit for no sort."},
				"ascending":     {Type: "boolean", Description: "Sort ascending when true (default). False sorts descending."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				if st.Shortlist == nil {
					return nil, model.Errf(model.ErrInvalidArgs, "no search results to filter; run rental_search first")
				}
				var criteria model.FilterCriteria
				if err := model.DecodeInto(args, &criteria); err != nil {
					return nil, err
				}
				sortBy, err := optionalString(args, "sort_by")
				if err != nil {
					return nil, err
				}
				if criteria.IsZero() && strings.TrimSpace(sortBy) == "" {
					return nil, model.Errf(model.ErrInvalidArgs, "filter_listings needs filter criteria or sort_by")
				}
				ascending := true
				if _, present := args["ascending"]; present {
					ascending, err = optionalBool(args, "ascending")
					if err != nil {
						return nil, err
					}
				}
				result, err := listing.Filter(st.Shortlist, criteria, sortBy, ascending)
				if err != nil {
					return nil, err
				}
				return result, nil
			},
		},
		{
			Name:        "summarize_listings",
			Description: "Compute statistics (price min/median/mean/max, bedroom and bathroom distributions, size stats, property types) for the current shortlist. Call when presenting results.",
			Parameters:  map[string]Param{},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				return listing.Summarize(st.Shortlist), nil
			},
		},
		{
			Name:        "simulate_viewing_request",
			Description: "Simulate a viewing request (no real form POST). Use the listing url, a timeslot string from the user's preference, and user_details (name, email required).",
			Parameters: map[string]Param{
				"listing_url":  {Type: "string", Description: "Canonical URL of the listing.", Required: true},
				"listing_id":   {Type: "string", Description: "Listing id from the shortlist; recorded with the simulated request."},
				"timeslot":     {Type: "string", Description: "Human-readable timeslot (e.g. Tuesday 6-8pm).", Required: true},
				"user_details": {Type: "object", Description: "User details: name and email required; phone and preferred_times optional."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				listingURL, err := requiredString(args, "listing_url")
				if err != nil {
					return nil, err
				}
				timeslot, err := requiredString(args, "timeslot")
				if err != nil {
					return nil, err
				}
				details, err := resolveUserDetails(st, args)
				if err != nil {
					return nil, err
				}
				summary := fmt.Sprintf("Viewing request [simulated] for %s at %s. Contact: %s, %s.",
					listingURL, timeslot, details.Name, details.Email)
				contact := "mailto:?subject=" + url.QueryEscape("Viewing request for listing") +
					"&body=" + url.QueryEscape("Requested timeslot: "+timeslot)
				return model.ViewingRequestReceipt{Summary: summary, ContactURL: contact}, nil
			},
		},
		{
			Name:        "draft_viewing_plan",
			Description: "Draft a viewing plan by assigning available slots to the approved listings, clustering nearby listings onto adjacent slots. Call immediately after calendar_get_available_slots returns. Returns entries with start/end datetimes and slot_display, plus unassigned listings and unused_slots.",
			Parameters:  map[string]Param{},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				approved := st.Approved()
				if len(approved) == 0 {
					return nil, model.Errf(model.ErrInvalidArgs, "no approved listings to plan")
				}
				if len(st.AvailableSlots) == 0 {
					return nil, model.Errf(model.ErrInsufficientSlots, "no available slots; call calendar_get_available_slots first or expand the date range")
				}
				p := plan.Draft(approved, st.AvailableSlots, deps.SlotDuration)
				st.ViewingPlan = &p
				st.PlanConfirmed = false
				return planResult(p), nil
			},
		},
		{
			Name:        "modify_viewing_plan",
			Description: "Modify the viewing plan when the user wants changes. Supports remove (listing ids), add (entries with listing_id, listing_address, listing_url and a slot from unused_slots) and update (listing_id plus new_slot from unused_slots).",
			Parameters: map[string]Param{
				"remove": {Type: "array", Description: "Listing ids to remove from the plan."},
				"add":    {Type: "array", Description: "Entries to add: each needs listing_id, listing_address, listing_url, slot."},
				"update": {Type: "array", Description: "Slot changes: each needs listing_id and new_slot."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				if st.ViewingPlan == nil {
					return nil, model.Errf(model.ErrInvalidArgs, "no viewing plan to modify; call draft_viewing_plan first")
				}
				changes, err := decodePlanChanges(args)
				if err != nil {
					return nil, err
				}
				if len(changes) == 0 {
					return nil, model.Errf(model.ErrInvalidArgs, "modify_viewing_plan needs at least one of remove, add or update")
				}
				// Plan entries may only reference approved listings; an add
				// outside that set is rejected before any change applies.
				approved := make(map[string]bool, len(st.ApprovedIDs))
				for _, id := range st.ApprovedIDs {
					approved[id] = true
				}
				for _, ch := range changes {
					if ch.Op == "add" && !approved[ch.Entry.ListingID] {
						return nil, model.Errf(model.ErrInvalidArgs, "listing %q is not among the approved listings", ch.Entry.ListingID)
					}
				}
				updated := *st.ViewingPlan
				for _, ch := range changes {
					updated, err = plan.Modify(updated, ch)
					if err != nil {
						return nil, err
					}
				}
				st.ViewingPlan = &updated
				st.PlanConfirmed = false
				return planResult(updated), nil
			},
		},
	}
	if deps.Calendar != nil {
		tools = append(tools, calendarTools(deps)...)
	}
	return tools
}

func planResult(p model.ViewingPlan) map[string]any {
	out := map[string]any{
		"entries":      p.Entries,
		"unused_slots": p.UnusedSlots,
	}
	if len(p.Unassigned) > 0 {
		out["unassigned"] = p.Unassigned
		out["insufficient_slots"] = true
	}
	return out
}

// resolveUserDetails prefers the details already on the conversation; the
// first valid block from a tool argument is recorded and reused afterwards.
func resolveUserDetails(st *ConversationState, args map[string]any) (model.UserDetails, error) {
	if st.UserDetails != nil {
		return *st.UserDetails, nil
	}
	raw, ok := args["user_details"]
	if !ok || raw == nil {
		return model.UserDetails{}, model.Errf(model.ErrInvalidArgs, "user_details with name and email is required")
	}
	var details model.UserDetails
	if err := model.DecodeInto(raw, &details); err != nil {
		return model.UserDetails{}, err
	}
	if err := details.Validate(); err != nil {
		return model.UserDetails{}, err
	}
	st.UserDetails = &details
	return details, nil
}

func decodePlanChanges(args map[string]any) ([]plan.Change, error) {
	var changes []plan.Change

	removeIDs, err := optionalStringSlice(args, "remove")
	if err != nil {
		return nil, err
	}
	for _, id := range removeIDs {
		changes = append(changes, plan.Change{Op: "remove", ListingID: id})
	}

	if raw, ok := args["add"]; ok && raw != nil {
		var entries []struct {
			ListingID      string         `json:"listing_id"`
			ListingAddress string         `json:"listing_address"`
			ListingURL     string         `json:"listing_url"`
			Slot           model.TimeSlot `json:"slot"`
		}
		if err := model.DecodeInto(raw, &entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			changes = append(changes, plan.Change{Op: "add", Entry: model.ViewingPlanEntry{
				ListingID:      e.ListingID,
				ListingAddress: e.ListingAddress,
				ListingURL:     e.ListingURL,
				Slot:           e.Slot,
			}})
		}
	}

	if raw, ok := args["update"]; ok && raw != nil {
		var updates []struct {
			ListingID string         `json:"listing_id"`
			NewSlot   model.TimeSlot `json:"new_slot"`
		}
		if err := model.DecodeInto(raw, &updates); err != nil {
			return nil, err
		}
		for _, u := range updates {
			changes = append(changes, plan.Change{Op: "update", ListingID: u.ListingID, Slot: u.NewSlot})
		}
	}
	return changes, nil
}

func calendarTools(deps ToolsetDeps) []Tool {
	return []Tool{
		{
			Name:        "calendar_get_available_slots",
			Description: "Get available calendar slots within the user's preferred viewing times. Call BEFORE drafting a viewing plan.",
			Parameters: map[string]Param{
				"preferred_times":       {Type: "string", Description: "Viewing preference (e.g. weekday evenings 6-8pm). Defaults to the stored preference."},
				"date_range_start":      {Type: "string", Description: "ISO datetime for range start. Defaults to tomorrow 00:00."},
				"date_range_end":        {Type: "string", Description: "ISO datetime for range end. Defaults to two weeks from today 23:59."},
				"slot_duration_minutes": {Type: "integer", Description: "Slot length in minutes. Defaults to 60."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				preferred, err := optionalString(args, "preferred_times")
				if err != nil {
					return nil, err
				}
				if strings.TrimSpace(preferred) == "" {
					preferred = st.ViewingPreference
				}
				now := deps.Now()
				rangeStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
				rangeEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location()).AddDate(0, 0, 14)
				if raw, _ := optionalString(args, "date_range_start"); strings.TrimSpace(raw) != "" {
					rangeStart, err = parseFlexibleTime(raw, now.Location())
					if err != nil {
						return nil, err
					}
				}
				if raw, _ := optionalString(args, "date_range_end"); strings.TrimSpace(raw) != "" {
					rangeEnd, err = parseFlexibleTime(raw, now.Location())
					if err != nil {
						return nil, err
					}
				}
				durMinutes, err := optionalInt(args, "slot_duration_minutes")
				if err != nil {
					return nil, err
				}
				dur := deps.SlotDuration
				if durMinutes > 0 {
					dur = time.Duration(durMinutes) * time.Minute
				}
				slots, err := deps.Calendar.AvailableSlots(ctx, preferred, rangeStart, rangeEnd, dur)
				if err != nil {
					return nil, err
				}
				st.AvailableSlots = slots
				return map[string]any{"slots": slots}, nil
			},
		},
		{
			Name:        "calendar_list_events",
			Description: "List scheduled events in the given time range. time_min and time_max are ISO datetime strings.",
			Parameters: map[string]Param{
				"time_min":    {Type: "string", Description: "ISO datetime for range start.", Required: true},
				"time_max":    {Type: "string", Description: "ISO datetime for range end.", Required: true},
				"max_results": {Type: "integer", Description: "Maximum events to return. Defaults to 50."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				minRaw, err := requiredString(args, "time_min")
				if err != nil {
					return nil, err
				}
				maxRaw, err := requiredString(args, "time_max")
				if err != nil {
					return nil, err
				}
				loc := deps.Now().Location()
				timeMin, err := parseFlexibleTime(minRaw, loc)
				if err != nil {
					return nil, err
				}
				timeMax, err := parseFlexibleTime(maxRaw, loc)
				if err != nil {
					return nil, err
				}
				maxResults, err := optionalInt(args, "max_results")
				if err != nil {
					return nil, err
				}
				events, err := deps.Calendar.ListEvents(ctx, timeMin, timeMax, maxResults)
				if err != nil {
					return nil, err
				}
				return map[string]any{"events": events}, nil
			},
		},
		{
			Name:        "calendar_create_event",
			Description: "Create a calendar hold for a viewing. Use start_datetime and end_datetime from the plan entry (ISO format, e.g. 2026-03-02T18:00:00), never the slot display string.",
			Parameters: map[string]Param{
				"summary":        {Type: "string", Description: "Event title (e.g. Rental viewing: 123 Main St).", Required: true},
				"start_datetime": {Type: "string", Description: "ISO datetime for start, from the plan entry.", Required: true},
				"end_datetime":   {Type: "string", Description: "ISO datetime for end, from the plan entry.", Required: true},
				"description":    {Type: "string", Description: "Optional description."},
				"location":       {Type: "string", Description: "Optional location."},
				"listing_id":     {Type: "string", Description: "Listing id, kept on the event for later updates."},
				"listing_url":    {Type: "string", Description: "Listing url, kept on the event for later updates."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				summary, err := requiredString(args, "summary")
				if err != nil {
					return nil, err
				}
				start, err := requiredString(args, "start_datetime")
				if err != nil {
					return nil, err
				}
				end, err := requiredString(args, "end_datetime")
				if err != nil {
					return nil, err
				}
				description, _ := optionalString(args, "description")
				location, _ := optionalString(args, "location")
				listingID, _ := optionalString(args, "listing_id")
				listingURL, _ := optionalString(args, "listing_url")

				ev := calendar.Event{
					Summary:     summary,
					Description: description,
					Location:    location,
					Start:       start,
					End:         end,
				}
				if listingID != "" || listingURL != "" {
					ev.Extended = map[string]string{}
					if listingID != "" {
						ev.Extended["listing_id"] = listingID
					}
					if listingURL != "" {
						ev.Extended["listing_url"] = listingURL
					}
				}
				created, err := deps.Calendar.CreateEvent(ctx, ev)
				if err != nil {
					return nil, err
				}
				return created, nil
			},
		},
		{
			Name:        "calendar_update_event",
			Description: "Update an existing calendar hold.",
			Parameters: map[string]Param{
				"event_id":       {Type: "string", Description: "Event id to update.", Required: true},
				"summary":        {Type: "string", Description: "New event title."},
				"start_datetime": {Type: "string", Description: "New ISO start datetime."},
				"end_datetime":   {Type: "string", Description: "New ISO end datetime."},
				"description":    {Type: "string", Description: "New description."},
				"location":       {Type: "string", Description: "New location."},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				eventID, err := requiredString(args, "event_id")
				if err != nil {
					return nil, err
				}
				var patch calendar.EventPatch
				if v, _ := optionalString(args, "summary"); v != "" {
					patch.Summary = &v
				}
				if v, _ := optionalString(args, "start_datetime"); v != "" {
					patch.Start = &v
				}
				if v, _ := optionalString(args, "end_datetime"); v != "" {
					patch.End = &v
				}
				if v, _ := optionalString(args, "description"); v != "" {
					patch.Description = &v
				}
				if v, _ := optionalString(args, "location"); v != "" {
					patch.Location = &v
				}
				updated, err := deps.Calendar.UpdateEvent(ctx, eventID, patch)
				if err != nil {
					return nil, err
				}
				return updated, nil
			},
		},
		{
			Name:        "calendar_delete_event",
			Description: "Delete a calendar hold.",
			Parameters: map[string]Param{
				"event_id": {Type: "string", Description: "Event id to delete.", Required: true},
			},
			Execute: func(ctx context.Context, st *ConversationState, args map[string]any) (any, error) {
				eventID, err := requiredString(args, "event_id")
				if err != nil {
					return nil, err
				}
				if err := deps.Calendar.DeleteEvent(ctx, eventID); err != nil {
					return nil, err
				}
				return map[string]any{"status": "deleted", "event_id": eventID}, nil
			},
		},
	}
}

// parseFlexibleTime accepts RFC3339, local ISO without offset, or a bare
// date, interpreting offset-less values in loc.
func parseFlexibleTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(slotTimeLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, model.Errf(model.ErrInvalidArgs, "unrecognized datetime %q", raw)
}

func requiredString(args map[string]any, key string) (string, error) {
	v, err := optionalString(args, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", model.Errf(model.ErrInvalidArgs, "%s is required", key)
	}
	return v, nil
}

func optionalString(args map[string]any, key string) (string, error) {
	if args == nil {
		return "", nil
	}
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", model.Errf(model.ErrInvalidArgs, "%s must be a string", key)
	}
	return s, nil
}

func optionalStringSlice(args map[string]any, key string) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]string); ok {
			return typed, nil
		}
		return nil, model.Errf(model.ErrInvalidArgs, "%s must be an array", key)
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, model.Errf(model.ErrInvalidArgs, "%s must contain strings", key)
		}
		values = append(values, s)
	}
	return values, nil
}

func optionalInt(args map[string]any, key string) (int, error) {
	if args == nil {
		return 0, nil
	}
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, model.Errf(model.ErrInvalidArgs, "%s must be a number", key)
	}
}

func optionalBool(args map[string]any, key string) (bool, error) {
	if args == nil {
		return false, nil
	}
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, model.Errf(model.ErrInvalidArgs, "%s must be a boolean", key)
	}
	return b, nil
}
