package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/user/rentagent/internal/calendar"
	"github.com/user/rentagent/internal/model"
)

type scriptedStrategy struct {
	responses []Message
}

func (s *scriptedStrategy) ProposeNextAction(ctx context.Context, system string, tools []map[string]any, history []Message) (*Message, error) {
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("strategy script exhausted")
	}
	msg := s.responses[0]
	s.responses = s.responses[1:]
	return &msg, nil
}

type fakeBackend struct {
	results [][]model.Listing
	errs    []error
	calls   int
}

func (b *fakeBackend) Search(ctx context.Context, filters model.SearchFilters) ([]model.Listing, error) {
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return nil, b.errs[i]
	}
	if i < len(b.results) {
		return b.results[i], nil
	}
	return nil, nil
}

type fakeCalendar struct {
	slots    []model.TimeSlot
	slotsErr error
	created  []calendar.Event
}

func (c *fakeCalendar) AvailableSlots(ctx context.Context, preferredTimes string, timeMin, timeMax time.Time, slotDur time.Duration) ([]model.TimeSlot, error) {
	if c.slotsErr != nil {
		return nil, c.slotsErr
	}
	return c.slots, nil
}

func (c *fakeCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]calendar.Event, error) {
	return nil, nil
}

func (c *fakeCalendar) CreateEvent(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	ev.ID = fmt.Sprintf("ev-%d", len(c.created)+1)
	c.created = append(c.created, ev)
	return ev, nil
}

func (c *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, patch calendar.EventPatch) (calendar.Event, error) {
	return calendar.Event{ID: eventID}, nil
}

func (c *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return nil
}

type memRecorder struct {
	entries []string
}

func (r *memRecorder) RecordMessage(ctx context.Context, conversationID, role, content string) error {
	r.entries = append(r.entries, role+": "+content)
	return nil
}

func toolUse(id, name string, input map[string]any) Message {
	return Message{Role: "assistant", Content: []ContentBlock{{Type: "tool_use", ID: id, Name: name, Input: input}}}
}

func drain(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func lastAsk(t *testing.T, events []StreamEvent) *Ask {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == "ask_user" && events[i].Ask != nil {
			return events[i].Ask
		}
	}
	t.Fatalf("no ask_user event in %+v", events)
	return nil
}

func hasEvent(events []StreamEvent, typ string) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func f64(v float64) *float64 { return &v }

func testListings() []model.Listing {
	return []model.Listing{
		{ID: "mls1", Title: "Two bed near the beach", URL: "https://example.com/mls1", Address: "12 Yew St",
			Price: 2800, Bedrooms: 2, Latitude: f64(49.268), Longitude: f64(-123.155)},
		{ID: "mls2", Title: "Bright corner unit", URL: "https://example.com/mls2", Address: "88 Oak St",
			Price: 3100, Bedrooms: 2, Latitude: f64(49.263), Longitude: f64(-123.128)},
	}
}

func newTestOrchestrator(t *testing.T, strat Strategy, backend *fakeBackend, cal calendar.Service, rec TranscriptRecorder) *Orchestrator {
	t.Helper()
	var calDep calendar.Service
	if cal != nil {
		calDep = cal
	}
	o, err := New(Options{
		Strategy: strat,
		Toolset: NewToolset(ToolsetDeps{
			Backend:  backend,
			Calendar: calDep,
			Now:      func() time.Time { return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) },
		}),
		Recorder: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return o
}

func TestFullFlowWithCalendar(t *testing.T) {
	backend := &fakeBackend{results: [][]model.Listing{testListings()}}
	cal := &fakeCalendar{slots: []model.TimeSlot{
		{Start: "2026-09-01T18:00:00", End: "2026-09-01T19:00:00", Display: "Tuesday Sep 1, 6:00 PM"},
		{Start: "2026-09-01T19:00:00", End: "2026-09-01T20:00:00", Display: "Tuesday Sep 1, 7:00 PM"},
	}}
	strat := &scriptedStrategy{responses: []Message{
		toolUse("t1", "rental_search", map[string]any{"filters": map[string]any{"min_bedrooms": 2, "location": "Kitsilano"}}),
		toolUse("t2", "ask_user", map[string]any{"prompt": "When are you available for viewings?", "purpose": "preference"}),
		toolUse("t3", "ask_user", map[string]any{"prompt": "Which listings should I request viewings for?", "allow_multiple": true}),
		toolUse("t4", "ask_user", map[string]any{"prompt": "What name and email should I use?", "purpose": "details"}),
		toolUse("t5", "calendar_get_available_slots", map[string]any{}),
		toolUse("t6", "draft_viewing_plan", map[string]any{}),
		toolUse("t7", "ask_user", map[string]any{"prompt": "Does this plan work for you?", "purpose": "plan"}),
		toolUse("t8", "calendar_create_event", map[string]any{
			"summary": "Rental viewing: 12 Yew St", "start_datetime": "2026-09-01T18:00:00", "end_datetime": "2026-09-01T19:00:00",
			"listing_id": "mls1", "listing_url": "https://example.com/mls1"}),
		toolUse("t9", "simulate_viewing_request", map[string]any{
			"listing_url": "https://example.com/mls1", "timeslot": "Tuesday Sep 1, 6:00 PM",
			"user_details": map[string]any{"name": "Jane Doe", "email": "jane@example.com"}}),
		textMessage("assistant", "All viewings requested. Anything else?"),
	}}
	rec := &memRecorder{}
	o := newTestOrchestrator(t, strat, backend, cal, rec)
	conv := o.NewConversation()
	ctx := context.Background()

	ch, err := o.HandleMessage(ctx, conv, "find me a 2 bed in Kitsilano")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := drain(t, ch)
	ask := lastAsk(t, events)
	if ask.Purpose != "preference" {
		t.Fatalf("first ask purpose = %q", ask.Purpose)
	}
	if conv.State.Phase != PhaseCollectingPreference {
		t.Fatalf("phase = %s", conv.State.Phase)
	}

	ch, err = o.Resume(ctx, conv, Answer{Text: "weekday evenings 6-8pm"})
	if err != nil {
		t.Fatalf("resume preference: %v", err)
	}
	events = drain(t, ch)
	ask = lastAsk(t, events)
	if ask.Purpose != "approval" || !ask.AllowMultiple {
		t.Fatalf("approval ask = %+v", ask)
	}
	// The proposal omitted choices; the orchestrator rebuilds them.
	if len(ask.Choices) != 2 || !strings.Contains(ask.Choices[0], "(id: mls1)") {
		t.Fatalf("approval choices = %v", ask.Choices)
	}
	if conv.State.ViewingPreference != "weekday evenings 6-8pm" {
		t.Fatalf("preference = %q", conv.State.ViewingPreference)
	}

	ch, err = o.Resume(ctx, conv, Answer{Selected: []string{ask.Choices[0]}})
	if err != nil {
		t.Fatalf("resume approval: %v", err)
	}
	events = drain(t, ch)
	if len(conv.State.ApprovedIDs) != 1 || conv.State.ApprovedIDs[0] != "mls1" {
		t.Fatalf("approved = %v", conv.State.ApprovedIDs)
	}
	ask = lastAsk(t, events)
	if ask.Purpose != "details" {
		t.Fatalf("details ask purpose = %q", ask.Purpose)
	}

	ch, err = o.Resume(ctx, conv, Answer{Text: "Jane Doe, jane@example.com"})
	if err != nil {
		t.Fatalf("resume details: %v", err)
	}
	events = drain(t, ch)
	ask = lastAsk(t, events)
	if ask.Purpose != "plan" {
		t.Fatalf("plan ask purpose = %q", ask.Purpose)
	}
	if len(conv.State.AvailableSlots) != 2 {
		t.Fatalf("slots = %v", conv.State.AvailableSlots)
	}
	if conv.State.ViewingPlan == nil || len(conv.State.ViewingPlan.Entries) != 1 {
		t.Fatalf("plan = %+v", conv.State.ViewingPlan)
	}
	if conv.State.PlanConfirmed {
		t.Fatalf("plan confirmed before the user answered")
	}

	ch, err = o.Resume(ctx, conv, Answer{Text: "looks good"})
	if err != nil {
		t.Fatalf("resume plan: %v", err)
	}
	events = drain(t, ch)
	if !hasEvent(events, "done") {
		t.Fatalf("no done event: %+v", events)
	}
	if conv.State.Phase != PhaseDone {
		t.Fatalf("phase = %s, want done", conv.State.Phase)
	}
	if !conv.State.PlanConfirmed || conv.State.SimulatedCount != 1 {
		t.Fatalf("confirmed=%v simulated=%d", conv.State.PlanConfirmed, conv.State.SimulatedCount)
	}
	if len(cal.created) != 1 || cal.created[0].Extended["listing_id"] != "mls1" {
		t.Fatalf("created events = %+v", cal.created)
	}
	if conv.State.UserDetails == nil || conv.State.UserDetails.Email != "jane@example.com" {
		t.Fatalf("user details = %+v", conv.State.UserDetails)
	}
	if len(rec.entries) == 0 || !strings.HasPrefix(rec.entries[0], "user:") {
		t.Fatalf("transcript = %v", rec.entries)
	}
}

func TestEmptySearchNeverReachesApproval(t *testing.T) {
	backend := &fakeBackend{results: [][]model.Listing{{}}}
	strat := &scriptedStrategy{responses: []Message{
		toolUse("t1", "rental_search", map[string]any{"filters": map[string]any{"min_bedrooms": 4, "location": "Kitsilano"}}),
		toolUse("t2", "ask_user", map[string]any{"prompt": "Which listings should I request viewings for?", "allow_multiple": true}),
		textMessage("assistant", "Nothing matched. Want to relax the filters?"),
	}}
	o := newTestOrchestrator(t, strat, backend, nil, nil)
	conv := o.NewConversation()

	ch, err := o.HandleMessage(context.Background(), conv, "4 bed in Kitsilano")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := drain(t, ch)
	if conv.State.Phase != PhaseEmptyResult {
		t.Fatalf("phase = %s, want empty_result", conv.State.Phase)
	}
	if conv.PendingAsk() != nil {
		t.Fatalf("approval ask should have been rejected")
	}
	// The rejected ask comes back to the strategy as a structured failure.
	rejected := false
	for _, ev := range events {
		if ev.Type == "tool_result" && ev.Name == "ask_user" {
			if m, ok := ev.Result.(map[string]any); ok && m["kind"] == "invalid_args" {
				rejected = true
			}
		}
	}
	if !rejected {
		t.Fatalf("no rejection result in %+v", events)
	}
}

func TestEmptyApprovalAbandons(t *testing.T) {
	strat := &scriptedStrategy{responses: []Message{
		textMessage("assistant", "Understood, no viewings requested."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, nil, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseApproving
	conv.State.Shortlist = testListings()
	conv.State.ViewingPreference = "weekends"
	conv.pendingAsk = &Ask{
		ToolUseID:     "t1",
		Prompt:        "Which listings should I request viewings for?",
		Choices:       BuildApprovalChoices(conv.State.Shortlist),
		AllowMultiple: true,
		Purpose:       "approval",
	}

	ch, err := o.Resume(context.Background(), conv, Answer{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	drain(t, ch)
	if conv.State.Phase != PhaseAbandoned {
		t.Fatalf("phase = %s, want abandoned", conv.State.Phase)
	}
	if conv.State.UserDetails != nil || conv.State.SimulatedCount != 0 {
		t.Fatalf("empty approval still collected details or simulated")
	}

	if _, err := o.HandleMessage(context.Background(), conv, "actually wait"); err == nil {
		t.Fatalf("abandoned conversation accepted a new message")
	}
}

func TestSearchFailureRetriesOnceThenAbandons(t *testing.T) {
	backendErr := model.Errf(model.ErrBackendUnavailable, "upstream 502")
	backend := &fakeBackend{errs: []error{backendErr, backendErr}}
	strat := &scriptedStrategy{responses: []Message{
		toolUse("t1", "rental_search", map[string]any{"filters": map[string]any{"min_bedrooms": 2, "location": "Kitsilano"}}),
		textMessage("assistant", "The search backend is down. Try again?"),
		toolUse("t2", "rental_search", map[string]any{"filters": map[string]any{"min_bedrooms": 2, "location": "Kitsilano"}}),
		textMessage("assistant", "Still down, sorry."),
	}}
	o := newTestOrchestrator(t, strat, backend, nil, nil)
	conv := o.NewConversation()
	ctx := context.Background()

	ch, err := o.HandleMessage(ctx, conv, "2 bed in Kitsilano")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	drain(t, ch)
	if conv.State.Phase != PhaseSearchFailed {
		t.Fatalf("phase after first failure = %s", conv.State.Phase)
	}
	if conv.State.SearchFailures != 1 {
		t.Fatalf("failures = %d", conv.State.SearchFailures)
	}

	ch, err = o.HandleMessage(ctx, conv, "yes, retry")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	drain(t, ch)
	if conv.State.Phase != PhaseAbandoned {
		t.Fatalf("phase after second failure = %s, want abandoned", conv.State.Phase)
	}
	if backend.calls != 2 {
		t.Fatalf("backend calls = %d", backend.calls)
	}
}

func TestMissingCalendarCredentialsSkipsPlanning(t *testing.T) {
	cal := &fakeCalendar{slotsErr: model.Errf(model.ErrCredentialsMissing, "no calendar token")}
	strat := &scriptedStrategy{responses: []Message{
		toolUse("t1", "calendar_get_available_slots", map[string]any{}),
		toolUse("t2", "simulate_viewing_request", map[string]any{
			"listing_url": "https://example.com/mls1", "timeslot": "Tuesday 6-8pm",
			"user_details": map[string]any{"name": "Jane Doe", "email": "jane@example.com"}}),
		textMessage("assistant", "Requested a viewing for 12 Yew St."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, cal, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseVerifyingContact
	conv.State.Shortlist = testListings()
	conv.State.ApprovedIDs = []string{"mls1"}
	conv.State.ViewingPreference = "weekday evenings"

	ch, err := o.HandleMessage(context.Background(), conv, "go ahead")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := drain(t, ch)
	if !conv.State.CalendarDisabled {
		t.Fatalf("calendar should be disabled after credentials_missing")
	}
	if conv.State.Phase != PhaseDone {
		t.Fatalf("phase = %s, want done", conv.State.Phase)
	}
	if conv.State.ViewingPlan != nil {
		t.Fatalf("planning should have been skipped")
	}
	if conv.State.SimulatedCount != 1 {
		t.Fatalf("simulated = %d", conv.State.SimulatedCount)
	}
	// Degraded, not failed: no error event reaches the user.
	if hasEvent(events, "error") {
		t.Fatalf("credentials_missing surfaced as an error: %+v", events)
	}
}

func TestPlaceholderDetailsAfterRepeatedOmission(t *testing.T) {
	simulate := func(id string) Message {
		return toolUse(id, "simulate_viewing_request", map[string]any{
			"listing_url": "https://example.com/mls1", "timeslot": "Saturday 10am"})
	}
	strat := &scriptedStrategy{responses: []Message{
		simulate("t1"),
		simulate("t2"),
		textMessage("assistant", "Viewing requested."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, nil, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseCollectingDetails
	conv.State.Shortlist = testListings()
	conv.State.ApprovedIDs = []string{"mls1"}
	conv.State.ViewingPreference = "weekend mornings"

	ch, err := o.HandleMessage(context.Background(), conv, "just send it without my info")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := drain(t, ch)
	if conv.State.UserDetails == nil {
		t.Fatalf("placeholder details were not set")
	}
	if conv.State.UserDetails.Name != "Prospective Tenant" || conv.State.UserDetails.Email != "tenant@example.invalid" {
		t.Fatalf("details = %+v", conv.State.UserDetails)
	}
	if conv.State.SimulatedCount != 1 {
		t.Fatalf("simulated = %d", conv.State.SimulatedCount)
	}
	found := false
	for _, ev := range events {
		if ev.Type == "tool_result" && ev.Name == "simulate_viewing_request" {
			if r, ok := ev.Result.(model.ViewingRequestReceipt); ok && strings.Contains(r.Summary, "Prospective Tenant") {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("no placeholder receipt in %+v", events)
	}
}

func TestSimulateReceiptFormat(t *testing.T) {
	ts := NewToolset(ToolsetDeps{Backend: &fakeBackend{}})
	st := &ConversationState{
		Phase:       PhaseVerifyingContact,
		UserDetails: &model.UserDetails{Name: "Jane Doe", Email: "jane@example.com"},
	}
	result, err := ts.Execute(context.Background(), st, "simulate_viewing_request", map[string]any{
		"listing_url": "https://example.com/mls1",
		"timeslot":    "Tuesday 6-8pm",
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	receipt, ok := result.(model.ViewingRequestReceipt)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	want := "Viewing request [simulated] for https://example.com/mls1 at Tuesday 6-8pm. Contact: Jane Doe, jane@example.com."
	if receipt.Summary != want {
		t.Fatalf("summary = %q", receipt.Summary)
	}
	if !strings.HasPrefix(receipt.ContactURL, "mailto:?subject=") {
		t.Fatalf("contact url = %q", receipt.ContactURL)
	}
}

func TestModifyPlanClearsConfirmation(t *testing.T) {
	ts := NewToolset(ToolsetDeps{Backend: &fakeBackend{}})
	st := &ConversationState{
		Phase:     PhasePlanning,
		Shortlist: testListings(),
		ViewingPlan: &model.ViewingPlan{
			Entries: []model.ViewingPlanEntry{{
				ListingID: "mls1", ListingAddress: "12 Yew St", ListingURL: "https://example.com/mls1",
				Slot: model.TimeSlot{Start: "2026-09-01T18:00:00", End: "2026-09-01T19:00:00"},
			}},
		},
		PlanConfirmed: true,
	}
	_, err := ts.Execute(context.Background(), st, "modify_viewing_plan", map[string]any{"remove": []any{"mls1"}})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if st.PlanConfirmed {
		t.Fatalf("modification left the plan confirmed")
	}
	if len(st.ViewingPlan.Entries) != 0 || len(st.ViewingPlan.UnusedSlots) != 1 {
		t.Fatalf("plan = %+v", st.ViewingPlan)
	}
}

func TestModifyPlanRejectsUnapprovedAdd(t *testing.T) {
	ts := NewToolset(ToolsetDeps{Backend: &fakeBackend{}})
	st := &ConversationState{
		Phase:       PhasePlanning,
		Shortlist:   testListings(),
		ApprovedIDs: []string{"mls1"},
		ViewingPlan: &model.ViewingPlan{
			Entries: []model.ViewingPlanEntry{{
				ListingID: "mls1", ListingAddress: "12 Yew St", ListingURL: "https://example.com/mls1",
				Slot: model.TimeSlot{Start: "2026-09-01T18:00:00", End: "2026-09-01T19:00:00"},
			}},
			UnusedSlots: []model.TimeSlot{{Start: "2026-09-01T19:00:00", End: "2026-09-01T20:00:00"}},
		},
		PlanConfirmed: true,
	}
	_, err := ts.Execute(context.Background(), st, "modify_viewing_plan", map[string]any{
		"add": []any{map[string]any{
			"listing_id": "mls9", "listing_address": "1 Elm St", "listing_url": "https://example.com/mls9",
			"slot": map[string]any{"start": "2026-09-01T19:00:00", "end": "2026-09-01T20:00:00"},
		}},
	})
	if model.KindOf(err) != model.ErrInvalidArgs {
		t.Fatalf("err = %v, want invalid_args", err)
	}
	if len(st.ViewingPlan.Entries) != 1 || st.ViewingPlan.Entries[0].ListingID != "mls1" {
		t.Fatalf("rejected add still changed the plan: %+v", st.ViewingPlan)
	}
	if !st.PlanConfirmed {
		t.Fatalf("rejected add cleared the confirmation")
	}
}

func TestCalendarEventRequiresContactDetails(t *testing.T) {
	cal := &fakeCalendar{}
	strat := &scriptedStrategy{responses: []Message{
		toolUse("t1", "calendar_create_event", map[string]any{
			"summary": "Rental viewing: 12 Yew St", "start_datetime": "2026-09-01T18:00:00",
			"end_datetime": "2026-09-01T19:00:00", "listing_id": "mls1"}),
		textMessage("assistant", "I still need your name and email first."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, cal, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhasePlanning
	conv.State.Shortlist = testListings()
	conv.State.ApprovedIDs = []string{"mls1"}
	conv.State.ViewingPreference = "weekday evenings"
	conv.State.PlanConfirmed = true

	ch, err := o.HandleMessage(context.Background(), conv, "book it")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	events := drain(t, ch)
	if len(cal.created) != 0 {
		t.Fatalf("event created without contact details: %+v", cal.created)
	}
	rejected := false
	for _, ev := range events {
		if ev.Type == "tool_result" && ev.Name == "calendar_create_event" {
			if m, ok := ev.Result.(map[string]any); ok && m["kind"] == "invalid_args" {
				rejected = true
			}
		}
	}
	if !rejected {
		t.Fatalf("no rejection result in %+v", events)
	}
}

func TestDetailsAnswerCapturesContact(t *testing.T) {
	strat := &scriptedStrategy{responses: []Message{
		textMessage("assistant", "Got it, thanks."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, nil, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseCollectingDetails
	conv.State.Shortlist = testListings()
	conv.State.ApprovedIDs = []string{"mls1"}
	conv.State.ViewingPreference = "weekday evenings"
	conv.pendingAsk = &Ask{ToolUseID: "t1", Prompt: "What name and email should I use?", Purpose: "details"}

	ch, err := o.Resume(context.Background(), conv, Answer{Text: "Jane Doe, jane@example.com, 604-555-0101"})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	drain(t, ch)
	d := conv.State.UserDetails
	if d == nil {
		t.Fatalf("details were not captured")
	}
	if d.Name != "Jane Doe" || d.Email != "jane@example.com" || d.Phone != "604-555-0101" {
		t.Fatalf("details = %+v", d)
	}
	if conv.State.Phase != PhaseVerifyingContact {
		t.Fatalf("phase = %s, want verifying_contact", conv.State.Phase)
	}
}

func TestDetailsAnswerFallsBackToPlaceholders(t *testing.T) {
	strat := &scriptedStrategy{responses: []Message{
		textMessage("assistant", "I'll proceed with placeholder contact details."),
	}}
	o := newTestOrchestrator(t, strat, &fakeBackend{}, nil, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseCollectingDetails
	conv.State.Shortlist = testListings()
	conv.State.ApprovedIDs = []string{"mls1"}
	conv.State.ViewingPreference = "weekday evenings"
	conv.pendingAsk = &Ask{ToolUseID: "t1", Prompt: "What name and email should I use?", Purpose: "details"}

	ch, err := o.Resume(context.Background(), conv, Answer{Text: "rather not say"})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	events := drain(t, ch)
	if !hasEvent(events, "error") || conv.PendingAsk() == nil {
		t.Fatalf("first bad answer should re-prompt: %+v", events)
	}
	if conv.State.UserDetails != nil || conv.State.Phase != PhaseCollectingDetails {
		t.Fatalf("state moved on a rejected answer: %+v", conv.State)
	}

	ch, err = o.Resume(context.Background(), conv, Answer{Text: "still no"})
	if err != nil {
		t.Fatalf("resume again: %v", err)
	}
	drain(t, ch)
	d := conv.State.UserDetails
	if d == nil || d.Name != "Prospective Tenant" || d.Email != "tenant@example.invalid" {
		t.Fatalf("details = %+v", d)
	}
	if conv.State.Phase != PhaseVerifyingContact {
		t.Fatalf("phase = %s, want verifying_contact", conv.State.Phase)
	}
}

func TestParseContactDetails(t *testing.T) {
	cases := []struct {
		in                 string
		name, email, phone string
		ok                 bool
	}{
		{"Jane Doe, jane@example.com", "Jane Doe", "jane@example.com", "", true},
		{"Jane Doe jane@example.com 604-555-0101", "Jane Doe", "jane@example.com", "604-555-0101", true},
		{"jane@example.com", "", "", "", false},
		{"Jane Doe", "", "", "", false},
		{"rather not say", "", "", "", false},
	}
	for _, tc := range cases {
		got, err := parseContactDetails(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("parseContactDetails(%q) err = %v", tc.in, err)
			continue
		}
		if !tc.ok {
			continue
		}
		if got.Name != tc.name || got.Email != tc.email || got.Phone != tc.phone {
			t.Errorf("parseContactDetails(%q) = %+v", tc.in, got)
		}
	}
}

func TestCalendarlessToolsetOmitsCalendarTools(t *testing.T) {
	ts := NewToolset(ToolsetDeps{Backend: &fakeBackend{}})
	if ts.Has("calendar_get_available_slots") {
		t.Fatalf("calendar tools present without a calendar service")
	}
	for _, name := range []string{"rental_search", "filter_listings", "summarize_listings", "simulate_viewing_request", "draft_viewing_plan", "ask_user"} {
		if !ts.Has(name) {
			t.Fatalf("missing tool %s", name)
		}
	}
}

func TestAnswerWhileMultiSelectPendingIsRejected(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedStrategy{}, &fakeBackend{}, nil, nil)
	conv := o.NewConversation()
	conv.State.Phase = PhaseApproving
	conv.State.Shortlist = testListings()
	conv.pendingAsk = &Ask{ToolUseID: "t1", Prompt: "Pick listings", AllowMultiple: true, Purpose: "approval",
		Choices: BuildApprovalChoices(conv.State.Shortlist)}

	if _, err := o.HandleMessage(context.Background(), conv, "the first one"); err == nil {
		t.Fatalf("free text accepted while a multi-select ask is pending")
	}
}
