package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/rentagent/internal/model"
)

const defaultMaxToolRounds = 16

// Placeholder contact values used when the user declines to provide details
// after one re-prompt.
const (
	placeholderName  = "Prospective Tenant"
	placeholderEmail = "tenant@example.invalid"
)

// StreamEvent is one item on a turn's event stream.
type StreamEvent struct {
	Type   string         `json:"type"` // token, tool_call, tool_result, ask_user, done, error
	Text   string         `json:"text,omitempty"`
	Name   string         `json:"name,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`
	Ask    *Ask           `json:"ask,omitempty"`
	Phase  Phase          `json:"phase,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Ask is a suspended ask_user call waiting for the human.
type Ask struct {
	ToolUseID     string   `json:"tool_use_id"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices,omitempty"`
	AllowMultiple bool     `json:"allow_multiple"`
	Purpose       string   `json:"purpose"`
}

// Answer resumes a suspended ask. Selected is used for multi-select asks,
// Text for everything else.
type Answer struct {
	Text     string   `json:"text,omitempty"`
	Selected []string `json:"selected,omitempty"`
}

// TranscriptRecorder persists conversation turns. The orchestrator treats
// recording as best effort.
type TranscriptRecorder interface {
	RecordMessage(ctx context.Context, conversationID, role, content string) error
}

type Options struct {
	Strategy Strategy
	Toolset  *Toolset
	Recorder TranscriptRecorder
	Logger   *slog.Logger

	Now           func() time.Time
	MaxToolRounds int
}

// Orchestrator drives conversations: it runs the strategy loop, gates every
// proposed tool call against the phase state machine, folds results back
// into state and suspends at ask_user boundaries.
type Orchestrator struct {
	strategy Strategy
	toolset  *Toolset
	recorder TranscriptRecorder
	log      *slog.Logger

	now           func() time.Time
	maxToolRounds int
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Strategy == nil {
		return nil, fmt.Errorf("a strategy is required")
	}
	if opts.Toolset == nil {
		return nil, fmt.Errorf("a toolset is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxRounds := opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	return &Orchestrator{
		strategy:      opts.Strategy,
		toolset:       opts.Toolset,
		recorder:      opts.Recorder,
		log:           log,
		now:           now,
		maxToolRounds: maxRounds,
	}, nil
}

// Conversation owns one user session. All access is serialized: one turn
// completes before the next begins.
type Conversation struct {
	ID    string
	State *ConversationState

	mu         sync.Mutex
	history    []Message
	pendingAsk *Ask
}

func (o *Orchestrator) NewConversation() *Conversation {
	return &Conversation{
		ID:    uuid.NewString(),
		State: NewConversationState(),
	}
}

// PendingAsk returns the ask the conversation is suspended on, if any.
func (c *Conversation) PendingAsk() *Ask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingAsk
}

// HandleMessage processes one user turn and streams events until the turn
// completes or suspends at an ask. A message arriving while a single-answer
// ask is pending is treated as the answer.
func (o *Orchestrator) HandleMessage(ctx context.Context, conv *Conversation, text string) (<-chan StreamEvent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message is required")
	}
	conv.mu.Lock()
	if conv.pendingAsk != nil && !conv.pendingAsk.AllowMultiple {
		conv.mu.Unlock()
		return o.Resume(ctx, conv, Answer{Text: text})
	}
	if conv.pendingAsk != nil {
		conv.mu.Unlock()
		return nil, fmt.Errorf("conversation is waiting for a selection")
	}
	if conv.State.Phase.Terminal() {
		conv.mu.Unlock()
		return nil, fmt.Errorf("conversation has ended (%s); start a new one", conv.State.Phase)
	}
	if conv.State.Phase == PhaseStart {
		_ = conv.State.Transition(PhaseParsing)
	}
	conv.history = append(conv.history, textMessage("user", text))
	o.record(ctx, conv.ID, "user", text)

	ch := make(chan StreamEvent, 32)
	go func() {
		defer close(ch)
		defer conv.mu.Unlock()
		o.run(ctx, conv, ch)
	}()
	return ch, nil
}

// Resume continues a conversation suspended at an ask_user call.
func (o *Orchestrator) Resume(ctx context.Context, conv *Conversation, ans Answer) (<-chan StreamEvent, error) {
	conv.mu.Lock()
	ask := conv.pendingAsk
	if ask == nil {
		conv.mu.Unlock()
		return nil, fmt.Errorf("conversation is not waiting for an answer")
	}

	ch := make(chan StreamEvent, 32)

	// An empty single answer is "no answer given": re-prompt, keep waiting.
	if !ask.AllowMultiple && strings.TrimSpace(ans.Text) == "" {
		go func() {
			defer close(ch)
			defer conv.mu.Unlock()
			ch <- StreamEvent{Type: "ask_user", Ask: ask, Phase: conv.State.Phase}
		}()
		return ch, nil
	}

	result, err := o.foldAnswer(conv, ask, ans)
	if err != nil {
		// Unusable answer (unmappable selection, bad contact details):
		// re-prompt with the same ask.
		go func() {
			defer close(ch)
			defer conv.mu.Unlock()
			ch <- StreamEvent{Type: "error", Error: err.Error(), Phase: conv.State.Phase}
			ch <- StreamEvent{Type: "ask_user", Ask: ask, Phase: conv.State.Phase}
		}()
		return ch, nil
	}

	conv.pendingAsk = nil
	conv.history = append(conv.history, toolResultMessage(ask.ToolUseID, result))
	o.record(ctx, conv.ID, "user", answerTranscript(ask, ans))

	go func() {
		defer close(ch)
		defer conv.mu.Unlock()
		ch <- StreamEvent{Type: "tool_result", Name: "ask_user", Result: result, Phase: conv.State.Phase}
		o.run(ctx, conv, ch)
	}()
	return ch, nil
}

// Abandon ends the conversation on user request.
func (o *Orchestrator) Abandon(conv *Conversation) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.pendingAsk = nil
	if !conv.State.Phase.Terminal() {
		conv.State.Phase = PhaseAbandoned
	}
}

func (o *Orchestrator) record(ctx context.Context, conversationID, role, content string) {
	if o.recorder == nil || strings.TrimSpace(content) == "" {
		return
	}
	if err := o.recorder.RecordMessage(ctx, conversationID, role, content); err != nil {
		o.log.Warn("transcript record failed", "conversation", conversationID, "error", err)
	}
}

func answerTranscript(ask *Ask, ans Answer) string {
	if ask.AllowMultiple {
		return "[selected] " + strings.Join(ans.Selected, "; ")
	}
	return ans.Text
}

// run drives strategy rounds until the turn yields a final message, suspends
// at an ask, or hits the round cap. Caller holds the conversation lock.
func (o *Orchestrator) run(ctx context.Context, conv *Conversation, ch chan<- StreamEvent) {
	st := conv.State
	finalTexts := make([]string, 0, 4)

	for round := 0; round < o.maxToolRounds; round++ {
		msg, err := o.strategy.ProposeNextAction(ctx, BuildSystemPrompt(o.now(), o.calendarEnabled(st)), o.toolset.JSONSchemas(), conv.history)
		if err != nil {
			ch <- StreamEvent{Type: "error", Error: err.Error(), Phase: st.Phase}
			return
		}
		conv.history = append(conv.history, *msg)

		toolUsed := false
		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				text := strings.TrimSpace(block.Text)
				if text != "" {
					finalTexts = append(finalTexts, text)
					ch <- StreamEvent{Type: "token", Text: text, Phase: st.Phase}
				}
			case "tool_use":
				toolUsed = true
				ch <- StreamEvent{Type: "tool_call", Name: block.Name, Args: block.Input, Phase: st.Phase}

				if block.Name == "ask_user" {
					ask, gateErr := o.prepareAsk(st, block)
					if gateErr != nil {
						o.feedToolError(conv, ch, block, gateErr)
						continue
					}
					conv.pendingAsk = ask
					ch <- StreamEvent{Type: "ask_user", Ask: ask, Phase: st.Phase}
					return
				}

				if gateErr := o.gate(st, block.Name, block.Input); gateErr != nil {
					o.feedToolError(conv, ch, block, gateErr)
					continue
				}

				result, execErr := o.toolset.Execute(ctx, st, block.Name, block.Input)
				result, execErr = o.fold(ctx, st, block, result, execErr)
				if execErr != nil {
					o.feedToolError(conv, ch, block, execErr)
					continue
				}
				ch <- StreamEvent{Type: "tool_result", Name: block.Name, Result: result, Phase: st.Phase}
				conv.history = append(conv.history, toolResultMessage(block.ID, result))
			}
		}

		if !toolUsed {
			if st.Phase == PhaseSimulating && st.SimulatedCount > 0 {
				_ = st.Transition(PhaseDone)
			}
			final := strings.TrimSpace(strings.Join(finalTexts, "\n"))
			o.record(ctx, conv.ID, "assistant", final)
			ch <- StreamEvent{Type: "done", Phase: st.Phase}
			return
		}
	}
	ch <- StreamEvent{Type: "error", Error: "max tool call rounds reached", Phase: st.Phase}
}

// feedToolError returns a structured failure to the strategy so it can
// correct course; the turn continues.
func (o *Orchestrator) feedToolError(conv *Conversation, ch chan<- StreamEvent, block ContentBlock, err error) {
	kind := model.KindOf(err)
	if kind == "" {
		kind = "error"
	}
	result := map[string]any{"error": err.Error(), "kind": string(kind)}
	o.log.Debug("tool call rejected", "tool", block.Name, "kind", kind, "error", err)
	ch <- StreamEvent{Type: "tool_result", Name: block.Name, Result: result, Phase: conv.State.Phase}
	conv.history = append(conv.history, toolResultMessage(block.ID, result))
}

func (o *Orchestrator) calendarEnabled(st *ConversationState) bool {
	return o.toolset.Has("calendar_get_available_slots") && !st.CalendarDisabled
}

// prepareAsk validates an ask_user proposal against the flow, repairs the
// approval choices when needed, and moves the phase to the ask's position.
func (o *Orchestrator) prepareAsk(st *ConversationState, block ContentBlock) (*Ask, error) {
	if st.Phase.Terminal() {
		return nil, model.Errf(model.ErrInvalidArgs, "conversation has ended")
	}
	prompt, err := requiredString(block.Input, "prompt")
	if err != nil {
		return nil, err
	}
	choices, err := optionalStringSlice(block.Input, "choices")
	if err != nil {
		return nil, err
	}
	allowMultiple, err := optionalBool(block.Input, "allow_multiple")
	if err != nil {
		return nil, err
	}
	purpose, _ := optionalString(block.Input, "purpose")
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	if allowMultiple {
		purpose = "approval"
	}
	if purpose == "" {
		purpose = inferAskPurpose(st)
	}

	switch purpose {
	case "approval":
		if len(st.Shortlist) == 0 || st.Phase == PhaseEmptyResult {
			return nil, model.Errf(model.ErrInvalidArgs, "cannot ask for approval without search results")
		}
		if strings.TrimSpace(st.ViewingPreference) == "" {
			return nil, model.Errf(model.ErrInvalidArgs, "collect the viewing time preference before approval")
		}
		if err := st.advanceTo(PhaseApproving); err != nil {
			return nil, model.Errf(model.ErrInvalidArgs, "approval is out of order: %v", err)
		}
		// Selections must map back to listings; rebuild the choices when
		// the proposal omitted or mangled them.
		if len(SelectedToListings(choices, st.Shortlist)) != len(st.Shortlist) {
			choices = BuildApprovalChoices(st.Shortlist)
		}
		allowMultiple = true
	case "preference":
		if st.Phase == PhaseParsing {
			purpose = "clarify"
			break
		}
		if err := st.advanceTo(PhaseCollectingPreference); err != nil {
			return nil, model.Errf(model.ErrInvalidArgs, "preference collection is out of order: %v", err)
		}
	case "details":
		if st.Phase != PhaseCollectingDetails && st.Phase != PhaseVerifyingContact {
			return nil, model.Errf(model.ErrInvalidArgs, "contact details are collected only after approval")
		}
	case "plan":
		if st.Phase != PhasePlanning || st.ViewingPlan == nil {
			return nil, model.Errf(model.ErrInvalidArgs, "there is no viewing plan to confirm")
		}
	case "clarify":
		// No phase movement; clarifications are valid wherever they arise.
	default:
		return nil, model.Errf(model.ErrInvalidArgs, "unknown ask purpose %q", purpose)
	}

	return &Ask{
		ToolUseID:     block.ID,
		Prompt:        prompt,
		Choices:       choices,
		AllowMultiple: allowMultiple,
		Purpose:       purpose,
	}, nil
}

func inferAskPurpose(st *ConversationState) string {
	switch st.Phase {
	case PhasePresenting, PhaseCollectingPreference:
		if strings.TrimSpace(st.ViewingPreference) == "" {
			return "preference"
		}
		return "clarify"
	case PhaseCollectingDetails:
		return "details"
	case PhasePlanning:
		return "plan"
	default:
		return "clarify"
	}
}

// foldAnswer applies a human answer to the state and builds the tool result
// handed back to the strategy.
func (o *Orchestrator) foldAnswer(conv *Conversation, ask *Ask, ans Answer) (any, error) {
	st := conv.State
	switch ask.Purpose {
	case "approval":
		if len(ans.Selected) == 0 {
			// No listings chosen: the flow ends here, with no contact
			// collection and no simulations.
			_ = st.Transition(PhaseAbandoned)
			return map[string]any{
				"selected": []string{},
				"note":     "No viewings requested.",
			}, nil
		}
		approved := SelectedToListings(ans.Selected, st.Shortlist)
		if len(approved) == 0 {
			return nil, model.Errf(model.ErrInvalidArgs, "selection did not match any listing")
		}
		ids := make([]string, 0, len(approved))
		for _, l := range approved {
			ids = append(ids, l.ID)
		}
		st.ApprovedIDs = ids
		_ = st.Transition(PhaseCollectingDetails)
		return map[string]any{
			"selected":             ans.Selected,
			"approved_listing_ids": ids,
		}, nil

	case "preference":
		// The phase stays put; the approval ask moves it forward.
		st.ViewingPreference = strings.TrimSpace(ans.Text)
		return map[string]any{"answer": ans.Text}, nil

	case "plan":
		// Any answer confirms; requested changes come back through
		// modify_viewing_plan, which clears the confirmation again.
		st.PlanConfirmed = true
		return map[string]any{"answer": ans.Text}, nil

	case "details":
		details, err := parseContactDetails(ans.Text)
		if err != nil {
			st.DetailAttempts++
			if st.DetailAttempts < 2 {
				return nil, err
			}
			// One re-prompt has already happened; continue with explicit
			// placeholders rather than looping.
			details = model.UserDetails{Name: placeholderName, Email: placeholderEmail}
		}
		st.UserDetails = &details
		if st.Phase == PhaseCollectingDetails {
			_ = st.Transition(PhaseVerifyingContact)
		}
		return map[string]any{"answer": ans.Text, "user_details": details}, nil

	default: // clarify
		return map[string]any{"answer": ans.Text}, nil
	}
}

// parseContactDetails pulls a name, an email and an optional phone number
// out of a free-text details answer. The answer must carry a well-formed
// email and at least one name word to be accepted.
func parseContactDetails(text string) (model.UserDetails, error) {
	var details model.UserDetails
	var nameParts []string
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		token := strings.Trim(f, ".,;:<>()")
		switch {
		case token == "":
		case strings.Contains(token, "@") && details.Email == "":
			details.Email = token
		case looksLikePhone(token) && details.Phone == "":
			details.Phone = token
		default:
			nameParts = append(nameParts, token)
		}
	}
	details.Name = strings.Join(nameParts, " ")
	if err := details.Validate(); err != nil {
		return model.UserDetails{}, err
	}
	return details, nil
}

func looksLikePhone(token string) bool {
	digits := 0
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7
}

// gate enforces step ordering for non-ask tools before execution.
func (o *Orchestrator) gate(st *ConversationState, name string, args map[string]any) error {
	if st.Phase.Terminal() {
		return model.Errf(model.ErrInvalidArgs, "conversation has ended")
	}
	switch name {
	case "rental_search":
		switch st.Phase {
		case PhaseParsing, PhaseSearchFailed:
		case PhaseEmptyResult, PhasePresenting:
			_ = st.Transition(PhaseParsing)
		default:
			return model.Errf(model.ErrInvalidArgs, "a new search is not allowed during %s", st.Phase)
		}
	case "filter_listings":
		if st.Phase != PhasePresenting {
			return model.Errf(model.ErrInvalidArgs, "filtering needs a presented shortlist")
		}
	case "summarize_listings":
		// No ordering constraint; an empty shortlist summarizes to zeros.
	case "simulate_viewing_request":
		if len(st.ApprovedIDs) == 0 {
			return model.Errf(model.ErrInvalidArgs, "no approved listings; run the approval step first")
		}
		if strings.TrimSpace(st.ViewingPreference) == "" {
			return model.Errf(model.ErrInvalidArgs, "viewing preference is not set")
		}
		switch st.Phase {
		case PhaseCollectingDetails, PhaseVerifyingContact, PhaseSimulating:
		case PhasePlanning:
			if !st.PlanConfirmed {
				return model.Errf(model.ErrInvalidArgs, "confirm the viewing plan before requesting viewings")
			}
		default:
			return model.Errf(model.ErrInvalidArgs, "viewing requests are out of order during %s", st.Phase)
		}
	case "calendar_get_available_slots":
		if st.CalendarDisabled {
			return model.Errf(model.ErrCredentialsMissing, "calendar is not configured; proceed without scheduling")
		}
		if strings.TrimSpace(st.ViewingPreference) == "" {
			return model.Errf(model.ErrInvalidArgs, "viewing preference is not set")
		}
		if st.Phase != PhaseVerifyingContact && st.Phase != PhasePlanning {
			return model.Errf(model.ErrInvalidArgs, "calendar slots are fetched after contact details are verified")
		}
	case "draft_viewing_plan", "modify_viewing_plan":
		if st.Phase != PhasePlanning {
			return model.Errf(model.ErrInvalidArgs, "%s requires the planning step", name)
		}
	case "calendar_create_event":
		if st.CalendarDisabled {
			return model.Errf(model.ErrCredentialsMissing, "calendar is not configured; proceed without scheduling")
		}
		if st.UserDetails == nil {
			return model.Errf(model.ErrInvalidArgs, "contact details are required before creating events")
		}
		if !st.PlanConfirmed {
			return model.Errf(model.ErrInvalidArgs, "confirm the viewing plan before creating events")
		}
		if st.Phase != PhasePlanning && st.Phase != PhaseSimulating {
			return model.Errf(model.ErrInvalidArgs, "event creation is out of order during %s", st.Phase)
		}
	case "calendar_update_event", "calendar_delete_event", "calendar_list_events":
		if st.CalendarDisabled {
			return model.Errf(model.ErrCredentialsMissing, "calendar is not configured")
		}
	}
	return nil
}

// fold applies a tool outcome to the state. It may rewrite the result (for
// degraded paths) or retry once (placeholder contact details).
func (o *Orchestrator) fold(ctx context.Context, st *ConversationState, block ContentBlock, result any, execErr error) (any, error) {
	switch block.Name {
	case "rental_search":
		return o.foldSearch(st, result, execErr)

	case "filter_listings":
		if execErr != nil {
			return nil, execErr
		}
		res, ok := result.(model.SearchResult)
		if ok {
			st.Shortlist = res.Listings
		}
		_ = st.Transition(PhasePresenting)
		return result, nil

	case "simulate_viewing_request":
		if execErr != nil {
			if model.KindOf(execErr) == model.ErrInvalidArgs && st.UserDetails == nil {
				st.DetailAttempts++
				if st.DetailAttempts >= 2 {
					// One re-prompt has already happened; proceed with
					// explicit placeholders rather than looping.
					st.UserDetails = &model.UserDetails{Name: placeholderName, Email: placeholderEmail}
					retried, retryErr := o.toolset.Execute(ctx, st, block.Name, block.Input)
					if retryErr != nil {
						return nil, retryErr
					}
					execErr = nil
					result = retried
				} else {
					return nil, execErr
				}
			} else {
				st.SimulatedFailures++
				return nil, execErr
			}
		}
		st.SimulatedCount++
		_ = st.advanceTo(PhaseSimulating)
		return result, nil

	case "calendar_get_available_slots":
		if execErr != nil {
			return nil, o.foldCalendarFailure(st, execErr)
		}
		st.CalendarFailures = 0
		_ = st.advanceTo(PhasePlanning)
		return result, nil

	case "calendar_create_event", "calendar_update_event", "calendar_delete_event", "calendar_list_events":
		if execErr != nil {
			return nil, o.foldCalendarFailure(st, execErr)
		}
		st.CalendarFailures = 0
		return result, nil

	default:
		return result, execErr
	}
}

func (o *Orchestrator) foldSearch(st *ConversationState, result any, execErr error) (any, error) {
	if execErr != nil {
		switch model.KindOf(execErr) {
		case model.ErrInvalidFilters, model.ErrInvalidArgs:
			// Stay where we are; the strategy corrects the filters.
			return nil, execErr
		case model.ErrBackendUnavailable:
			st.SearchFailures++
			_ = st.Transition(PhaseSearching)
			if st.SearchFailures >= 2 {
				st.Phase = PhaseAbandoned
				return nil, model.Errf(model.ErrBackendUnavailable,
					"the search backend failed twice; tell the user the search is unavailable and that the conversation has ended")
			}
			_ = st.Transition(PhaseSearchFailed)
			return nil, model.Errf(model.ErrBackendUnavailable,
				"the rental search is temporarily unavailable; offer the user exactly one retry")
		default:
			return nil, execErr
		}
	}
	res, ok := result.(model.SearchResult)
	if !ok {
		return nil, fmt.Errorf("unexpected rental_search result type %T", result)
	}
	st.SearchFailures = 0
	st.Shortlist = res.Listings
	_ = st.Transition(PhaseSearching)
	if len(res.Listings) == 0 {
		_ = st.Transition(PhaseEmptyResult)
		return map[string]any{
			"listings":    []model.Listing{},
			"total_count": 0,
			"note":        "no listings matched; suggest relaxing filters, do not run the approval step",
		}, nil
	}
	_ = st.Transition(PhasePresenting)
	return res, nil
}

// foldCalendarFailure implements the degrade and retry policies for the
// calendar collaborator.
func (o *Orchestrator) foldCalendarFailure(st *ConversationState, execErr error) error {
	switch model.KindOf(execErr) {
	case model.ErrCredentialsMissing:
		// Silent degrade: skip planning, no user-facing error.
		st.CalendarDisabled = true
		if st.Phase == PhaseVerifyingContact || st.Phase == PhasePlanning {
			_ = st.advanceTo(PhaseSimulating)
		}
		return model.Errf(model.ErrCredentialsMissing,
			"calendar is not configured; proceed to viewing requests without scheduling and do not surface this as an error")
	case model.ErrBackendUnavailable:
		st.CalendarFailures++
		if st.CalendarFailures >= 2 {
			st.CalendarDisabled = true
			if st.Phase == PhaseVerifyingContact || st.Phase == PhasePlanning {
				_ = st.advanceTo(PhaseSimulating)
			}
			return model.Errf(model.ErrBackendUnavailable,
				"the calendar failed twice; proceed to viewing requests without scheduling")
		}
		return model.Errf(model.ErrBackendUnavailable,
			"the calendar is temporarily unavailable; offer the user exactly one retry")
	default:
		return execErr
	}
}
