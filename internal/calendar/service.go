package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/user/rentagent/internal/model"
)

// Event is a scheduled viewing hold on the agent calendar.
type Event struct {
	ID          string            `json:"id,omitempty"`
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Location    string            `json:"location,omitempty"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Extended    map[string]string `json:"extended,omitempty"`
}

// EventPatch carries the fields to change on an existing event. Nil fields
// are left untouched.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *string
	End         *string
}

// Service is the scheduling boundary the orchestrator talks to.
type Service interface {
	AvailableSlots(ctx context.Context, preferredTimes string, timeMin, timeMax time.Time, slotDur time.Duration) ([]model.TimeSlot, error)
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error)
	CreateEvent(ctx context.Context, ev Event) (Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

const agentCalendarName = "Realtor Agent"

// GoogleClient talks to the Calendar v3 REST API with a pre-issued OAuth
// token. Events live on a dedicated "Realtor Agent" calendar so viewing holds
// never touch the user's primary calendar.
type GoogleClient struct {
	BaseURL    string
	TokenPath  string
	TimeZone   *time.Location
	HTTPClient *http.Client

	mu         sync.Mutex
	calendarID string
}

// NewGoogleClient builds a client with the public API endpoint and a 30s
// request timeout.
func NewGoogleClient(tokenPath string, tz *time.Location) *GoogleClient {
	if tz == nil {
		tz = time.Local
	}
	return &GoogleClient{
		BaseURL:    "https://www.googleapis.com/calendar/v3",
		TokenPath:  tokenPath,
		TimeZone:   tz,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GoogleClient) token() (string, error) {
	if tok := os.Getenv("GOOGLE_CALENDAR_TOKEN"); tok != "" {
		return tok, nil
	}
	raw, err := os.ReadFile(c.TokenPath)
	if err != nil {
		return "", model.Errf(model.ErrCredentialsMissing,
			"calendar token not found at %s", c.TokenPath)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", model.Errf(model.ErrCredentialsMissing,
			"calendar token at %s is not valid JSON", c.TokenPath)
	}
	if tok.AccessToken == "" {
		tok.AccessToken = tok.Token
	}
	if tok.AccessToken == "" {
		return "", model.Errf(model.ErrCredentialsMissing,
			"calendar token at %s has no access token", c.TokenPath)
	}
	return tok.AccessToken, nil
}

// doJSON issues an authenticated request and decodes the response into out.
func (c *GoogleClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode calendar request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return model.Errf(model.ErrBackendUnavailable, "calendar request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return model.Errf(model.ErrCredentialsMissing,
			"calendar rejected credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Errf(model.ErrBackendUnavailable,
			"calendar returned status %d: %s", resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.Errf(model.ErrBackendUnavailable, "decode calendar response: %v", err)
	}
	return nil
}

// agentCalendarID resolves the dedicated calendar, creating it on first use.
func (c *GoogleClient) agentCalendarID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calendarID != "" {
		return c.calendarID, nil
	}
	pageToken := ""
	for {
		q := url.Values{}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var list struct {
			Items []struct {
				ID      string `json:"id"`
				Summary string `json:"summary"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/users/me/calendarList", q, nil, &list); err != nil {
			return "", err
		}
		for _, item := range list.Items {
			if item.Summary == agentCalendarName {
				c.calendarID = item.ID
				return c.calendarID, nil
			}
		}
		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}
	var created struct {
		ID string `json:"id"`
	}
	body := map[string]string{"summary": agentCalendarName, "timeZone": c.TimeZone.String()}
	if err := c.doJSON(ctx, http.MethodPost, "/calendars", nil, body, &created); err != nil {
		return "", err
	}
	c.calendarID = created.ID
	return c.calendarID, nil
}

type wireTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireEvent struct {
	ID                 string   `json:"id,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Description        string   `json:"description,omitempty"`
	Location           string   `json:"location,omitempty"`
	Start              wireTime `json:"start,omitempty"`
	End                wireTime `json:"end,omitempty"`
	ExtendedProperties *struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties,omitempty"`
}

func (c *GoogleClient) fromWire(we wireEvent) Event {
	ev := Event{
		ID:          we.ID,
		Summary:     we.Summary,
		Description: we.Description,
		Location:    we.Location,
		Start:       we.Start.DateTime,
		End:         we.End.DateTime,
	}
	if we.ExtendedProperties != nil {
		ev.Extended = we.ExtendedProperties.Private
	}
	return ev
}

func (c *GoogleClient) toWire(ev Event) wireEvent {
	we := wireEvent{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       wireTime{DateTime: ev.Start, TimeZone: c.TimeZone.String()},
		End:         wireTime{DateTime: ev.End, TimeZone: c.TimeZone.String()},
	}
	if len(ev.Extended) > 0 {
		we.ExtendedProperties = &struct {
			Private map[string]string `json:"private,omitempty"`
		}{Private: ev.Extended}
	}
	return we
}

// ListEvents returns events on the agent calendar in chronological order.
func (c *GoogleClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error) {
	calID, err := c.agentCalendarID(ctx)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	q := url.Values{}
	q.Set("timeMin", timeMin.In(c.TimeZone).Format(time.RFC3339))
	q.Set("timeMax", timeMax.In(c.TimeZone).Format(time.RFC3339))
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	var list struct {
		Items []wireEvent `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/calendars/"+url.PathEscape(calID)+"/events", q, nil, &list); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(list.Items))
	for _, we := range list.Items {
		events = append(events, c.fromWire(we))
	}
	return events, nil
}

// AvailableSlots queries free/busy across the primary and agent calendars,
// then filters the slot grid through the parsed preference.
func (c *GoogleClient) AvailableSlots(ctx context.Context, preferredTimes string, timeMin, timeMax time.Time, slotDur time.Duration) ([]model.TimeSlot, error) {
	calID, err := c.agentCalendarID(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"timeMin": timeMin.In(c.TimeZone).Format(time.RFC3339),
		"timeMax": timeMax.In(c.TimeZone).Format(time.RFC3339),
		"items":   []map[string]string{{"id": "primary"}, {"id": calID}},
	}
	var fb struct {
		Calendars map[string]struct {
			Busy []struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"busy"`
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"calendars"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/freeBusy", nil, body, &fb); err != nil {
		return nil, err
	}
	var busy []Interval
	for _, id := range []string{"primary", calID} {
		cal, ok := fb.Calendars[id]
		if !ok {
			continue
		}
		if len(cal.Errors) > 0 {
			return nil, model.Errf(model.ErrBackendUnavailable,
				"calendar %s free/busy error: %s", id, cal.Errors[0].Reason)
		}
		for _, b := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, b.Start)
			end, err2 := time.Parse(time.RFC3339, b.End)
			if err1 != nil || err2 != nil {
				continue
			}
			busy = append(busy, Interval{Start: start.In(c.TimeZone), End: end.In(c.TimeZone)})
		}
	}
	pref := ParsePreferredTimes(preferredTimes)
	return ComputeSlots(timeMin.In(c.TimeZone), timeMax.In(c.TimeZone), busy, pref, slotDur), nil
}

// CreateEvent inserts a viewing hold on the agent calendar.
func (c *GoogleClient) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	calID, err := c.agentCalendarID(ctx)
	if err != nil {
		return Event{}, err
	}
	var out wireEvent
	if err := c.doJSON(ctx, http.MethodPost, "/calendars/"+url.PathEscape(calID)+"/events", nil, c.toWire(ev), &out); err != nil {
		return Event{}, err
	}
	return c.fromWire(out), nil
}

// UpdateEvent fetches the event, applies the patch, and writes it back.
func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (Event, error) {
	calID, err := c.agentCalendarID(ctx)
	if err != nil {
		return Event{}, err
	}
	path := "/calendars/" + url.PathEscape(calID) + "/events/" + url.PathEscape(eventID)
	var cur wireEvent
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &cur); err != nil {
		return Event{}, err
	}
	if patch.Summary != nil {
		cur.Summary = *patch.Summary
	}
	if patch.Description != nil {
		cur.Description = *patch.Description
	}
	if patch.Location != nil {
		cur.Location = *patch.Location
	}
	if patch.Start != nil {
		cur.Start = wireTime{DateTime: *patch.Start, TimeZone: c.TimeZone.String()}
	}
	if patch.End != nil {
		cur.End = wireTime{DateTime: *patch.End, TimeZone: c.TimeZone.String()}
	}
	var out wireEvent
	if err := c.doJSON(ctx, http.MethodPut, path, nil, cur, &out); err != nil {
		return Event{}, err
	}
	return c.fromWire(out), nil
}

// DeleteEvent removes a viewing hold from the agent calendar.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	calID, err := c.agentCalendarID(ctx)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/calendars/"+url.PathEscape(calID)+"/events/"+url.PathEscape(eventID), nil, nil, nil)
}
