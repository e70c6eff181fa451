package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/rentagent/internal/model"
)

func TestParsePreferredTimesDefaults(t *testing.T) {
	pref := ParsePreferredTimes("")
	if pref.StartHour != 9 || pref.EndHour != 17 {
		t.Fatalf("default hours = %d-%d, want 9-17", pref.StartHour, pref.EndHour)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !pref.Days[d] {
			t.Fatalf("default day mask excludes %s", d)
		}
	}
}

func TestParsePreferredTimesPatterns(t *testing.T) {
	cases := []struct {
		in         string
		start, end int
		weekdayOK  bool
		saturdayOK bool
	}{
		{"weekday evenings", 18, 20, true, false},
		{"weekends", 9, 17, false, true},
		{"6-8pm", 18, 20, true, true},
		{"10am-2pm", 10, 14, true, true},
		{"18:00-20:00", 18, 20, true, true},
		{"weekend mornings", 9, 12, false, true},
		{"saturday afternoon", 13, 17, false, true},
		{"monday or tuesday", 9, 17, true, false},
	}
	for _, tc := range cases {
		pref := ParsePreferredTimes(tc.in)
		if pref.StartHour != tc.start || pref.EndHour != tc.end {
			t.Errorf("%q hours = %d-%d, want %d-%d", tc.in, pref.StartHour, pref.EndHour, tc.start, tc.end)
		}
		if pref.Days[time.Wednesday] != tc.weekdayOK {
			t.Errorf("%q wednesday = %v, want %v", tc.in, pref.Days[time.Wednesday], tc.weekdayOK)
		}
		if pref.Days[time.Saturday] != tc.saturdayOK {
			t.Errorf("%q saturday = %v, want %v", tc.in, pref.Days[time.Saturday], tc.saturdayOK)
		}
	}
}

func TestParsePreferredTimesInvertedRange(t *testing.T) {
	// An end at or before the start widens to start+2 rather than failing.
	pref := ParsePreferredTimes("available 7-7")
	if pref.StartHour != 7 || pref.EndHour != 9 {
		t.Fatalf("hours = %d-%d, want 7-9", pref.StartHour, pref.EndHour)
	}
}

func TestComputeSlotsSkipsBusyAndOffDays(t *testing.T) {
	loc := time.UTC
	// Monday 2026-03-02 through Wednesday midnight.
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 4, 0, 0, 0, 0, loc)
	busy := []Interval{{
		Start: time.Date(2026, 3, 2, 18, 30, 0, 0, loc),
		End:   time.Date(2026, 3, 2, 19, 30, 0, 0, loc),
	}}
	pref := Preference{
		Days:      map[time.Weekday]bool{time.Monday: true},
		StartHour: 18,
		EndHour:   20,
	}
	slots := ComputeSlots(start, end, busy, pref, time.Hour)
	// Tuesday is off, both Monday hours overlap the 18:30-19:30 hold.
	if len(slots) != 0 {
		t.Fatalf("got %d slots, want 0: %+v", len(slots), slots)
	}

	slots = ComputeSlots(start, end, nil, pref, time.Hour)
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2: %+v", len(slots), slots)
	}
	if slots[0].Start != "2026-03-02T18:00:00" || slots[1].Start != "2026-03-02T19:00:00" {
		t.Fatalf("slot starts = %s, %s", slots[0].Start, slots[1].Start)
	}
	if !strings.HasPrefix(slots[0].Display, "Monday") {
		t.Fatalf("display = %q, want Monday prefix", slots[0].Display)
	}
}

func TestComputeSlotsRespectsEndHour(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	end := time.Date(2026, 3, 3, 0, 0, 0, 0, loc)
	pref := Preference{Days: allDays(), StartHour: 9, EndHour: 11}
	slots := ComputeSlots(start, end, nil, pref, 90*time.Minute)
	// 9:00-10:30 fits, 10:30-12:00 would spill past 11:00.
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1: %+v", len(slots), slots)
	}
	if slots[0].End != "2026-03-02T10:30:00" {
		t.Fatalf("slot end = %s", slots[0].End)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonBody(t *testing.T, status int, v any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(buf)),
	}
}

func writeToken(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"access_token":"test-token"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGoogleClientMissingToken(t *testing.T) {
	c := NewGoogleClient(filepath.Join(t.TempDir(), "absent.json"), time.UTC)
	_, err := c.AvailableSlots(context.Background(), "", time.Now(), time.Now().Add(24*time.Hour), time.Hour)
	if model.KindOf(err) != model.ErrCredentialsMissing {
		t.Fatalf("err = %v, want credentials_missing", err)
	}
}

func TestGoogleClientAvailableSlots(t *testing.T) {
	loc := time.UTC
	c := NewGoogleClient(writeToken(t), loc)
	c.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("authorization = %q", got)
		}
		switch {
		case strings.Contains(r.URL.Path, "calendarList"):
			return jsonBody(t, 200, map[string]any{
				"items": []map[string]string{{"id": "cal-42", "summary": "Realtor Agent"}},
			}), nil
		case strings.Contains(r.URL.Path, "freeBusy"):
			return jsonBody(t, 200, map[string]any{
				"calendars": map[string]any{
					"primary": map[string]any{"busy": []map[string]string{
						{"start": "2026-03-02T09:00:00Z", "end": "2026-03-02T10:00:00Z"},
					}},
					"cal-42": map[string]any{"busy": []map[string]string{}},
				},
			}), nil
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			return nil, nil
		}
	})}

	timeMin := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	timeMax := time.Date(2026, 3, 2, 12, 0, 0, 0, loc)
	slots, err := c.AvailableSlots(context.Background(), "mornings", timeMin, timeMax, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// 9-10 is busy, 10-11 and 11-12 remain inside the morning window.
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2: %+v", len(slots), slots)
	}
	if slots[0].Start != "2026-03-02T10:00:00" {
		t.Fatalf("first slot = %s", slots[0].Start)
	}
}

func TestGoogleClientCreatesCalendarWhenAbsent(t *testing.T) {
	var createdCalendar bool
	c := NewGoogleClient(writeToken(t), time.UTC)
	c.HTTPClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(r.URL.Path, "calendarList"):
			return jsonBody(t, 200, map[string]any{"items": []any{}}), nil
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/calendars"):
			createdCalendar = true
			return jsonBody(t, 200, map[string]string{"id": "cal-new"}), nil
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
			var we wireEvent
			if err := json.NewDecoder(r.Body).Decode(&we); err != nil {
				t.Fatal(err)
			}
			we.ID = "ev-1"
			return jsonBody(t, 200, we), nil
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			return nil, nil
		}
	})}

	ev, err := c.CreateEvent(context.Background(), Event{
		Summary: "Viewing: 123 Main St",
		Start:   "2026-03-02T10:00:00",
		End:     "2026-03-02T11:00:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !createdCalendar {
		t.Fatal("agent calendar was not created")
	}
	if ev.ID != "ev-1" || ev.Summary != "Viewing: 123 Main St" {
		t.Fatalf("event = %+v", ev)
	}
}
