package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"tattootrack/internal/calendar"
	"tattootrack/internal/metrics"
	"tattootrack/internal/models"
	"tattootrack/internal/testutil"
)

// fakeGateway stands in for Google. Events are kept by ID.
type fakeGateway struct {
	events    map[string]calendar.Event
	next      int
	failWrite bool
	refreshTo string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: map[string]calendar.Event{}}
}

func (g *fakeGateway) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?state=" + url.QueryEscape(state)
}

func (g *fakeGateway) Exchange(_ context.Context, code string) (*oauth2.Token, *calendar.Profile, error) {
	if code != "good-code" {
		return nil, nil, errors.New("invalid_grant")
	}
	token := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour)}
	return token, &calendar.Profile{Email: "artist@example.test", Picture: "https://example.test/p.png"}, nil
}

func (g *fakeGateway) Upsert(_ context.Context, _ *oauth2.Token, ev calendar.Event) (string, *oauth2.Token, error) {
	if g.failWrite {
		return "", nil, errors.New("backend unavailable")
	}
	id := ev.ID
	if id == "" {
		g.next++
		id = "evt" + strconv.Itoa(g.next)
	}
	ev.ID = id
	g.events[id] = ev

	var refreshed *oauth2.Token
	if g.refreshTo != "" {
		refreshed = &oauth2.Token{AccessToken: g.refreshTo}
	}
	return id, refreshed, nil
}

func (g *fakeGateway) Delete(_ context.Context, _ *oauth2.Token, eventID string) (*oauth2.Token, error) {
	if g.failWrite {
		return nil, errors.New("backend unavailable")
	}
	delete(g.events, eventID)
	return nil, nil
}

func TestCalendarConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("round_trip", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCalendarService(db, CalendarDeps{Gateway: newFakeGateway(), StateSecret: "state-secret"})
		user := testutil.CreateTestUser(t, db)

		authURL, err := svc.AuthURL(user.ID)
		testutil.AssertNoError(t, err)
		parsed, err := url.Parse(authURL)
		testutil.AssertNoError(t, err)
		state := parsed.Query().Get("state")

		connected, err := svc.Connect(ctx, state, "good-code")
		testutil.AssertNoError(t, err)
		if !connected.CalendarConnected || connected.GoogleEmail != "artist@example.test" {
			t.Errorf("unexpected user after connect: %+v", connected)
		}
		if connected.GoogleRefresh != "refresh-1" {
			t.Errorf("expected refresh token to be stored")
		}
		if connected.Picture == "" {
			t.Errorf("expected picture to be filled from profile")
		}
	})

	t.Run("tampered_state", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCalendarService(db, CalendarDeps{Gateway: newFakeGateway(), StateSecret: "state-secret"})
		other := NewCalendarService(db, CalendarDeps{Gateway: newFakeGateway(), StateSecret: "other-secret"})
		user := testutil.CreateTestUser(t, db)

		authURL, err := other.AuthURL(user.ID)
		testutil.AssertNoError(t, err)
		parsed, _ := url.Parse(authURL)

		_, err = svc.Connect(ctx, parsed.Query().Get("state"), "good-code")
		testutil.AssertAppError(t, err, "INVALID_OAUTH_STATE")
		_, err = svc.Connect(ctx, "garbage", "good-code")
		testutil.AssertAppError(t, err, "INVALID_OAUTH_STATE")
	})

	t.Run("bad_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCalendarService(db, CalendarDeps{Gateway: newFakeGateway(), StateSecret: "state-secret"})
		user := testutil.CreateTestUser(t, db)

		authURL, _ := svc.AuthURL(user.ID)
		parsed, _ := url.Parse(authURL)
		_, err := svc.Connect(ctx, parsed.Query().Get("state"), "expired")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_configured", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCalendarService(db, CalendarDeps{})

		_, err := svc.AuthURL("someone")
		testutil.AssertAppError(t, err, "CALENDAR_NOT_CONFIGURED")
	})
}

func TestCalendarDisconnect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCalendarService(db, CalendarDeps{Gateway: newFakeGateway(), StateSecret: "state-secret"})
	user := testutil.CreateTestUser(t, db)

	err := svc.Disconnect(user.ID)
	testutil.AssertAppError(t, err, "CALENDAR_NOT_CONNECTED")

	db.Model(user).Updates(map[string]any{"calendar_connected": true, "google_access_token": "tok"})
	testutil.AssertNoError(t, svc.Disconnect(user.ID))

	var stored models.User
	db.First(&stored, "id = ?", user.ID)
	if stored.CalendarConnected || stored.GoogleAccessToken != "" {
		t.Errorf("expected tokens to be cleared: %+v", stored)
	}
}

func TestCalendarSync(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("BRT", -3*60*60)

	setup := func(t *testing.T) (*fakeGateway, *metrics.Metrics, CalendarServicer, *models.User, *models.Appointment, func()) {
		db := testutil.SetupTestDB(t)
		gw := newFakeGateway()
		m := metrics.New()
		svc := NewCalendarService(db, CalendarDeps{Gateway: gw, StateSecret: "s", Location: loc, Metrics: m})

		user := testutil.CreateTestUser(t, db)
		db.Model(user).Updates(map[string]any{"calendar_connected": true, "google_access_token": "access-1"})
		client := testutil.CreateTestClient(t, db)
		appt := testutil.CreateTestAppointment(t, db, client.ID, testutil.Day(2024, time.March, 10), "14:30", 1.5)
		appt.Client = client
		return gw, m, svc, user, appt, func() { testutil.TeardownTestDB(t, db) }
	}

	t.Run("upsert_then_delete", func(t *testing.T) {
		gw, m, svc, user, appt, done := setup(t)
		defer done()

		svc.SyncAppointment(ctx, user.ID, appt)
		if appt.GoogleEventID == "" {
			t.Fatal("expected event id to be stored")
		}
		ev := gw.events[appt.GoogleEventID]
		wantStart := time.Date(2024, 3, 10, 14, 30, 0, 0, loc)
		if !ev.Start.Equal(wantStart) || !ev.End.Equal(wantStart.Add(90*time.Minute)) {
			t.Errorf("unexpected event window %s - %s", ev.Start, ev.End)
		}

		svc.SyncAppointment(ctx, user.ID, appt)
		if len(gw.events) != 1 {
			t.Errorf("expected the event to be updated in place, got %d events", len(gw.events))
		}

		svc.RemoveAppointment(ctx, user.ID, appt)
		if len(gw.events) != 0 || appt.GoogleEventID != "" {
			t.Errorf("expected event to be removed")
		}
		if got := m.Snapshot().CalendarSync["upsert_success"]; got != 2 {
			t.Errorf("expected 2 successful upserts, got %v", got)
		}
	})

	t.Run("failures_are_swallowed", func(t *testing.T) {
		gw, m, svc, user, appt, done := setup(t)
		defer done()
		gw.failWrite = true

		svc.SyncAppointment(ctx, user.ID, appt)
		if appt.GoogleEventID != "" {
			t.Error("no event id expected on failure")
		}
		if got := m.Snapshot().CalendarSync["upsert_error"]; got != 1 {
			t.Errorf("expected 1 upsert error, got %v", got)
		}
	})

	t.Run("unconnected_actor_is_skipped", func(t *testing.T) {
		gw, _, svc, _, appt, done := setup(t)
		defer done()

		svc.SyncAppointment(ctx, "", appt)
		if len(gw.events) != 0 {
			t.Error("expected no event without an actor")
		}
	})
}
