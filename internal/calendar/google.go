// Package calendar pushes appointments to Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is the Google account that granted calendar access.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// Event is an appointment rendered as a timed calendar entry.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Gateway is the calendar operations the services depend on.
type Gateway interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, *Profile, error)
	Upsert(ctx context.Context, token *oauth2.Token, ev Event) (string, *oauth2.Token, error)
	Delete(ctx context.Context, token *oauth2.Token, eventID string) (*oauth2.Token, error)
}

// Config holds the OAuth client and target calendar.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
	TimeZone     string

	// OAuthEndpoint and APIEndpoint override Google's hosts.
	OAuthEndpoint *oauth2.Endpoint
	APIEndpoint   string
}

// Google implements Gateway on the Calendar v3 API.
type Google struct {
	conf       *oauth2.Config
	calendarID string
	timeZone   string
	endpoint   string
	cb         *gobreaker.CircuitBreaker
}

// NewGoogle builds a gateway for cfg.
func NewGoogle(cfg Config) *Google {
	endpoint := google.Endpoint
	if cfg.OAuthEndpoint != nil {
		endpoint = *cfg.OAuthEndpoint
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Google{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				gcal.CalendarEventsScope,
				goauth2.UserinfoEmailScope,
				goauth2.UserinfoProfileScope,
			},
		},
		calendarID: calendarID,
		timeZone:   cfg.TimeZone,
		endpoint:   cfg.APIEndpoint,
		cb:         newCircuitBreaker("google-calendar"),
	}
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// AuthCodeURL returns the consent page URL. Offline access is requested so
// a refresh token is issued.
func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for tokens and reads the account profile.
func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, *Profile, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchanging code: %w", err)
	}

	svc, err := goauth2.NewService(ctx, g.options(g.conf.Client(ctx, token))...)
	if err != nil {
		return nil, nil, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("reading profile: %w", err)
	}
	return token, &Profile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// Upsert creates the event, or replaces it when ev.ID is set. An event
// deleted on Google's side is recreated. The returned token is non-nil
// when the access token was refreshed.
func (g *Google) Upsert(ctx context.Context, token *oauth2.Token, ev Event) (string, *oauth2.Token, error) {
	ts := g.conf.TokenSource(ctx, token)
	svc, err := gcal.NewService(ctx, g.options(oauth2.NewClient(ctx, ts))...)
	if err != nil {
		return "", nil, err
	}

	body := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: g.timeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: g.timeZone},
	}

	result, err := g.cb.Execute(func() (any, error) {
		if ev.ID != "" {
			updated, err := svc.Events.Update(g.calendarID, ev.ID, body).Context(ctx).Do()
			if err == nil {
				return updated, nil
			}
			if !isGone(err) {
				return nil, err
			}
		}
		return svc.Events.Insert(g.calendarID, body).Context(ctx).Do()
	})
	if err != nil {
		return "", nil, err
	}
	return result.(*gcal.Event).Id, refreshed(ts, token), nil
}

// Delete removes the event. Events already gone count as deleted.
func (g *Google) Delete(ctx context.Context, token *oauth2.Token, eventID string) (*oauth2.Token, error) {
	ts := g.conf.TokenSource(ctx, token)
	svc, err := gcal.NewService(ctx, g.options(oauth2.NewClient(ctx, ts))...)
	if err != nil {
		return nil, err
	}

	_, err = g.cb.Execute(func() (any, error) {
		err := svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
		if err != nil && isGone(err) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return refreshed(ts, token), nil
}

func (g *Google) options(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	return opts
}

func refreshed(ts oauth2.TokenSource, prior *oauth2.Token) *oauth2.Token {
	current, err := ts.Token()
	if err != nil || current.AccessToken == prior.AccessToken {
		return nil
	}
	return current
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
